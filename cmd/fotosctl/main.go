package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli"

	"fotos/internal/database"
	"fotos/internal/logging"
	"fotos/internal/startup"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logging.Error("%v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "fotosctl"
	app.HelpName = filepath.Base(os.Args[0])
	app.Usage = "Maintain the fotos gallery database"
	app.Description = "Commands operate on a local, writable copy of fotos.db. Publish the file afterwards for the web server to pick it up."
	app.Version = startup.Version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "db, d",
			Value:  "fotos.db",
			EnvVar: "FOTOS_DB",
			Usage:  "path of the gallery database",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable debug logging",
		},
	}
	app.Before = func(c *cli.Context) error {
		if c.Bool("verbose") {
			logging.SetLevel(logging.LevelDebug)
		}
		cfg, err := startup.LoadEnv()
		if err != nil {
			return err
		}
		c.App.Metadata = map[string]interface{}{configKey: cfg}
		return nil
	}

	app.Commands = []cli.Command{
		SyncStatsCommand,
		CacheStatsCommand,
		UpdateTagsCommand,
		UpdateAITagsCommand,
		FeedCommand,
		AddPhotoCommand,
		DeletePhotoCommand,
		LinkPostCommand,
	}
	return app
}

// config returns the environment configuration loaded before the command.
func config(c *cli.Context) *startup.Config {
	if cfg, ok := c.App.Metadata[configKey].(*startup.Config); ok {
		return cfg
	}
	cfg, err := startup.LoadEnv()
	if err != nil {
		return &startup.Config{}
	}
	return cfg
}

// openDB opens the database named by --db for writing. Only add-photo may
// create a new file.
func openDB(c *cli.Context, create bool) (*database.Database, error) {
	path := c.GlobalString("db")
	if !create {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("database %s does not exist", path)
			}
			return nil, err
		}
	}

	db, err := database.Open(context.Background(), path, database.Options{CreateSchema: create})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return db, nil
}
