package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"fotos/internal/logging"
	"fotos/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration. Every field is read from the
// environment, after an optional .env file in the working directory.
type Config struct {
	Port           string `env:"PORT" envDefault:"8080"`
	MetricsPort    string `env:"METRICS_PORT" envDefault:"9090"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`

	// DatabaseURL locates fotos.db: an http(s) URL, s3://bucket/key,
	// file:// URL or local path.
	DatabaseURL     string `env:"DATABASE_URL" envDefault:"./fotos.db"`
	// DatabasePreload starts the download at startup instead of on the
	// first request.
	DatabasePreload bool   `env:"DATABASE_PRELOAD" envDefault:"false"`

	CacheDir  string `env:"CACHE_DIR" envDefault:"./cache"`
	FilesDir  string `env:"FILES_DIR" envDefault:"./files"`
	StaticDir string `env:"STATIC_DIR" envDefault:"./web"`

	TagsCacheFile     string `env:"TAGS_CACHE_FILE" envDefault:"./tags-cache.json"`
	ElementsCacheFile string `env:"ELEMENTS_CACHE_FILE" envDefault:"./ai-tags-cache.json"`

	BlueskyAPIURL string `env:"BLUESKY_API_URL" envDefault:"https://public.api.bsky.app/xrpc"`
	BlueskyHandle string `env:"BLUESKY_HANDLE" envDefault:"fotos.aldeapucela.org"`

	SiteURL         string `env:"SITE_URL" envDefault:"https://fotos.aldeapucela.org"`
	SiteTitle       string `env:"SITE_TITLE" envDefault:"Fotos de Valladolid - Aldea Pucela"`
	SiteDescription string `env:"SITE_DESCRIPTION" envDefault:"Fotos de Valladolid de la mayor comunidad vecinal online sobre Valladolid"`
	// OriginalURL prefixes the link to each photo's original upload.
	OriginalURL string `env:"ORIGINAL_URL" envDefault:"https://t.me/AldeaPucela/27202/"`

	RedisURL         string        `env:"REDIS_URL"`
	ResponseCacheTTL time.Duration `env:"RESPONSE_CACHE_TTL" envDefault:"5m"`

	S3Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`

	LogStaticFiles  bool `env:"LOG_STATIC_FILES" envDefault:"false"`
	LogHealthChecks bool `env:"LOG_HEALTH_CHECKS" envDefault:"true"`
}

// LoadEnv reads the environment into a Config without logging or touching
// the filesystem beyond the optional .env file.
func LoadEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn("Ignoring unreadable .env file: %v", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	return cfg, nil
}

// LoadConfig loads and validates configuration for the web server, logging
// it in the startup banner format.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	cfg, err := LoadEnv()
	if err != nil {
		return nil, err
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  PORT:                %s", cfg.Port)
	logging.Info("  METRICS_PORT:        %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  DATABASE_URL:        %s", redactURL(cfg.DatabaseURL))
	logging.Info("  DATABASE_PRELOAD:    %v", cfg.DatabasePreload)
	logging.Info("  CACHE_DIR:           %s", cfg.CacheDir)
	logging.Info("  FILES_DIR:           %s", cfg.FilesDir)
	logging.Info("  STATIC_DIR:          %s", cfg.StaticDir)
	logging.Info("  BLUESKY_API_URL:     %s", cfg.BlueskyAPIURL)
	logging.Info("  BLUESKY_HANDLE:      %s", cfg.BlueskyHandle)
	logging.Info("  SITE_URL:            %s", cfg.SiteURL)
	logging.Info("  REDIS_URL:           %s", orNotSet(redactURL(cfg.RedisURL)))
	logging.Info("  RESPONSE_CACHE_TTL:  %v", cfg.ResponseCacheTTL)
	logging.Info("  LOG_STATIC_FILES:    %v", cfg.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	logging.Info("  %s:       %d (I/O)", workers.OverrideEnv, workers.ForIO(8))

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	for _, dir := range []*string{&cfg.CacheDir, &cfg.FilesDir, &cfg.StaticDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve directory path %s: %w", *dir, err)
		}
		*dir = abs
	}
	logging.Info("  Cache directory (absolute): %s", cfg.CacheDir)
	logging.Info("  Files directory (absolute): %s", cfg.FilesDir)
	logging.Info("  Static directory (absolute): %s", cfg.StaticDir)

	// The downloaded database lives in the cache directory.
	if err := ensureDirectory(cfg.CacheDir, "cache"); err != nil {
		return nil, fmt.Errorf("cache directory error: %w", err)
	}
	if err := testWriteAccess(cfg.CacheDir); err != nil {
		return nil, fmt.Errorf("cache directory is not writable (required for the database): %w", err)
	}
	logging.Info("  [OK] Cache directory is writable")

	if err := checkDirectory(cfg.FilesDir); err != nil {
		logging.Warn("  Files directory issue: %v (photos will return 404)", err)
	}
	if err := checkDirectory(cfg.StaticDir); err != nil {
		logging.Warn("  Static directory issue: %v (front end disabled)", err)
	}

	return cfg, nil
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// redactURL hides the password of URLs such as redis://:secret@host.
func redactURL(s string) string {
	at := strings.LastIndex(s, "@")
	scheme := strings.Index(s, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return s
	}
	userinfo := s[scheme+3 : at]
	if i := strings.Index(userinfo, ":"); i >= 0 {
		userinfo = userinfo[:i] + ":***"
	}
	return s[:scheme+3] + userinfo + s[at:]
}

// LogLoaderInit logs the database source before the first download.
func LogLoaderInit(source string, lazy bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE LOADER")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Source: %s", redactURL(source))
	if lazy {
		logging.Info("  The database is downloaded on the first request")
	}
}

// LogDatabaseLoaded logs the outcome of the warm-up download.
func LogDatabaseLoaded(duration time.Duration, err error) {
	if err != nil {
		logging.Warn("  Initial database load failed after %v: %v", duration, err)
		logging.Warn("  The next request will retry")
		return
	}
	logging.Info("  [OK] Database loaded in %v", duration)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			pathTemplate, err = route.GetPathRegexp()
			if err != nil {
				return nil
			}
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Prefix routes such as the static file server have no methods.
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level.
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	logging.Info("  HTTP logging enabled")
	if logStaticFiles {
		logging.Info("    Static file logging: ON")
	} else {
		logging.Info("    Static file logging: OFF (set LOG_STATIC_FILES=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup groups /api routes by their second segment.
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Gallery:       http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
     ____      __
    / __/___  / /_____  _____
   / /_/ __ \/ __/ __ \/ ___/
  / __/ /_/ / /_/ /_/ (__  )
 /_/  \____/\__/\____/____/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func checkDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}
