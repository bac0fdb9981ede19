package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"fotos/internal/bluesky"
	"fotos/internal/cache"
	"fotos/internal/engagement"
	"fotos/internal/filesystem"
	"fotos/internal/handlers"
	"fotos/internal/loader"
	"fotos/internal/logging"
	"fotos/internal/memory"
	"fotos/internal/metrics"
	"fotos/internal/middleware"
	"fotos/internal/startup"
)

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"files":  config.FilesDir,
		"cache":  config.CacheDir,
		"static": config.StaticDir,
	}))
	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	ctx := context.Background()

	// Database loader; nothing is downloaded until the first request
	// unless preloading is enabled.
	source, err := loader.NewSource(ctx, config.DatabaseURL, loader.SourceOptions{
		S3Region:          config.S3Region,
		S3Endpoint:        config.S3Endpoint,
		S3AccessKeyID:     config.S3AccessKeyID,
		S3SecretAccessKey: config.S3SecretAccessKey,
	})
	if err != nil {
		startup.LogFatal("Invalid DATABASE_URL: %v", err)
	}
	startup.LogLoaderInit(source.String(), !config.DatabasePreload)
	gallery := loader.New(source, config.CacheDir)

	if config.DatabasePreload {
		go func() {
			loadStart := time.Now()
			_, err := gallery.Get(ctx)
			startup.LogDatabaseLoaded(time.Since(loadStart), err)
		}()
	}

	respCache := cache.New(ctx, config.RedisURL)

	client := bluesky.NewClient(config.BlueskyAPIURL, &http.Client{Timeout: 15 * time.Second})
	stats := engagement.NewService(gallery, client, config.BlueskyHandle)

	h := handlers.New(gallery, stats, respCache, config)

	router := setupRouter(h, config.StaticDir)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	// Start metrics collector
	collector := metrics.NewCollector(gallery, time.Minute)
	collector.Start()

	var metricsServer *http.Server
	if config.MetricsEnabled {
		metricsServer = startMetricsServer(config.MetricsPort)
	}

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           wrapMiddleware(router, config),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go handleShutdown(srv, metricsServer, collector, respCache, gallery)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers, staticDir string) *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	// Static front end
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))

	return r
}

// wrapMiddleware applies, from the outside in: request ids, compression,
// access logging and request metrics.
func wrapMiddleware(router http.Handler, config *startup.Config) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	handler := middleware.Metrics(middleware.DefaultMetricsConfig())(router)
	handler = middleware.Logger(loggingConfig)(handler)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)
	return middleware.RequestID(handler)
}

func startMetricsServer(port string) *http.Server {
	sm := http.NewServeMux()
	sm.Handle("/metrics", handlers.MetricsHandler())
	sm.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           sm,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

type closer interface {
	Close() error
}

func handleShutdown(srv, metricsServer *http.Server, collector *metrics.Collector, respCache, gallery closer) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	if metricsServer != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsServer.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Closing response cache")
	if err := respCache.Close(); err != nil {
		logging.Warn("Response cache close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Response cache closed")
	}

	startup.LogShutdownStep("Closing gallery database")
	if err := gallery.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Gallery database closed")
	}

	startup.LogShutdownComplete()
}
