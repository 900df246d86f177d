package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	offlinecache "github.com/anapath-lab/offline-cache"
	"github.com/anapath-lab/offline-cache/client"
	"github.com/anapath-lab/offline-cache/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	apiOriginFlag      string
	staticOriginFlag   string
	dbFilenameFlag     string
	strictInstallFlag  bool
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	flag.StringVar(&apiOriginFlag, "api-origin", "", "API origin URL (overrides config)")
	flag.StringVar(&staticOriginFlag, "static-origin", "", "Static asset origin URL (overrides config)")
	flag.StringVar(&dbFilenameFlag, "db", "", "Cache DB file name (use 'memory' for in-memory db)")
	flag.BoolVar(&strictInstallFlag, "strict-install", false, "Abort install on the first failing manifest entry")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	config, err := getConfig(configFilenameFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load config")
	}
	if portFlag != 0 {
		config.Port = portFlag
	}
	if apiOriginFlag != "" {
		config.APIOrigin = apiOriginFlag
	}
	if staticOriginFlag != "" {
		config.StaticOrigin = staticOriginFlag
	}
	if dbFilenameFlag != "" {
		config.DB = dbFilenameFlag
	}
	if strictInstallFlag {
		config.StrictInstall = true
	}

	if config.APIOrigin == "" || config.StaticOrigin == "" {
		log.Fatal().Msg("Please specify api and static origins")
	}
	apiOrigin, err := url.Parse(config.APIOrigin)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse api origin url")
	}
	staticOrigin, err := url.Parse(config.StaticOrigin)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse static origin url")
	}

	// set up sqlite provider
	dbFilename := config.DB
	if dbFilename == "memory" {
		dbFilename = ""
	}
	responseStore, err := store.NewSQLiteStore(dbFilename)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not open cache db")
	}

	hub := client.NewHub()

	worker := offlinecache.CreateWorker(offlinecache.Config{
		Stores:              responseStore,
		Clients:             hub,
		Version:             config.Version,
		APIOrigin:           *apiOrigin,
		StaticOrigin:        *staticOrigin,
		Manifest:            config.Manifest,
		APIPrefixes:         config.APIPrefixes,
		ExcludeHosts:        config.ExcludeHosts,
		OfflinePath:         config.OfflinePage,
		PlaceholderIconPath: config.PlaceholderIcon,
		StrictInstall:       config.StrictInstall,
		Logger:              &log.Logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := worker.Install(ctx); err != nil {
		log.Fatal().Err(err).Msg("Install failed")
	}
	if err := worker.Activate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Activate failed")
	}

	router := chi.NewRouter()
	router.Get("/healthz", healthHandler(worker))
	router.Get("/worker/events", eventsHandler(hub))
	router.Post("/worker/message", messageHandler(worker))
	router.Handle("/*", worker)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: router,
	}

	go func() {
		log.Info().Msgf("Caching port %v for %s (api: %s)", config.Port, staticOrigin, apiOrigin)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
	// let pending cache writes settle before closing the db
	worker.Wait()
	if err := responseStore.Close(); err != nil {
		log.Error().Err(err).Msg("Could not close cache db")
	}
}
