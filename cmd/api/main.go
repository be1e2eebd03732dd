// Package main runs the Courier admin API server.
package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof" // #nosec G108 - pprof is intentionally exposed for debugging, isolated to separate port
	"os"
	"time"

	"github.com/muaviaUsmani/courier/internal/admin"
	"github.com/muaviaUsmani/courier/internal/config"
	"github.com/muaviaUsmani/courier/internal/logger"
	"github.com/muaviaUsmani/courier/internal/serialization"
	"github.com/muaviaUsmani/courier/internal/service"
	"github.com/muaviaUsmani/courier/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := log.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
		}
	}()
	logger.SetDefault(log)

	apiLog := log.WithComponent(logger.ComponentAPI).WithSource(logger.LogSourceInternal)

	apiLog.Info("API server starting",
		"redis_url", cfg.RedisURL,
		"api_port", cfg.APIPort)

	// Start pprof server on separate port for profiling
	pprofPort := os.Getenv("PPROF_PORT")
	if pprofPort == "" {
		pprofPort = "6060"
	}
	go func() {
		apiLog.Info("Starting pprof server", "port", pprofPort, "url", fmt.Sprintf("http://localhost:%s/debug/pprof/", pprofPort))
		pprofServer := &http.Server{
			Addr:              ":" + pprofPort,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := pprofServer.ListenAndServe(); err != nil {
			apiLog.Error("pprof server failed", "error", err)
		}
	}()

	// Connect to the job store
	jobStore, err := store.NewRedisStore(cfg.RedisURL)
	if err != nil {
		apiLog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := jobStore.Close(); err != nil {
			apiLog.Warn("Failed to close store", "error", err)
		}
	}()
	jobStore.SetRetention(cfg.CompletedRetentionAge, cfg.CompletedRetentionCount)
	if cfg.SerializationFormat == "protobuf" {
		jobStore.SetCodec(serialization.NewProtobufCodec())
	}

	svc := service.NewQueueService(jobStore)
	dispatcher := admin.NewDispatcher(svc)

	addr := ":" + cfg.APIPort
	apiLog.Info("API server listening", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           admin.Handler(dispatcher),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil {
		apiLog.Error("API server failed", "error", err)
		os.Exit(1)
	}
}
