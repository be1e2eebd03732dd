// Package main runs the Courier delivery worker: the worker pool, the dead
// letter processor, and the store janitor.
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // #nosec G108 - pprof is intentionally exposed for debugging, isolated to separate port
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muaviaUsmani/courier/internal/channel"
	"github.com/muaviaUsmani/courier/internal/config"
	"github.com/muaviaUsmani/courier/internal/deadletter"
	"github.com/muaviaUsmani/courier/internal/janitor"
	"github.com/muaviaUsmani/courier/internal/logger"
	"github.com/muaviaUsmani/courier/internal/mailer"
	"github.com/muaviaUsmani/courier/internal/message"
	"github.com/muaviaUsmani/courier/internal/serialization"
	"github.com/muaviaUsmani/courier/internal/store"
	"github.com/muaviaUsmani/courier/internal/worker"
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

	workerLog := log.WithComponent(logger.ComponentWorker).WithSource(logger.LogSourceInternal)

	workerLog.Info("Worker starting",
		"redis_url", cfg.RedisURL,
		"concurrency", cfg.WorkerConcurrency,
		"poll_interval", cfg.PollInterval)

	// Start pprof server on separate port for profiling
	pprofPort := os.Getenv("PPROF_PORT")
	if pprofPort == "" {
		pprofPort = "6061"
	}
	go func() {
		workerLog.Info("Starting pprof server", "port", pprofPort, "url", fmt.Sprintf("http://localhost:%s/debug/pprof/", pprofPort))
		pprofServer := &http.Server{
			Addr:              ":" + pprofPort,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := pprofServer.ListenAndServe(); err != nil {
			workerLog.Error("pprof server failed", "error", err)
		}
	}()

	// Connect to the job store
	jobStore, err := store.NewRedisStore(cfg.RedisURL)
	if err != nil {
		workerLog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := jobStore.Close(); err != nil {
			workerLog.Warn("Failed to close store", "error", err)
		}
	}()
	jobStore.SetRetention(cfg.CompletedRetentionAge, cfg.CompletedRetentionCount)
	if cfg.SerializationFormat == "protobuf" {
		jobStore.SetCodec(serialization.NewProtobufCodec())
	}

	// Outbound mail goes through a single SMTP sender shared by the email
	// channel and the dead letter alerter
	var smtpSender mailer.Sender
	if cfg.SMTPAddr != "" {
		smtpSender = mailer.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	// Register delivery handlers
	registry := channel.NewRegistry()
	registry.Register(message.ChannelHTTP, channel.NewHTTPHandler())
	registry.Register(message.ChannelEmail, channel.NewEmailHandler(smtpSender))
	registry.Register(message.ChannelInternal, channel.NewInternalHandler(nil))

	workerLog.Info("Registered delivery handlers", "count", registry.Count())

	processor := worker.NewProcessor(registry, jobStore)
	pool := worker.NewPool(processor, jobStore, cfg.WorkerConcurrency, cfg.PollInterval)

	// Dead letter processing with optional admin alerting
	var alerter deadletter.Alerter
	if cfg.DeadLetterAlertsEnabled && smtpSender != nil {
		alerter = deadletter.NewEmailAlerter(smtpSender, cfg.AdminAlertEmails)
		workerLog.Info("Dead letter alerts enabled", "recipients", len(cfg.AdminAlertEmails))
	}
	dlProcessor := deadletter.NewProcessor(jobStore, alerter, cfg.PollInterval)

	// Store maintenance: delayed-job promotion and stale reservation reaping
	jan := janitor.New(jobStore, jobStore.Client(), cfg.JanitorInterval, cfg.ReapStaleAfter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	pool.Start(ctx)
	dlProcessor.Start(ctx)
	jan.Start(ctx)

	sig := <-sigChan
	workerLog.Info("Received signal, initiating graceful shutdown", "signal", sig.String())

	cancel()
	jan.Stop()
	dlProcessor.Stop()
	pool.Stop()

	workerLog.Info("Worker shut down successfully")
}
