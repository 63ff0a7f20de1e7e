package main

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ghnotify/github-render-webhook/pkg/config"
	"github.com/ghnotify/github-render-webhook/pkg/delivery"
	"github.com/ghnotify/github-render-webhook/pkg/dispatch"
	"github.com/ghnotify/github-render-webhook/pkg/logging"
	"github.com/ghnotify/github-render-webhook/pkg/queue"
	"github.com/ghnotify/github-render-webhook/pkg/render"
	"github.com/ghnotify/github-render-webhook/pkg/shutdown"
	"github.com/ghnotify/github-render-webhook/pkg/webhook"
)

const workerShutdownTimeout = 2 * time.Minute

func main() {
	logger := logging.NewLogger(logging.LogLevelInfo)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	logging.SetLevel(logger, cfg.LogLevel)

	dest := cfg.Destinations()
	logging.LogConfigurationLoaded(logger, len(cfg.GitHub.Repos), len(dest.Groups), dest.Operator != "", string(cfg.Render.Type))

	engine, err := render.NewEngine(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Render engine validation failed")
	}

	renderer, err := render.NewRenderer(cfg, engine, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create renderer")
	}

	sender, err := delivery.NewSender(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create delivery sender")
	}

	fanout := delivery.NewFanout(sender, dest, logger)
	dispatcher := dispatch.NewDispatcher(cfg.RepoFilter(), cfg.Render.Namespace, renderer, fanout, logger)

	coordinator := shutdown.NewShutdownCoordinator(logger)

	var sink webhook.JobSink
	switch cfg.Queue.Mode {
	case config.QueueModeInline:
		sink = dispatch.Inline{Dispatcher: dispatcher}

	default:
		jobTimeout, _ := cfg.ParseDuration(cfg.Queue.JobTimeout)

		jobs := queue.NewJobQueue(cfg.Queue.BufferSize, logger)
		pool := queue.NewWorkerPool(jobs, cfg.Queue.Workers, jobTimeout, dispatcher.Handle, logger)
		pool.Start()

		coordinator.SetCloseQueue(jobs.Close)
		coordinator.SetStopWorkerPool(func(ctx context.Context) error {
			return pool.Stop(workerShutdownTimeout)
		})
		sink = jobs

		logger.WithFields(logrus.Fields{
			"workers":     cfg.Queue.Workers,
			"buffer_size": cfg.Queue.BufferSize,
		}).Info("Worker pool started")
	}

	server := webhook.NewServer(cfg, sink, logger)
	coordinator.SetStopAcceptingRequests(server.Shutdown)
	coordinator.SetCleanupResources(server.ShutdownAdmin)

	shutdownTimeout, _ := cfg.ParseDuration(cfg.Server.ShutdownTimeout)
	manager := shutdown.NewManager(shutdownTimeout+workerShutdownTimeout, logger)
	manager.RegisterHandler("coordinator", shutdown.GracefulShutdownHandler(coordinator))

	logging.LogStartup(logger, cfg.Server.Port, cfg.Server.Path)
	server.SetReady(true)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Error("Server error occurred")
			manager.TriggerShutdown()
		}
	}()

	if err := manager.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
		os.Exit(1)
	}
}
