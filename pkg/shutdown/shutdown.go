package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/ghnotify/github-render-webhook/pkg/logging"
)

// Manager handles graceful shutdown coordination
type Manager struct {
	logger         *logrus.Logger
	shutdownChan   chan os.Signal
	handlers       []ShutdownHandler
	timeout        time.Duration
	mu             sync.Mutex
	isShuttingDown bool
}

// ShutdownHandler is a function that performs cleanup during shutdown
type ShutdownHandler func(ctx context.Context) error

// NewManager creates a new shutdown manager
func NewManager(timeout time.Duration, logger *logrus.Logger) *Manager {
	return &Manager{
		logger:       logger,
		shutdownChan: make(chan os.Signal, 1),
		handlers:     make([]ShutdownHandler, 0),
		timeout:      timeout,
	}
}

// RegisterHandler adds a shutdown handler to be called during shutdown
func (m *Manager) RegisterHandler(name string, handler ShutdownHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wrappedHandler := func(ctx context.Context) error {
		m.logger.WithField("handler", name).Info("Executing shutdown handler")
		start := time.Now()

		err := handler(ctx)

		duration := time.Since(start)
		if err != nil {
			m.logger.WithFields(logrus.Fields{
				"handler":  name,
				"duration": duration.Seconds(),
			}).WithError(err).Error("Shutdown handler failed")
			return err
		}

		m.logger.WithFields(logrus.Fields{
			"handler":  name,
			"duration": duration.Seconds(),
		}).Info("Shutdown handler completed")
		return nil
	}

	m.handlers = append(m.handlers, wrappedHandler)
}

// WaitForShutdown blocks until a shutdown signal is received, then runs the handlers
func (m *Manager) WaitForShutdown() error {
	signal.Notify(m.shutdownChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(m.shutdownChan)

	sig := <-m.shutdownChan
	logging.LogShutdownInitiated(m.logger, sig.String())

	return m.Shutdown()
}

// Shutdown executes all registered shutdown handlers concurrently under the
// manager's timeout. A second call is a no-op.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.isShuttingDown {
		m.mu.Unlock()
		return nil
	}
	m.isShuttingDown = true
	handlers := append([]ShutdownHandler(nil), m.handlers...)
	m.mu.Unlock()

	m.logger.Info("Starting graceful shutdown")
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var g multierror.Group
	for _, handler := range handlers {
		handler := handler
		g.Go(func() error {
			return handler(ctx)
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait().ErrorOrNil()
	}()

	select {
	case err := <-done:
		logging.LogShutdownComplete(m.logger, time.Since(start).Seconds())
		if err != nil {
			m.logger.WithError(err).Warn("Shutdown completed with errors")
		}
		return err
	case <-ctx.Done():
		m.logger.WithFields(logrus.Fields{
			"timeout": m.timeout.Seconds(),
		}).Error("Shutdown timeout exceeded")
		return ctx.Err()
	}
}

// IsShuttingDown returns true if shutdown has been initiated
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isShuttingDown
}

// TriggerShutdown manually triggers a shutdown (for testing or programmatic shutdown)
func (m *Manager) TriggerShutdown() {
	select {
	case m.shutdownChan <- syscall.SIGTERM:
	default:
	}
}

// ShutdownCoordinator runs the ordered shutdown sequence of the service
type ShutdownCoordinator struct {
	stopAcceptingRequests func(context.Context) error
	closeQueue            func()
	stopWorkerPool        func(context.Context) error
	cleanupResources      func(context.Context) error
	logger                *logrus.Logger
}

// NewShutdownCoordinator creates a new shutdown coordinator
func NewShutdownCoordinator(logger *logrus.Logger) *ShutdownCoordinator {
	return &ShutdownCoordinator{
		logger: logger,
	}
}

// SetStopAcceptingRequests sets the function that stops the intake listener
func (sc *ShutdownCoordinator) SetStopAcceptingRequests(fn func(context.Context) error) {
	sc.stopAcceptingRequests = fn
}

// SetCloseQueue sets the function to close the queue
func (sc *ShutdownCoordinator) SetCloseQueue(fn func()) {
	sc.closeQueue = fn
}

// SetStopWorkerPool sets the function that waits for the workers to drain the queue
func (sc *ShutdownCoordinator) SetStopWorkerPool(fn func(context.Context) error) {
	sc.stopWorkerPool = fn
}

// SetCleanupResources sets the function to cleanup resources
func (sc *ShutdownCoordinator) SetCleanupResources(fn func(context.Context) error) {
	sc.cleanupResources = fn
}

// ExecuteShutdown performs the coordinated shutdown sequence:
// stop intake, close the queue, drain the workers, clean up.
// Every step runs even if an earlier one failed.
func (sc *ShutdownCoordinator) ExecuteShutdown(ctx context.Context) error {
	sc.logger.Info("Executing coordinated shutdown")

	var result *multierror.Error

	// Step 1: Stop accepting new webhooks
	if sc.stopAcceptingRequests != nil {
		sc.logger.Info("Stopping acceptance of new webhooks")
		if err := sc.stopAcceptingRequests(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}

	// Step 2: Close the queue so the workers exit once it is drained
	if sc.closeQueue != nil {
		sc.logger.Info("Closing job queue")
		sc.closeQueue()
	}

	// Step 3: Wait for queued and in-flight notifications
	if sc.stopWorkerPool != nil {
		sc.logger.Info("Waiting for queued notifications to complete")
		if err := sc.stopWorkerPool(ctx); err != nil {
			sc.logger.WithError(err).Warn("Worker pool shutdown had errors")
			result = multierror.Append(result, err)
		}
	}

	// Step 4: Cleanup resources
	if sc.cleanupResources != nil {
		sc.logger.Info("Cleaning up resources")
		if err := sc.cleanupResources(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}

	sc.logger.Info("Coordinated shutdown complete")
	return result.ErrorOrNil()
}

// GracefulShutdownHandler creates a shutdown handler from a coordinator
func GracefulShutdownHandler(coordinator *ShutdownCoordinator) ShutdownHandler {
	return func(ctx context.Context) error {
		return coordinator.ExecuteShutdown(ctx)
	}
}
