// Package dispatch routes verified webhook deliveries to view builders,
// renders them and fans the image out to the configured destinations.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/sirupsen/logrus"

	"github.com/ghnotify/github-render-webhook/internal/models"
	"github.com/ghnotify/github-render-webhook/pkg/logging"
	"github.com/ghnotify/github-render-webhook/pkg/metrics"
	"github.com/ghnotify/github-render-webhook/pkg/render"
	"github.com/ghnotify/github-render-webhook/pkg/views"
)

// Renderer produces the encoded image for a view
type Renderer interface {
	Base64(ctx context.Context, namespace, path string, data render.Data, opts render.Options) (models.Artifact, error)
}

// Deliverer sends an artifact to every destination
type Deliverer interface {
	Deliver(ctx context.Context, artifact models.Artifact) error
}

// Dispatcher handles one webhook delivery at a time; it keeps no per-request state
type Dispatcher struct {
	repos     map[string]struct{}
	namespace string
	renderer  Renderer
	deliverer Deliverer
	logger    *logrus.Logger
	now       func() time.Time
}

// NewDispatcher creates a dispatcher for a fixed repository filter
func NewDispatcher(repos map[string]struct{}, namespace string, renderer Renderer, deliverer Deliverer, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		repos:     repos,
		namespace: namespace,
		renderer:  renderer,
		deliverer: deliverer,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle processes a verified delivery. Filtered repositories and unsupported
// events are no-ops. A render failure skips delivery; delivery failures are
// logged per destination. Only a payload that cannot be decoded is returned
// as an error.
func (d *Dispatcher) Handle(ctx context.Context, job *models.WebhookJob) error {
	envelope := views.ReadEnvelope(job.Body)
	logger := logging.WithJob(d.logger, job.DeliveryID, job.EventType, envelope.FullName)

	if _, ok := d.repos[envelope.FullName]; !ok {
		logger.Debug("Repository not in filter, dropping event")
		d.finish(job, models.OutcomeFiltered)
		return nil
	}

	if !models.EventKind(job.EventType).IsKnown() {
		logger.Debug("No template for event type")
		d.finish(job, models.OutcomeIgnored)
		return nil
	}

	event, err := github.ParseWebHook(job.EventType, job.Body)
	if err != nil {
		logger.WithError(err).Error("Failed to decode webhook payload")
		d.finish(job, models.OutcomeParseFailed)
		return fmt.Errorf("%w: %s: %v", models.ErrInvalidPayload, job.EventType, err)
	}

	view, ok := views.Build(views.BuildContext(envelope, d.now()), event)
	if !ok {
		d.finish(job, models.OutcomeIgnored)
		return nil
	}

	data, err := render.DataFrom(view)
	if err != nil {
		logger.WithError(err).Error("Failed to prepare view data")
		d.finish(job, models.OutcomeRenderFailed)
		return nil
	}

	artifact, err := d.renderer.Base64(ctx, d.namespace, view.Template(), data, render.Options{})
	if err != nil {
		logger.WithError(err).WithField("timeout", render.IsTimeout(err)).
			Error("Render failed, skipping delivery")
		d.finish(job, models.OutcomeRenderFailed)
		return nil
	}
	if artifact.IsEmpty() {
		logger.Warn("Renderer returned no image, skipping delivery")
		d.finish(job, models.OutcomeRenderFailed)
		return nil
	}

	if err := d.deliverer.Deliver(ctx, artifact); err != nil {
		// Every failed destination was already logged by the fan-out
		logger.WithError(err).Warn("Notification delivered with failures")
	} else {
		logger.Info("Notification delivered")
	}

	d.finish(job, models.OutcomeDelivered)
	return nil
}

func (d *Dispatcher) finish(job *models.WebhookJob, outcome models.DispatchOutcome) {
	metrics.RecordDispatch(job.EventType, string(outcome))
}

// Inline hands every job straight to the dispatcher on the request goroutine
type Inline struct {
	Dispatcher *Dispatcher
}

// Enqueue runs the dispatcher synchronously. Decode failures are reported to the caller.
func (i Inline) Enqueue(ctx context.Context, job *models.WebhookJob) error {
	// Outlives the request if the sender disconnects
	return i.Dispatcher.Handle(context.WithoutCancel(ctx), job)
}
