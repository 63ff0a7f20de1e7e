package delivery

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/ghnotify/github-render-webhook/internal/models"
	"github.com/ghnotify/github-render-webhook/pkg/metrics"
)

// Fanout delivers one artifact to the operator and every group
type Fanout struct {
	sender       Sender
	destinations models.Destinations
	logger       *logrus.Logger
}

// NewFanout creates a Fanout for a static destination set
func NewFanout(sender Sender, destinations models.Destinations, logger *logrus.Logger) *Fanout {
	return &Fanout{
		sender:       sender,
		destinations: destinations,
		logger:       logger,
	}
}

// Deliver sends the artifact to every destination concurrently and waits for all of them.
// Each failure is logged on its own; the returned error aggregates them.
func (f *Fanout) Deliver(ctx context.Context, artifact models.Artifact) error {
	var g multierror.Group

	if f.destinations.Operator != "" {
		operator := f.destinations.Operator
		g.Go(func() error {
			_, err := f.sender.SendPrivate(ctx, operator, artifact)
			return f.record("private", operator, err)
		})
	}

	for _, group := range f.destinations.Groups {
		group := group
		g.Go(func() error {
			_, err := f.sender.SendGroup(ctx, group, artifact)
			return f.record("group", group, err)
		})
	}

	return g.Wait().ErrorOrNil()
}

func (f *Fanout) record(kind, target string, err error) error {
	logger := f.logger.WithFields(logrus.Fields{
		"kind":   kind,
		"target": target,
	})

	if err != nil {
		metrics.RecordDelivery(kind, "failed")
		logger.WithError(err).Error("Delivery failed")
		return fmt.Errorf("%s %s: %w", kind, target, err)
	}

	metrics.RecordDelivery(kind, "success")
	logger.Debug("Delivered")
	return nil
}
