// Package delivery sends rendered notifications to chat destinations.
package delivery

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ghnotify/github-render-webhook/internal/models"
	"github.com/ghnotify/github-render-webhook/pkg/config"
)

// Sender delivers an artifact to a single chat destination and returns the message id
type Sender interface {
	SendPrivate(ctx context.Context, userID string, artifact models.Artifact) (string, error)
	SendGroup(ctx context.Context, groupID string, artifact models.Artifact) (string, error)
}

// NewSender creates the chat sender selected by delivery.type
func NewSender(cfg *config.Config, logger *logrus.Logger) (Sender, error) {
	switch cfg.Delivery.Type {
	case "onebot":
		timeout, err := cfg.ParseDuration(cfg.Delivery.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid delivery timeout: %w", err)
		}
		return NewOneBotClient(cfg.Delivery.URL, cfg.Delivery.AccessToken, timeout, logger), nil
	default:
		return nil, fmt.Errorf("unsupported delivery type: %s", cfg.Delivery.Type)
	}
}

// PrivateTarget replies to one private recipient through a Sender
type PrivateTarget struct {
	Sender Sender
	UserID string
}

// Reply implements render.Replier
func (p PrivateTarget) Reply(ctx context.Context, artifact models.Artifact) (string, error) {
	return p.Sender.SendPrivate(ctx, p.UserID, artifact)
}

// GroupTarget replies to one group through a Sender
type GroupTarget struct {
	Sender  Sender
	GroupID string
}

// Reply implements render.Replier
func (g GroupTarget) Reply(ctx context.Context, artifact models.Artifact) (string, error) {
	return g.Sender.SendGroup(ctx, g.GroupID, artifact)
}
