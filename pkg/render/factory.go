package render

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ghnotify/github-render-webhook/pkg/config"
)

// NewEngine creates the screenshot engine selected by render.type and validates it
func NewEngine(cfg *config.Config, logger *logrus.Logger) (Engine, error) {
	logger.WithField("render_type", cfg.Render.Type).Debug("Creating render engine")

	var engine Engine

	switch cfg.Render.Type {
	case config.RenderTypeHTTP:
		engine = NewHTTPEngine(cfg, logger)

	case config.RenderTypeCLI:
		engine = NewCLIEngine(cfg, logger)

	default:
		return nil, fmt.Errorf("unsupported render type: %s", cfg.Render.Type)
	}

	if err := engine.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("render engine validation failed for type %s: %w", cfg.Render.Type, err)
	}

	logger.WithField("render_type", engine.Type()).Info("Render engine created and validated")

	return engine, nil
}
