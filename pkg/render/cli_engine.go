package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ghnotify/github-render-webhook/pkg/config"
)

// CLIEngine renders templates locally and screenshots them with an
// HTML-to-image command such as wkhtmltoimage
type CLIEngine struct {
	config *config.Config
	logger *logrus.Logger
}

// NewCLIEngine creates a new CLIEngine instance
func NewCLIEngine(cfg *config.Config, logger *logrus.Logger) *CLIEngine {
	return &CLIEngine{
		config: cfg,
		logger: logger,
	}
}

// Type returns the engine type identifier
func (e *CLIEngine) Type() string {
	return "cli"
}

// Screenshot writes the page to disk and runs the configured command on it
func (e *CLIEngine) Screenshot(ctx context.Context, req *Request) ([]byte, error) {
	htmlFile, _, err := writeHTML(req)
	if err != nil {
		return nil, err
	}

	imageFile := filepath.Join(req.OutputDir, req.SaveID+".png")
	args := e.buildArgs(htmlFile, imageFile)

	e.logger.WithFields(logrus.Fields{
		"template": req.Name,
		"command":  e.config.Render.CLIPath,
		"args":     strings.Join(args, " "),
	}).Debug("Running screenshot command")

	cmd := exec.CommandContext(ctx, e.config.Render.CLIPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &EngineError{
			Engine:  e.Type(),
			Message: fmt.Sprintf("exit code %d: %s", getExitCode(err), strings.TrimSpace(stderr.String())),
			Err:     err,
		}
	}

	image, err := os.ReadFile(imageFile)
	if errors.Is(err, os.ErrNotExist) {
		// The command succeeded without producing an image
		return nil, nil
	}
	if err != nil {
		return nil, &EngineError{Engine: e.Type(), Message: "failed to read image", Err: err}
	}

	return image, nil
}

// buildArgs places the configured flags before the input and output files
func (e *CLIEngine) buildArgs(htmlFile, imageFile string) []string {
	args := make([]string, 0, len(e.config.Render.CLIArgs)+2)
	args = append(args, e.config.Render.CLIArgs...)
	return append(args, htmlFile, imageFile)
}

// ValidateConfig checks if the screenshot command is available and executable
func (e *CLIEngine) ValidateConfig() error {
	if e.config.Render.CLIPath == "" {
		return &ConfigurationError{Field: "render.cli_path", Message: "command path is required"}
	}
	if _, err := exec.LookPath(e.config.Render.CLIPath); err != nil {
		return fmt.Errorf("screenshot command not found at %s: %w", e.config.Render.CLIPath, err)
	}
	return nil
}

// getExitCode extracts the exit code from an exec.ExitError
func getExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
