package render

import (
	"context"
)

// Request is one fully prepared screenshot job handed to an Engine
type Request struct {
	// Name is "<namespace>/<path>", used for logs and metrics
	Name string

	// TemplateFile is the HTML template on disk
	TemplateFile string

	// OutputDir receives the rendered HTML and, for the cli engine, the image
	OutputDir string

	// SaveID names the files written to OutputDir
	SaveID string

	// WaitUntil is the page load condition the screenshot waits for
	WaitUntil string

	// Data is the augmented template data
	Data Data
}

// Engine defines the interface for different screenshot implementations
type Engine interface {
	// Screenshot renders the request and returns the PNG bytes.
	// An engine may return no bytes and no error when there is nothing to show.
	Screenshot(ctx context.Context, req *Request) ([]byte, error)

	// Type returns the engine type identifier ("http" or "cli")
	Type() string

	// ValidateConfig validates that the engine is properly configured
	ValidateConfig() error
}
