package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/ghnotify/github-render-webhook/pkg/config"
	"github.com/ghnotify/github-render-webhook/pkg/metrics"
)

// API constants
const (
	ScreenshotEndpoint = "/screenshot"

	HeaderContentType = "Content-Type"
	ContentTypeJSON   = "application/json"

	// maxImageSize bounds the screenshot response body
	maxImageSize = 32 << 20
)

// screenshotRequest is the body of a browserless-style /screenshot call
type screenshotRequest struct {
	HTML        string            `json:"html"`
	Options     screenshotOptions `json:"options"`
	GotoOptions gotoOptions       `json:"gotoOptions"`
}

type screenshotOptions struct {
	Type     string `json:"type"`
	FullPage bool   `json:"fullPage"`
}

type gotoOptions struct {
	WaitUntil string `json:"waitUntil,omitempty"`
}

// HTTPEngine renders templates locally and posts the page to a headless
// browser service for the screenshot
type HTTPEngine struct {
	config     *config.Config
	logger     *logrus.Logger
	httpClient *retryablehttp.Client
	maxBytes   int64
}

// NewHTTPEngine creates a new HTTPEngine instance
func NewHTTPEngine(cfg *config.Config, logger *logrus.Logger) *HTTPEngine {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RenderRetryMax()
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = &leveledLogger{entry: logger.WithField("component", "render_http")}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPEngine{
		config:     cfg,
		logger:     logger,
		httpClient: client,
		maxBytes:   maxImageSize,
	}
}

// Type returns the engine type identifier
func (e *HTTPEngine) Type() string {
	return "http"
}

// Screenshot renders the page and asks the browser service for a full-page PNG
func (e *HTTPEngine) Screenshot(ctx context.Context, req *Request) ([]byte, error) {
	htmlFile, html, err := writeHTML(req)
	if err != nil {
		return nil, err
	}

	// The service only sees the page source, not the files next to it
	html = inlineStylesheets(htmlFile, html)

	payload, err := json.Marshal(screenshotRequest{
		HTML:        string(html),
		Options:     screenshotOptions{Type: "png", FullPage: true},
		GotoOptions: gotoOptions{WaitUntil: req.WaitUntil},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal screenshot request: %w", err)
	}

	endpoint := strings.TrimSuffix(e.config.Render.ServiceURL, "/") + ScreenshotEndpoint

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set(HeaderContentType, ContentTypeJSON)

	e.logger.WithFields(logrus.Fields{
		"template": req.Name,
		"url":      endpoint,
	}).Debug("Sending screenshot request")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.RecordRenderEngineError("network_error", 0)
		return nil, &EngineError{Engine: e.Type(), Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes+1))
	if err != nil {
		return nil, &EngineError{Engine: e.Type(), Message: "failed to read response", Err: err}
	}
	if int64(len(body)) > e.maxBytes {
		metrics.RecordRenderEngineError("oversized", resp.StatusCode)
		return nil, &EngineError{
			Engine:     e.Type(),
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("screenshot exceeds %d bytes", e.maxBytes),
		}
	}

	if resp.StatusCode != http.StatusOK {
		metrics.RecordRenderEngineError("status", resp.StatusCode)
		return nil, &EngineError{
			Engine:     e.Type(),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	return body, nil
}

// ValidateConfig validates the browser service settings
func (e *HTTPEngine) ValidateConfig() error {
	if e.config.Render.ServiceURL == "" {
		return &ConfigurationError{Field: "render.service_url", Message: "service URL is required"}
	}

	u, err := url.Parse(e.config.Render.ServiceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigurationError{Field: "render.service_url", Message: fmt.Sprintf("invalid URL %q", e.config.Render.ServiceURL)}
	}

	if e.config.RenderRetryMax() < 0 {
		return &ConfigurationError{Field: "render.retry_max", Message: "must not be negative"}
	}

	return nil
}

// leveledLogger adapts logrus to retryablehttp.LeveledLogger
type leveledLogger struct {
	entry *logrus.Entry
}

func (l *leveledLogger) fields(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.entry.WithFields(fields)
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Error(msg)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Info(msg)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Warn(msg)
}
