// Package render turns a template path and a data object into a screenshot.
//
// A Renderer normalizes the template path, augments the data with the fields
// the templates rely on, optionally dumps the final data for template
// debugging and hands the job to an Engine. The result is available in three
// forms: the encoded image (Base64), auto-delivery with a success flag (Send)
// or auto-delivery with the reply's message id (SendForID).
package render

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ghnotify/github-render-webhook/internal/models"
	"github.com/ghnotify/github-render-webhook/pkg/config"
	"github.com/ghnotify/github-render-webhook/pkg/metrics"
)

// WaitNetworkIdle waits until the page has had no network connections for 500ms
const WaitNetworkIdle = "networkidle0"

// Data is the template data object
type Data map[string]interface{}

// BeforeRenderFunc may rewrite the augmented data right before the screenshot.
// A nil or empty return keeps the data it was given.
type BeforeRenderFunc func(data Data) Data

// Options tune a single render call
type Options struct {
	BeforeRender BeforeRenderFunc
}

// Replier delivers a rendered artifact on behalf of Send and SendForID
type Replier interface {
	Reply(ctx context.Context, artifact models.Artifact) (string, error)
}

// Renderer orchestrates template renders on top of an Engine
type Renderer struct {
	engine   Engine
	logger   *logrus.Logger
	dataDir  string
	tplDir   string
	debug    bool
	timeout  time.Duration
	saveJSON func(file string, data []byte) error
}

// NewRenderer creates a Renderer for the configured directories and timeout
func NewRenderer(cfg *config.Config, engine Engine, logger *logrus.Logger) (*Renderer, error) {
	timeout, err := cfg.ParseDuration(cfg.Render.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid render timeout: %w", err)
	}

	tplDir, err := filepath.Abs(cfg.Render.ResourcesDir)
	if err != nil {
		return nil, fmt.Errorf("invalid resources directory: %w", err)
	}

	return &Renderer{
		engine:  engine,
		logger:  logger,
		dataDir: cfg.Render.DataDir,
		tplDir:  tplDir,
		debug:   cfg.Render.Debug,
		timeout: timeout,
		saveJSON: func(file string, data []byte) error {
			return os.WriteFile(file, data, 0644)
		},
	}, nil
}

// NormalizePath strips a trailing ".html" and empty segments from a template path
func NormalizePath(p string) string {
	return strings.Join(splitPath(p), "/")
}

func splitPath(p string) []string {
	p = strings.TrimSuffix(p, ".html")

	segments := make([]string, 0, strings.Count(p, "/")+1)
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

// DataFrom flattens a view model into template data through its JSON field names.
// Fields tagged omitempty are absent when empty.
func DataFrom(v interface{}) (Data, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode view: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("view is not an object: %w", err)
	}
	return data, nil
}

// Base64 renders the template and returns the encoded image without delivering it
func (r *Renderer) Base64(ctx context.Context, namespace, path string, data Data, opts Options) (models.Artifact, error) {
	req, err := r.prepare(namespace, path, data, opts)
	if err != nil {
		return models.Artifact{}, err
	}

	image, err := r.screenshot(ctx, req)
	if err != nil {
		return models.Artifact{}, err
	}

	return models.Artifact{Base64: base64.StdEncoding.EncodeToString(image)}, nil
}

// Send renders the template and delivers the image through to.
// It reports true when the engine produced no image as well.
func (r *Renderer) Send(ctx context.Context, namespace, path string, data Data, opts Options, to Replier) (bool, error) {
	artifact, err := r.Base64(ctx, namespace, path, data, opts)
	if err != nil {
		return false, err
	}
	if artifact.IsEmpty() {
		return true, nil
	}

	if _, err := to.Reply(ctx, artifact); err != nil {
		return false, err
	}
	return true, nil
}

// SendForID renders the template, delivers the image through to and returns
// the reply's message id. The id is empty when the engine produced no image.
func (r *Renderer) SendForID(ctx context.Context, namespace, path string, data Data, opts Options, to Replier) (string, error) {
	artifact, err := r.Base64(ctx, namespace, path, data, opts)
	if err != nil {
		return "", err
	}
	if artifact.IsEmpty() {
		return "", nil
	}

	return to.Reply(ctx, artifact)
}

// prepare normalizes the path, augments the data and creates the output directory
func (r *Renderer) prepare(namespace, path string, data Data, opts Options) (*Request, error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, fmt.Errorf("empty template path %q", path)
	}
	path = strings.Join(segments, "/")

	outputDir := filepath.Join(r.dataDir, "html", namespace, filepath.FromSlash(path))
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create render directory: %w", err)
	}

	resPath, err := r.resourcePath(outputDir)
	if err != nil {
		return nil, err
	}
	tplFile := filepath.Join(r.tplDir, filepath.FromSlash(path)+".html")

	augmented := make(Data, len(data)+6)
	for k, v := range data {
		augmented[k] = v
	}

	augmented["_plugin"] = namespace
	augmented["_htmlPath"] = path
	augmented["pluResPath"] = resPath
	augmented["tplFile"] = tplFile
	augmented["saveId"] = saveID(data, segments[len(segments)-1])
	augmented["pageGotoParams"] = map[string]interface{}{"waitUntil": WaitNetworkIdle}

	if opts.BeforeRender != nil {
		if rewritten := opts.BeforeRender(augmented); len(rewritten) > 0 {
			augmented = rewritten
		}
	}

	if r.debug {
		r.dumpData(namespace, path, augmented)
	}

	return &Request{
		Name:         namespace + "/" + path,
		TemplateFile: tplFile,
		OutputDir:    outputDir,
		SaveID:       filepath.Base(fmt.Sprint(augmented["saveId"])),
		WaitUntil:    waitUntil(augmented),
		Data:         augmented,
	}, nil
}

// resourcePath returns the resources directory relative to a page written to
// outputDir, with a trailing slash so templates can append file names
func (r *Renderer) resourcePath(outputDir string) (string, error) {
	absOut, err := filepath.Abs(outputDir)
	if err != nil {
		return "", fmt.Errorf("invalid render directory: %w", err)
	}

	rel, err := filepath.Rel(absOut, r.tplDir)
	if err != nil {
		return "", fmt.Errorf("resources directory is not reachable from %s: %w", outputDir, err)
	}
	return filepath.ToSlash(rel) + "/", nil
}

// screenshot runs the engine under the render timeout
func (r *Renderer) screenshot(ctx context.Context, req *Request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	image, err := r.engine.Screenshot(ctx, req)
	duration := time.Since(start)

	logger := r.logger.WithFields(logrus.Fields{
		"template": req.Name,
		"engine":   r.engine.Type(),
		"duration": duration,
	})

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = &TimeoutError{Template: req.Name, Timeout: r.timeout}
			metrics.RecordRenderDuration(req.Name, r.engine.Type(), "timeout", duration.Seconds())
		} else {
			metrics.RecordRenderDuration(req.Name, r.engine.Type(), "failed", duration.Seconds())
		}
		logger.WithError(err).Error("Render failed")
		return nil, err
	}

	metrics.RecordRenderDuration(req.Name, r.engine.Type(), "success", duration.Seconds())
	logger.WithField("bytes", len(image)).Debug("Render completed")

	return image, nil
}

// dumpData saves the final template data for template debugging. Failures are only logged.
func (r *Renderer) dumpData(namespace, path string, data Data) {
	if htmlPath, ok := data["_htmlPath"].(string); ok && htmlPath != "" {
		path = htmlPath
	}

	logger := r.logger.WithField("template", namespace+"/"+path)

	dir := filepath.Join(r.dataDir, "ViewData", namespace)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.WithError(err).Warn("Failed to create view data directory")
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		logger.WithError(err).Warn("Failed to encode view data")
		return
	}

	file := filepath.Join(dir, strings.ReplaceAll(path, "/", "_")+".json")
	if err := r.saveJSON(file, raw); err != nil {
		logger.WithError(err).Warn("Failed to save view data")
		return
	}

	logger.WithField("file", file).Debug("Saved view data")
}

// saveID prefers the caller's saveId, then save_id, then the last path segment
func saveID(data Data, fallback string) interface{} {
	for _, key := range []string{"saveId", "save_id"} {
		if v, ok := data[key]; ok && truthy(v) {
			return v
		}
	}
	return fallback
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return true
	}
}

func waitUntil(data Data) string {
	var params map[string]interface{}
	switch p := data["pageGotoParams"].(type) {
	case map[string]interface{}:
		params = p
	case Data:
		params = p
	}
	if w, ok := params["waitUntil"].(string); ok && w != "" {
		return w
	}
	return WaitNetworkIdle
}
