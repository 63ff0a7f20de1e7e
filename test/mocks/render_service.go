package mocks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// PNGHeader is the image the mock render service returns by default
var PNGHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ScreenshotCall records one /screenshot request
type ScreenshotCall struct {
	HTML      string
	Type      string
	FullPage  bool
	WaitUntil string
	Time      time.Time
}

// RenderBehavior controls mock render service behavior
type RenderBehavior struct {
	// Delay adds artificial latency to every screenshot
	Delay time.Duration

	// FailFirst makes the first N requests return 503
	FailFirst int

	// Status overrides the response status code (0 = success)
	Status int

	// Image overrides the returned bytes
	Image []byte
}

// MockRenderService provides a mock browserless-style screenshot service
type MockRenderService struct {
	Server   *httptest.Server
	mu       sync.Mutex
	calls    []ScreenshotCall
	requests int
	behavior RenderBehavior
}

// NewMockRenderService creates a new mock render service
func NewMockRenderService() *MockRenderService {
	mock := &MockRenderService{}

	mux := http.NewServeMux()
	mux.HandleFunc("/screenshot", mock.handleScreenshot)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// Close stops the mock server
func (m *MockRenderService) Close() {
	m.Server.Close()
}

// URL returns the mock server URL
func (m *MockRenderService) URL() string {
	return m.Server.URL
}

// SetBehavior configures mock service behavior
func (m *MockRenderService) SetBehavior(behavior RenderBehavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behavior = behavior
}

// Calls returns the successfully decoded screenshot requests
func (m *MockRenderService) Calls() []ScreenshotCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ScreenshotCall{}, m.calls...)
}

// Requests returns the number of HTTP requests received, retries included
func (m *MockRenderService) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

func (m *MockRenderService) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.mu.Lock()
	m.requests++
	attempt := m.requests
	behavior := m.behavior
	m.mu.Unlock()

	if behavior.Delay > 0 {
		select {
		case <-time.After(behavior.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if attempt <= behavior.FailFirst {
		http.Error(w, "browser busy", http.StatusServiceUnavailable)
		return
	}

	if behavior.Status > 0 {
		http.Error(w, "render failed", behavior.Status)
		return
	}

	var req struct {
		HTML    string `json:"html"`
		Options struct {
			Type     string `json:"type"`
			FullPage bool   `json:"fullPage"`
		} `json:"options"`
		GotoOptions struct {
			WaitUntil string `json:"waitUntil"`
		} `json:"gotoOptions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.calls = append(m.calls, ScreenshotCall{
		HTML:      req.HTML,
		Type:      req.Options.Type,
		FullPage:  req.Options.FullPage,
		WaitUntil: req.GotoOptions.WaitUntil,
		Time:      time.Now(),
	})
	m.mu.Unlock()

	image := behavior.Image
	if image == nil {
		image = PNGHeader
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(image)
}
