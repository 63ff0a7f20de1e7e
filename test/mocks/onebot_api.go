package mocks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// OneBotCall records one send request
type OneBotCall struct {
	Action        string
	UserID        int64
	GroupID       int64
	Message       json.RawMessage
	Authorization string
	Time          time.Time
}

// OneBotBehavior controls mock API behavior
type OneBotBehavior struct {
	// FailUsers makes sends to these private recipients fail with retcode 100
	FailUsers map[int64]bool

	// FailGroups makes sends to these groups fail with retcode 100
	FailGroups map[int64]bool

	// HTTPStatus overrides the HTTP status code (0 = 200)
	HTTPStatus int
}

// MockOneBotAPI provides a mock OneBot v11 HTTP API
type MockOneBotAPI struct {
	Server   *httptest.Server
	mu       sync.Mutex
	calls    []OneBotCall
	behavior OneBotBehavior
	nextID   atomic.Int64
}

// NewMockOneBotAPI creates a new mock OneBot API server
func NewMockOneBotAPI() *MockOneBotAPI {
	mock := &MockOneBotAPI{}

	mux := http.NewServeMux()
	mux.HandleFunc("/send_private_msg", mock.handler("send_private_msg"))
	mux.HandleFunc("/send_group_msg", mock.handler("send_group_msg"))

	mock.Server = httptest.NewServer(mux)
	return mock
}

// Close stops the mock server
func (m *MockOneBotAPI) Close() {
	m.Server.Close()
}

// URL returns the mock server URL
func (m *MockOneBotAPI) URL() string {
	return m.Server.URL
}

// SetBehavior configures mock API behavior
func (m *MockOneBotAPI) SetBehavior(behavior OneBotBehavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behavior = behavior
}

// Calls returns all send requests received
func (m *MockOneBotAPI) Calls() []OneBotCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OneBotCall{}, m.calls...)
}

func (m *MockOneBotAPI) handler(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			UserID  int64           `json:"user_id"`
			GroupID int64           `json:"group_id"`
			Message json.RawMessage `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}

		m.mu.Lock()
		m.calls = append(m.calls, OneBotCall{
			Action:        action,
			UserID:        req.UserID,
			GroupID:       req.GroupID,
			Message:       req.Message,
			Authorization: r.Header.Get("Authorization"),
			Time:          time.Now(),
		})
		behavior := m.behavior
		m.mu.Unlock()

		if behavior.HTTPStatus > 0 {
			w.WriteHeader(behavior.HTTPStatus)
			return
		}

		w.Header().Set("Content-Type", "application/json")

		if behavior.FailUsers[req.UserID] && action == "send_private_msg" ||
			behavior.FailGroups[req.GroupID] && action == "send_group_msg" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "failed",
				"retcode": 100,
				"message": "target not found",
				"data":    nil,
			})
			return
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"retcode": 0,
			"data":    map[string]interface{}{"message_id": m.nextID.Add(1)},
		})
	}
}
