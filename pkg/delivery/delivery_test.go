package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/ghnotify/github-render-webhook/internal/models"
	"github.com/ghnotify/github-render-webhook/pkg/config"
	"github.com/ghnotify/github-render-webhook/test/mocks"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestOneBotClient_SendPrivate(t *testing.T) {
	api := mocks.NewMockOneBotAPI()
	defer api.Close()

	client := NewOneBotClient(api.URL()+"/", "bot-token", 5*time.Second, quietLogger())

	id, err := client.SendPrivate(context.Background(), "10001", models.Artifact{Base64: "aGVsbG8="})
	if err != nil {
		t.Fatalf("SendPrivate() failed: %v", err)
	}
	if id != "1" {
		t.Errorf("message id = %q, want 1", id)
	}

	calls := api.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	call := calls[0]
	if call.Action != ActionSendPrivateMsg || call.UserID != 10001 {
		t.Errorf("call = %+v", call)
	}
	if call.Authorization != "Bearer bot-token" {
		t.Errorf("Authorization = %q", call.Authorization)
	}

	var message []segment
	if err := json.Unmarshal(call.Message, &message); err != nil {
		t.Fatalf("message is not a segment list: %v", err)
	}
	if len(message) != 1 || message[0].Type != "image" || message[0].Data["file"] != "base64://aGVsbG8=" {
		t.Errorf("message = %+v", message)
	}
}

func TestOneBotClient_SendGroup(t *testing.T) {
	api := mocks.NewMockOneBotAPI()
	defer api.Close()

	client := NewOneBotClient(api.URL(), "", 5*time.Second, quietLogger())

	if _, err := client.SendGroup(context.Background(), "20001", models.Artifact{Base64: "eA=="}); err != nil {
		t.Fatalf("SendGroup() failed: %v", err)
	}

	calls := api.Calls()
	if len(calls) != 1 || calls[0].Action != ActionSendGroupMsg || calls[0].GroupID != 20001 {
		t.Errorf("calls = %+v", calls)
	}
	if calls[0].Authorization != "" {
		t.Errorf("Authorization = %q, want none", calls[0].Authorization)
	}
}

func TestOneBotClient_Errors(t *testing.T) {
	tests := []struct {
		name        string
		behavior    mocks.OneBotBehavior
		groupID     string
		wantRetcode int
		wantStatus  int
	}{
		{
			name:        "action failed",
			behavior:    mocks.OneBotBehavior{FailGroups: map[int64]bool{20001: true}},
			groupID:     "20001",
			wantRetcode: 100,
			wantStatus:  http.StatusOK,
		},
		{
			name:       "http error",
			behavior:   mocks.OneBotBehavior{HTTPStatus: http.StatusUnauthorized},
			groupID:    "20001",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := mocks.NewMockOneBotAPI()
			defer api.Close()
			api.SetBehavior(tt.behavior)

			client := NewOneBotClient(api.URL(), "", 5*time.Second, quietLogger())
			_, err := client.SendGroup(context.Background(), tt.groupID, models.Artifact{Base64: "eA=="})

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("SendGroup() error = %v, want APIError", err)
			}
			if apiErr.Retcode != tt.wantRetcode || apiErr.StatusCode != tt.wantStatus {
				t.Errorf("APIError = %+v", apiErr)
			}
		})
	}
}

func TestOneBotClient_InvalidID(t *testing.T) {
	client := NewOneBotClient("http://127.0.0.1:1", "", time.Second, quietLogger())

	if _, err := client.SendPrivate(context.Background(), "alice", models.Artifact{}); err == nil {
		t.Error("SendPrivate() with non-numeric id should fail")
	}
	if _, err := client.SendGroup(context.Background(), "", models.Artifact{}); err == nil {
		t.Error("SendGroup() with empty id should fail")
	}
}

func TestNewSender(t *testing.T) {
	cfg := &config.Config{Delivery: config.DeliveryConfig{Type: "onebot", URL: "http://127.0.0.1:5700", Timeout: "10s"}}
	if _, err := NewSender(cfg, quietLogger()); err != nil {
		t.Errorf("NewSender(onebot) failed: %v", err)
	}

	cfg.Delivery.Type = "smtp"
	if _, err := NewSender(cfg, quietLogger()); err == nil {
		t.Error("NewSender(smtp) should fail")
	}
}

// recordingSender records sends and fails for configured targets
type recordingSender struct {
	mu      sync.Mutex
	private []string
	groups  []string
	fail    map[string]bool
}

func (s *recordingSender) SendPrivate(ctx context.Context, userID string, artifact models.Artifact) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.private = append(s.private, userID)
	if s.fail[userID] {
		return "", errors.New("rejected")
	}
	return "p-" + userID, nil
}

func (s *recordingSender) SendGroup(ctx context.Context, groupID string, artifact models.Artifact) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = append(s.groups, groupID)
	if s.fail[groupID] {
		return "", errors.New("rejected")
	}
	return "g-" + groupID, nil
}

func TestFanout_Deliver(t *testing.T) {
	tests := []struct {
		name        string
		dest        models.Destinations
		fail        map[string]bool
		wantPrivate int
		wantGroups  int
		wantErrs    int
	}{
		{
			name:        "operator and groups",
			dest:        models.Destinations{Operator: "10001", Groups: []string{"20001", "20002"}},
			wantPrivate: 1,
			wantGroups:  2,
		},
		{
			name:       "groups only",
			dest:       models.Destinations{Groups: []string{"20001"}},
			wantGroups: 1,
		},
		{
			name: "no destinations",
			dest: models.Destinations{},
		},
		{
			name:        "one group fails, others still delivered",
			dest:        models.Destinations{Operator: "10001", Groups: []string{"20001", "20002", "20003"}},
			fail:        map[string]bool{"20002": true},
			wantPrivate: 1,
			wantGroups:  3,
			wantErrs:    1,
		},
		{
			name:        "operator fails, groups still delivered",
			dest:        models.Destinations{Operator: "10001", Groups: []string{"20001"}},
			fail:        map[string]bool{"10001": true, "20001": true},
			wantPrivate: 1,
			wantGroups:  1,
			wantErrs:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{fail: tt.fail}
			fanout := NewFanout(sender, tt.dest, quietLogger())

			err := fanout.Deliver(context.Background(), models.Artifact{Base64: "eA=="})

			if len(sender.private) != tt.wantPrivate {
				t.Errorf("private sends = %d, want %d", len(sender.private), tt.wantPrivate)
			}
			if len(sender.groups) != tt.wantGroups {
				t.Errorf("group sends = %d, want %d", len(sender.groups), tt.wantGroups)
			}

			if tt.wantErrs == 0 {
				if err != nil {
					t.Errorf("Deliver() error = %v, want nil", err)
				}
				return
			}

			var merr *multierror.Error
			if !errors.As(err, &merr) {
				t.Fatalf("Deliver() error = %v, want multierror", err)
			}
			if len(merr.Errors) != tt.wantErrs {
				t.Errorf("errors = %d, want %d", len(merr.Errors), tt.wantErrs)
			}
		})
	}
}

func TestFanout_DeliverThroughOneBot(t *testing.T) {
	api := mocks.NewMockOneBotAPI()
	defer api.Close()
	api.SetBehavior(mocks.OneBotBehavior{FailGroups: map[int64]bool{20001: true}})

	client := NewOneBotClient(api.URL(), "", 5*time.Second, quietLogger())
	fanout := NewFanout(client, models.Destinations{Operator: "10001", Groups: []string{"20001", "20002"}}, quietLogger())

	err := fanout.Deliver(context.Background(), models.Artifact{Base64: "eA=="})
	if err == nil || !strings.Contains(err.Error(), "group 20001") {
		t.Errorf("Deliver() error = %v, want failure for group 20001", err)
	}

	if got := len(api.Calls()); got != 3 {
		t.Errorf("OneBot calls = %d, want 3", got)
	}
}

func TestTargets_Reply(t *testing.T) {
	sender := &recordingSender{}

	id, err := PrivateTarget{Sender: sender, UserID: "10001"}.Reply(context.Background(), models.Artifact{Base64: "x"})
	if err != nil || id != "p-10001" {
		t.Errorf("PrivateTarget.Reply() = %q, %v", id, err)
	}

	id, err = GroupTarget{Sender: sender, GroupID: "20001"}.Reply(context.Background(), models.Artifact{Base64: "x"})
	if err != nil || id != "g-20001" {
		t.Errorf("GroupTarget.Reply() = %q, %v", id, err)
	}
}
