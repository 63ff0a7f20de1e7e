package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ghnotify/github-render-webhook/internal/models"
)

// OneBot v11 HTTP actions
const (
	ActionSendPrivateMsg = "send_private_msg"
	ActionSendGroupMsg   = "send_group_msg"
)

// APIError represents a failed OneBot action
type APIError struct {
	Action     string
	StatusCode int
	Status     string
	Retcode    int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != http.StatusOK {
		return fmt.Sprintf("onebot %s: http status %d", e.Action, e.StatusCode)
	}
	return fmt.Sprintf("onebot %s: status=%s retcode=%d msg=%s", e.Action, e.Status, e.Retcode, e.Message)
}

// segment is a OneBot message segment
type segment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

// OneBotClient sends images through a OneBot v11 HTTP endpoint
type OneBotClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *logrus.Logger
}

// NewOneBotClient creates a new OneBot client
func NewOneBotClient(baseURL, token string, timeout time.Duration, logger *logrus.Logger) *OneBotClient {
	return &OneBotClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// SendPrivate sends the image to a user
func (c *OneBotClient) SendPrivate(ctx context.Context, userID string, artifact models.Artifact) (string, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	return c.send(ctx, ActionSendPrivateMsg, map[string]interface{}{
		"user_id": id,
		"message": imageMessage(artifact),
	})
}

// SendGroup sends the image to a group
func (c *OneBotClient) SendGroup(ctx context.Context, groupID string, artifact models.Artifact) (string, error) {
	id, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid group id %q: %w", groupID, err)
	}

	return c.send(ctx, ActionSendGroupMsg, map[string]interface{}{
		"group_id": id,
		"message":  imageMessage(artifact),
	})
}

func (c *OneBotClient) send(ctx context.Context, action string, payload map[string]interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+action, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", action, err)
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		return "", &APIError{Action: action, StatusCode: res.StatusCode}
	}

	var r struct {
		Status  string `json:"status"`
		Retcode int    `json:"retcode"`
		Message string `json:"message"`
		Wording string `json:"wording"`
		Data    struct {
			MessageID json.Number `json:"message_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return "", fmt.Errorf("decode %s response: %w", action, err)
	}
	if r.Status == "failed" || r.Retcode != 0 {
		msg := r.Message
		if msg == "" {
			msg = r.Wording
		}
		return "", &APIError{
			Action:     action,
			StatusCode: res.StatusCode,
			Status:     r.Status,
			Retcode:    r.Retcode,
			Message:    msg,
		}
	}

	c.logger.WithFields(logrus.Fields{
		"action":     action,
		"message_id": r.Data.MessageID.String(),
	}).Debug("OneBot message sent")

	return r.Data.MessageID.String(), nil
}

func imageMessage(artifact models.Artifact) []segment {
	return []segment{{
		Type: "image",
		Data: map[string]string{"file": "base64://" + artifact.Base64},
	}}
}
