package auth

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/ghnotify/github-render-webhook/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const (
	// HeaderSignature carries the HMAC-SHA1 of the request body
	HeaderSignature = "X-Hub-Signature"

	// HeaderEvent carries the webhook event type
	HeaderEvent = "X-GitHub-Event"

	// HeaderDelivery carries GitHub's unique delivery id
	HeaderDelivery = "X-GitHub-Delivery"
)

type bodyKey struct{}

// Authenticator verifies webhook signatures before any handler sees the request
type Authenticator struct {
	secret string
	logger *logrus.Logger
}

// NewAuthenticator creates a new Authenticator for the shared webhook secret
func NewAuthenticator(secret string, logger *logrus.Logger) *Authenticator {
	return &Authenticator{
		secret: secret,
		logger: logger,
	}
}

// Middleware returns an HTTP middleware that buffers the complete body,
// verifies its signature and rejects the request with 401 on mismatch.
// Verified bodies are available to the next handler through BodyFromContext.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		event := r.Header.Get(HeaderEvent)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"remote_addr": r.RemoteAddr,
				"event":       event,
			}).WithError(err).Warn("Failed to read webhook body")

			metrics.RecordWebhookRequest(event, "bad_request")
			http.Error(w, "Failed to read body", http.StatusBadRequest)
			return
		}
		r.Body.Close()

		if !VerifySignature(r.Header.Get(HeaderSignature), body, a.secret) {
			a.logger.WithFields(logrus.Fields{
				"remote_addr": r.RemoteAddr,
				"event":       event,
				"delivery_id": r.Header.Get(HeaderDelivery),
			}).Error("Signature verification failed")

			metrics.RecordWebhookRequest(event, "unauthorized")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Invalid signature"))
			return
		}

		// Restore the body for handlers that read it directly
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), bodyKey{}, body)))
	})
}

// BodyFromContext returns the verified request body stored by Middleware
func BodyFromContext(ctx context.Context) ([]byte, bool) {
	body, ok := ctx.Value(bodyKey{}).([]byte)
	return body, ok
}
