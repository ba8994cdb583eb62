package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tamaskk/foodybackend-sub000/core"
)

// SignatureHeader carries the hex HMAC-SHA256 of the body when a secret is set.
const SignatureHeader = "X-Progression-Signature"

// Sink posts notifications and domain events to configured HTTP endpoints.
// It is synchronous for determinism; keep receivers fast.
type Sink struct {
	client    *http.Client
	endpoints []string
	secret    []byte
	logger    *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithSecret signs every body with secret.
func WithSecret(secret string) Option {
	return func(s *Sink) { s.secret = []byte(secret) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// Record delivers a notification to every endpoint. It returns the joined
// delivery errors; the engine logs them and leaves the record unnotified.
func (s *Sink) Record(ctx context.Context, n core.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.post(ctx, "notification", body)
}

// OnEvent posts the event JSON to all endpoints. Failures are logged.
func (s *Sink) OnEvent(e core.Event) {
	body, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := s.post(context.Background(), "event", body); err != nil {
		s.logger.Warn("webhook event delivery failed", "type", e.Type, "user_id", e.UserID, "error", err)
	}
}

func (s *Sink) post(ctx context.Context, kind string, body []byte) error {
	var errs []error
	for _, ep := range s.endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep, bytes.NewReader(body))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Progression-Kind", kind)
		if len(s.secret) > 0 {
			req.Header.Set(SignatureHeader, Sign(s.secret, body))
		}
		resp, err := s.client.Do(req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			errs = append(errs, fmt.Errorf("webhook %s returned %d", ep, resp.StatusCode))
		}
	}
	return errors.Join(errs...)
}

// Sign returns the signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret.
func Verify(secret, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
