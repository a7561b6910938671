// Package notify delivers push notifications to registered devices through
// an Expo-compatible push endpoint. Delivery is best-effort: failures are
// logged, never surfaced to the request that triggered them.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/graemedakers/decision-jar/pkg/config"
	"github.com/hashicorp/go-retryablehttp"
)

// Message is one notification fanned out to a set of device tokens.
type Message struct {
	Tokens []string          `json:"-"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// Pusher sends a message to devices. Sender is the production
// implementation; tests substitute a recording fake.
type Pusher interface {
	Send(ctx context.Context, msg Message) error
}

type Sender struct {
	endpoint string
	enabled  bool
	client   *retryablehttp.Client
	logger   *slog.Logger
}

func NewSender(cfg config.PushConfig, logger *slog.Logger) *Sender {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil // retry noise goes through our own logger

	return &Sender{
		endpoint: cfg.Endpoint,
		enabled:  cfg.Enabled,
		client:   client,
		logger:   logger,
	}
}

type pushPayload struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Send posts one payload per device token. Tokens that fail do not abort the
// rest of the batch.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if !s.enabled || len(msg.Tokens) == 0 {
		return nil
	}

	payloads := make([]pushPayload, 0, len(msg.Tokens))
	for _, token := range msg.Tokens {
		payloads = append(payloads, pushPayload{
			To:    token,
			Title: msg.Title,
			Body:  msg.Body,
			Data:  msg.Data,
		})
	}

	body, err := json.Marshal(payloads)
	if err != nil {
		return fmt.Errorf("marshaling push payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}

	s.logger.Debug("push sent", "devices", len(msg.Tokens), "title", msg.Title)
	return nil
}

var _ Pusher = (*Sender)(nil)
