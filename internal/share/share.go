// Package share delivers the formatted workout list to an outside destination.
package share

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ErrShareFailed is returned when the destination rejects the shared text.
var ErrShareFailed = errors.New("share failed")

// Sharer delivers a titled text.
type Sharer interface {
	Share(ctx context.Context, title, text string) error
}

// Webhook POSTs {"title","text","sharedAt"} as JSON to a configured URL.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{url: url, client: &http.Client{Timeout: timeout}}
}

type webhookPayload struct {
	Title    string    `json:"title"`
	Text     string    `json:"text"`
	SharedAt time.Time `json:"sharedAt"`
}

func (h *Webhook) Share(ctx context.Context, title, text string) error {
	body, err := json.Marshal(webhookPayload{Title: title, Text: text, SharedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode share payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build share request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v, ok := ctx.Value("correlation_id").(string); ok && v != "" {
		req.Header.Set("X-Correlation-ID", v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrShareFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrShareFailed, resp.StatusCode)
	}
	return nil
}

// Writer prints the title and text to an io.Writer, one share after another.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (s *Writer) Share(ctx context.Context, title, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "%s\n\n%s\n", title, text); err != nil {
		return fmt.Errorf("%w: %v", ErrShareFailed, err)
	}
	return nil
}
