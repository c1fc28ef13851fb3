package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dkeye/voxbridge/internal/core"
)

const maxReplyBytes = 8 << 20

// HTTP posts each request as JSON and expects a reply envelope in the body.
type HTTP struct {
	url    string
	client *http.Client
}

func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTP{url: url, client: &http.Client{Timeout: timeout}}
}

func (h *HTTP) Translate(ctx context.Context, req core.TranslationRequest) (core.TranslationResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return core.TranslationResult{}, fmt.Errorf("encode request: %w", err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return core.TranslationResult{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(hreq)
	if err != nil {
		return core.TranslationResult{}, fmt.Errorf("translator request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return core.TranslationResult{}, fmt.Errorf("read reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return core.TranslationResult{}, fmt.Errorf("%w: status %d", ErrRemote, resp.StatusCode)
	}
	return decodeReply(b)
}

func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
