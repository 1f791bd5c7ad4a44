package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/notecap/pkg/core"
)

// HTTP asks a remote backend for a title and tags.
// Request: POST {"content": "..."}. Response: {"title": "...", "tags": [...]}.
type HTTP struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

// NewHTTP creates an HTTP generator for endpoint.
func NewHTTP(endpoint, token string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		Endpoint: endpoint,
		Token:    token,
		Client:   &http.Client{Timeout: timeout},
	}
}

type httpRequest struct {
	Content string `json:"content"`
}

// Generate implements core.Generator.
func (h *HTTP) Generate(ctx context.Context, content string) (core.Suggestion, error) {
	body, err := json.Marshal(httpRequest{Content: content})
	if err != nil {
		return core.Suggestion{}, h.fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return core.Suggestion{}, h.fail(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return core.Suggestion{}, h.fail(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return core.Suggestion{}, h.fail(err)
	}
	if resp.StatusCode/100 != 2 {
		return core.Suggestion{}, h.fail(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var s core.Suggestion
	if err := json.Unmarshal(data, &s); err != nil {
		return core.Suggestion{}, h.fail(fmt.Errorf("decode response: %w", err))
	}
	s.Title = strings.TrimSpace(s.Title)
	if s.Title == "" {
		return core.Suggestion{}, h.fail(fmt.Errorf("response has no title"))
	}
	return s, nil
}

func (h *HTTP) fail(err error) error {
	return &core.GeneratorError{Generator: "http", Err: err}
}
