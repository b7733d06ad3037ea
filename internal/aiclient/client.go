// Package aiclient is the HTTP client for the external AI agent endpoint.
// The AI service is opaque: requests are JSON payloads, responses are opaque
// JSON documents. The plant id is forwarded as a header so the AI call can
// reach plant-scoped state on its side.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/momo-ra/ai-agent-microservices-v1/pkg/config"
)

// ChatRequest is the payload sent to the chat endpoint of the AI agent.
type ChatRequest struct {
	InputMessage string `json:"input_message"`
	SessionID    string `json:"session_id"`
}

// Client calls the external AI agent with a bounded timeout.
type Client struct {
	url  string
	http *http.Client
	log  *zap.Logger
}

// New creates an AI agent client from configuration.
func New(cfg config.AIConfig, log *zap.Logger) *Client {
	return &Client{
		url:  cfg.URL,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// Chat sends a chat message and returns the AI response as an opaque JSON
// document.
func (c *Client) Chat(ctx context.Context, plantID uint, req ChatRequest) (json.RawMessage, error) {
	return c.post(ctx, c.url, plantID, req)
}

// Advise sends an arbitrary payload (e.g. an assembled calc-engine request)
// to the AI agent.
func (c *Client) Advise(ctx context.Context, plantID uint, payload any) (json.RawMessage, error) {
	return c.post(ctx, c.url, plantID, payload)
}

func (c *Client) post(ctx context.Context, url string, plantID uint, payload any) (json.RawMessage, error) {
	if url == "" {
		return nil, fmt.Errorf("AI agent URL is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode AI request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Plant-Id", strconv.FormatUint(uint64(plantID), 10))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("AI agent request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read AI response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error("AI agent returned error status",
			zap.Int("status", resp.StatusCode),
			zap.Uint("plant_id", plantID))
		return nil, fmt.Errorf("AI agent status %d", resp.StatusCode)
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("AI agent returned invalid JSON")
	}
	return json.RawMessage(raw), nil
}

// CheckConnection probes the AI endpoint with a GET and a small POST and
// reports whether it answered with valid JSON. Used by the diagnostics
// endpoint.
func (c *Client) CheckConnection(ctx context.Context, url string) error {
	if url == "" {
		url = c.url
	}
	if url == "" {
		return fmt.Errorf("AI agent URL is not configured")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("invalid AI agent URL %q", url)
	}

	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	getResp, err := c.http.Do(getReq)
	if err != nil {
		return fmt.Errorf("GET probe: %w", err)
	}
	getResp.Body.Close()
	c.log.Info("AI connection GET probe", zap.Int("status", getResp.StatusCode))

	probe, _ := json.Marshal(map[string]string{"input": "Test connection"})
	postReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(probe))
	if err != nil {
		return err
	}
	postReq.Header.Set("Content-Type", "application/json")
	postResp, err := c.http.Do(postReq)
	if err != nil {
		return fmt.Errorf("POST probe: %w", err)
	}
	defer postResp.Body.Close()

	raw, err := io.ReadAll(postResp.Body)
	if err != nil {
		return fmt.Errorf("read probe response: %w", err)
	}
	if !json.Valid(raw) {
		return fmt.Errorf("AI agent probe returned invalid JSON")
	}
	c.log.Info("AI connection POST probe", zap.Int("status", postResp.StatusCode))
	return nil
}
