// Package summarize rates captured pages through an OpenAI-compatible chat
// completions endpoint.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Prompt is sent ahead of the page content.
const Prompt = "Please analyze this document and return a JSON object with keys: rating (1-5), and report (a short parent-friendly summary)."

// ErrBadResponse is returned when the model reply is not a usable result.
var ErrBadResponse = errors.New("bad summarizer response")

// Result is a page rating with a short report.
type Result struct {
	Rating int    `json:"rating"`
	Report string `json:"report"`
}

// Summarizer rates raw page bytes. Implementations may be slow and may fail.
type Summarizer interface {
	Summarize(ctx context.Context, raw []byte) (*Result, error)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// RequestsPerMinute throttles outgoing calls; 0 disables throttling.
	RequestsPerMinute int
	// MaxInputBytes truncates the page before it is sent; 0 sends it whole.
	MaxInputBytes int
	HTTPClient    *http.Client
}

// Client talks to a chat completions API.
type Client struct {
	BaseURL  string
	APIKey   string
	Model    string
	client   *http.Client
	limiter  *rate.Limiter
	maxInput int
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}

	return &Client{
		BaseURL:  strings.TrimRight(opts.BaseURL, "/"),
		APIKey:   opts.APIKey,
		Model:    opts.Model,
		client:   httpClient,
		limiter:  limiter,
		maxInput: opts.MaxInputBytes,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize sends raw to the model and parses its JSON verdict. It waits
// for the rate limiter first, so a cancelled ctx returns without a request.
func (c *Client) Summarize(ctx context.Context, raw []byte) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limit: %w", err)
	}

	if c.maxInput > 0 && len(raw) > c.maxInput {
		raw = raw[:c.maxInput]
	}

	payload := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You rate web pages and answer with JSON only."},
			{Role: "user", Content: Prompt + "\n\n" + string(raw)},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(msg))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrBadResponse)
	}

	return ParseResult(chatResp.Choices[0].Message.Content)
}

// ParseResult decodes a model reply, tolerating a ```json fence, and
// checks the rating range.
func ParseResult(reply string) (*Result, error) {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	var r Result
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if r.Rating < 1 || r.Rating > 5 {
		return nil, fmt.Errorf("%w: rating %d out of range", ErrBadResponse, r.Rating)
	}
	return &r, nil
}
