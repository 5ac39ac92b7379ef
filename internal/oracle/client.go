package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/ayushsreejith06/sectorflow/internal/metrics"
	"github.com/ayushsreejith06/sectorflow/internal/model"
)

// Client circuit breaker settings. Oracle calls are the only
// unbounded-latency operations in the engine, so recovery is slow.
const (
	breakerMinRequests  = 3
	breakerFailureRatio = 0.6
	breakerOpenTimeout  = 60 * time.Second
	breakerCountWindow  = 10 * time.Second
)

// ClientConfig configures the HTTP oracle client.
type ClientConfig struct {
	BaseURL        string
	Model          string
	APIKey         string
	ResponseFormat string // "text", "json_object", "off"
	Timeout        time.Duration
	MaxRetries     int
	RequestsPerMin int
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	metrics    *metrics.Set
	log        zerolog.Logger
}

// NewClient creates an oracle client with sensible defaults filled in.
func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080/v1/chat/completions"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RequestsPerMin == 0 {
		cfg.RequestsPerMin = 60
	}

	clog := log.With().Str("component", "oracle").Logger()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "oracle",
		Interval: breakerCountWindow,
		Timeout:  breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= breakerMinRequests && failureRatio >= breakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			clog.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Oracle circuit breaker state changed")
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		limiter:    rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMin)/60.0), cfg.RequestsPerMin),
		metrics:    metrics.Default(),
		log:        clog,
	}
}

// Enabled reports true; a constructed client is always willing to try.
func (c *Client) Enabled() bool { return true }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model,omitempty"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt, retrying with exponential backoff. An open
// circuit breaker or exhausted retries surface as ErrOracleUnavailable so
// callers fall back to the deterministic policy.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * time.Second
			c.log.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying oracle request")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		c.metrics.OracleRequests.Inc()

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doRequest(ctx, req)
		})
		if err == nil {
			return result.(string), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("oracle circuit open: %w", model.ErrOracleUnavailable)
		}
		lastErr = err
	}

	return "", fmt.Errorf("oracle failed after %d attempts: %v: %w",
		c.cfg.MaxRetries+1, lastErr, model.ErrOracleUnavailable)
}

func (c *Client) doRequest(ctx context.Context, req Request) (string, error) {
	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
	}
	if req.JSONMode && c.cfg.ResponseFormat == "json_object" {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read oracle response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, string(raw))
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return "", fmt.Errorf("failed to parse oracle response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("oracle response has no choices")
	}

	c.log.Debug().
		Str("model", c.cfg.Model).
		Dur("duration", time.Since(start)).
		Msg("Oracle request completed")

	return chat.Choices[0].Message.Content, nil
}
