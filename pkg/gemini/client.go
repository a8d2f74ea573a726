// Package gemini provides the client for the AI analysis backend used to
// enrich notifications with a short security summary.
//
// Analyze never returns an error: when the backend is unconfigured, rate
// limited past the retry budget, or answers garbage, the caller receives a
// displayable fallback string so the notification pipeline is never blocked
// by enrichment.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/telunas/sshwatch/internal/types"
)

const (
	// shortPromptLimit bounds the prompt in PromptShort mode, keeping the
	// payload small during high-frequency brute-force bursts.
	shortPromptLimit = 300

	// disabledText is returned when no API key is configured.
	disabledText = "(AI nonaktif: GEMINI_API_KEY tidak diset)"
)

// Config for the Gemini client.
type Config struct {
	APIKey      string
	Endpoint    string
	Timeout     time.Duration
	MaxAttempts int
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *logrus.Logger

	// sleep is swapped out in tests to observe backoff without waiting.
	sleep func(time.Duration)
}

// NewClient creates a Gemini client.
func NewClient(cfg Config, log *logrus.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log:   log,
		sleep: time.Sleep,
	}
}

// Wire format of the generateContent request/response.
type generateRequest struct {
	Contents []requestContent `json:"contents"`
}

type requestContent struct {
	Parts []textPart `json:"parts"`
}

type textPart struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []textPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Analyze asks the model for a security summary of prompt. In PromptShort
// mode the prompt is truncated to a bounded length before sending. Rate
// limiting (429) and timeouts are retried up to the attempt budget with
// linearly increasing backoff; any other failure degrades immediately to a
// fallback string embedded in the returned text.
func (c *Client) Analyze(ctx context.Context, prompt string, mode types.PromptMode) string {
	if c.cfg.APIKey == "" {
		return disabledText
	}
	if mode == types.PromptShort && len(prompt) > shortPromptLimit {
		prompt = prompt[:shortPromptLimit] + "..."
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		text, retryable, err := c.generate(ctx, prompt)
		if err == nil {
			return text
		}
		if !retryable {
			c.log.WithError(err).Warn("AI analysis failed")
			return fmt.Sprintf("(AI error: %v)", err)
		}
		lastErr = err
		if attempt < c.cfg.MaxAttempts {
			backoff := time.Duration(attempt) * 2 * time.Second
			c.log.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": backoff.String(),
			}).Warn("AI analysis retrying")
			c.sleep(backoff)
		}
	}
	c.log.WithError(lastErr).Warn("AI analysis retries exhausted")
	return fmt.Sprintf("(AI error: %v)", lastErr)
}

// generate performs a single generateContent call. retryable reports whether
// the failure is a rate limit or timeout worth retrying.
func (c *Client) generate(ctx context.Context, prompt string) (text string, retryable bool, err error) {
	payload := generateRequest{
		Contents: []requestContent{{Parts: []textPart{{Text: prompt}}}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s?key=%s", c.cfg.Endpoint, url.QueryEscape(c.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", isTimeout(err), fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", true, fmt.Errorf("rate limited (status %d)", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", false, fmt.Errorf("malformed response body: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 ||
		out.Candidates[0].Content.Parts[0].Text == "" {
		return "", false, fmt.Errorf("empty response from model")
	}
	return out.Candidates[0].Content.Parts[0].Text, false, nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
