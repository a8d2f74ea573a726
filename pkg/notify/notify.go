// Package notify delivers outbound messages through the Fonnte-style
// WhatsApp webhook. Delivery is best-effort: one POST, no retry.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Config for the messaging transport.
type Config struct {
	API      string
	Token    string
	DeviceNo string
	Timeout  time.Duration
}

// Client sends messages to a fixed destination via the messaging webhook.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *logrus.Logger
}

// NewClient creates a messaging client.
func NewClient(cfg Config, log *logrus.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
	}
}

type sendRequest struct {
	Target  string `json:"target"`
	Message string `json:"message"`
}

// Send delivers one message and reports whether the transport accepted it.
// With missing credentials it logs a warning and returns false without a
// network call. A failed delivery is logged and dropped, never retried.
func (c *Client) Send(ctx context.Context, message string) bool {
	if c.cfg.Token == "" || c.cfg.DeviceNo == "" {
		c.log.Warn("Messaging token/device not configured, dropping notification")
		return false
	}

	body, err := json.Marshal(sendRequest{Target: c.cfg.DeviceNo, Message: message})
	if err != nil {
		c.log.WithError(err).Error("Failed to marshal notification")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.API, bytes.NewBuffer(body))
	if err != nil {
		c.log.WithError(err).Error("Failed to create notification request")
		return false
	}
	req.Header.Set("Authorization", c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).Error("Failed to send notification")
		return false
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	c.log.WithFields(logrus.Fields{
		"status": resp.StatusCode,
		"ok":     ok,
	}).Info("Notification sent")
	return ok
}
