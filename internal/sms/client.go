// Package sms sends SMS and MMS through an HTTP gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadflow/platform/config"
	"leadflow/platform/logger"
	"leadflow/platform/phone"
)

type Client struct {
	baseURL string
	apiKey  string
	region  string
	http    *http.Client
	log     *logger.Logger
}

type sendRequest struct {
	To        string   `json:"to"`
	From      string   `json:"from,omitempty"`
	Body      string   `json:"body"`
	MediaURLs []string `json:"mediaUrls,omitempty"`
}

type sendResponse struct {
	ID        string `json:"id"`
	MessageID string `json:"messageId"`
}

// NewClient returns nil when no gateway URL is configured.
func NewClient(cfg config.SMSConfig, log *logger.Logger) *Client {
	if cfg.GetSMSGatewayURL() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetSMSGatewayURL(), "/"),
		apiKey:  cfg.GetSMSGatewayKey(),
		region:  cfg.GetPhoneDefaultRegion(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// SendSMS sends a text message and returns the gateway message id.
func (c *Client) SendSMS(ctx context.Context, to, from, body string) (string, error) {
	return c.send(ctx, sendRequest{To: to, From: from, Body: body})
}

// SendMMS sends a message with one media attachment.
func (c *Client) SendMMS(ctx context.Context, to, from, body, mediaURL string) (string, error) {
	req := sendRequest{To: to, From: from, Body: body}
	if mediaURL != "" {
		req.MediaURLs = []string{mediaURL}
	}
	return c.send(ctx, req)
}

func (c *Client) send(ctx context.Context, payload sendRequest) (string, error) {
	if c == nil {
		return "", fmt.Errorf("sms gateway not configured")
	}

	payload.To = phone.NormalizeE164InRegion(payload.To, c.region)
	if payload.From != "" {
		payload.From = phone.NormalizeE164InRegion(payload.From, c.region)
	}
	if payload.To == "" {
		return "", fmt.Errorf("sms recipient is empty")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal sms payload: %w", err)
	}

	url := fmt.Sprintf("%s/messages", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var decoded sendResponse
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			return "", fmt.Errorf("decode sms gateway response: %w", err)
		}
	}
	id := decoded.ID
	if id == "" {
		id = decoded.MessageID
	}

	c.log.Info("sms sent via gateway", "to", payload.To, "mms", len(payload.MediaURLs) > 0, "providerMessageId", id)
	return id, nil
}

func formatAuthHeader(apiKey string) string {
	lower := strings.ToLower(apiKey)
	if strings.HasPrefix(lower, "basic ") || strings.HasPrefix(lower, "bearer ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}
