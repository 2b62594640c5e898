package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxErrorBody = 64 << 10

// ProviderError is a non-2xx answer from the email provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s returned status %d (%s): %s", e.Provider, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, msg)
}

// BrevoClient sends transactional emails through the Brevo v3 HTTP API.
type BrevoClient struct {
	BaseURL string
	apiKey  string
	client  *http.Client
}

// NewBrevoClient creates a Brevo sender. timeout bounds every HTTP exchange.
func NewBrevoClient(baseURL, apiKey string, timeout time.Duration) *BrevoClient {
	return &BrevoClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (b *BrevoClient) Name() string {
	return "brevo"
}

type brevoRequest struct {
	Sender      Address   `json:"sender"`
	To          []Address `json:"to"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"htmlContent"`
}

type brevoError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (b *BrevoClient) Send(ctx context.Context, email Email) error {
	payload := brevoRequest{
		Sender:      email.Sender,
		To:          email.To,
		Subject:     email.Subject,
		HTMLContent: email.HTMLContent,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal brevo payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL+"/smtp/email", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create brevo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send brevo email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	perr := &ProviderError{Provider: b.Name(), StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var be brevoError
	if json.Unmarshal(body, &be) == nil {
		perr.Code = be.Code
		perr.Message = be.Message
	} else {
		perr.Message = strings.TrimSpace(string(body))
	}
	return perr
}
