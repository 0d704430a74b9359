package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"finitefield.org/ledgerline-web/internal/observability"
)

const defaultProviderTimeout = 10 * time.Second

// Message is a fully resolved outbound email.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

// Provider delivers one message. Implementations make a single attempt.
type Provider interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// ProviderError carries the provider's status and error detail back to the
// relay caller.
type ProviderError struct {
	Status int
	Detail any
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("mailer: provider status %d: %v", e.Status, e.Detail)
}

// HTTPProvider talks to a Resend-compatible transactional email API:
// POST {base}/emails with a bearer key, answering {"id": ...}.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPProvider builds the provider client.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http:    &http.Client{Timeout: timeout},
	}
}

type providerRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type providerResponse struct {
	ID string `json:"id"`
}

// Send posts the message and returns the provider message id.
func (p *HTTPProvider) Send(ctx context.Context, msg Message) (id string, err error) {
	ctx, span := observability.Tracer("mailer").Start(ctx, "mailer.send")
	span.SetAttributes(attribute.Int("email.recipients", len(msg.To)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("email.message_id", id))
		}
		span.End()
	}()

	endpoint, err := url.JoinPath(p.baseURL, "emails")
	if err != nil {
		return "", fmt.Errorf("mailer: endpoint: %w", err)
	}
	payload, err := json.Marshal(providerRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	})
	if err != nil {
		return "", fmt.Errorf("mailer: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", &ProviderError{Status: http.StatusBadGateway, Detail: err.Error()}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	if resp.StatusCode >= 400 {
		return "", &ProviderError{Status: resp.StatusCode, Detail: providerDetail(body)}
	}
	var out providerResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &ProviderError{Status: http.StatusBadGateway, Detail: "invalid provider response"}
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", &ProviderError{Status: http.StatusBadGateway, Detail: "provider returned no message id"}
	}
	return out.ID, nil
}

// providerDetail keeps structured JSON errors as-is and falls back to text.
func providerDetail(body []byte) any {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	var structured map[string]any
	if err := json.Unmarshal(body, &structured); err == nil {
		return structured
	}
	s := string(body)
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}

// FakeProvider accepts every message and returns a ULID. Used when no API key
// is configured.
type FakeProvider struct{}

// Send returns a synthetic message id.
func (FakeProvider) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "fake_" + strings.ToLower(ulid.Make().String()), nil
}

// NewProvider picks the HTTP provider when apiKey is set, else the fake.
func NewProvider(baseURL, apiKey string, timeout time.Duration) Provider {
	if strings.TrimSpace(apiKey) == "" {
		return FakeProvider{}
	}
	return NewHTTPProvider(baseURL, apiKey, timeout)
}

// AsProviderError unwraps err into a ProviderError.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
