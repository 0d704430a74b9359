package analytics

import (
	"bytes"
	"context"
	"encoding/json"
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

const defaultGA4Endpoint = "https://www.google-analytics.com/mp/collect"

// GA4 sends events through the GA4 Measurement Protocol. It makes one
// request per event and never retries.
type GA4 struct {
	endpoint      string
	measurementID string
	apiSecret     string
	http          *http.Client
}

// NewGA4 builds a Measurement Protocol client. An empty endpoint uses the
// public collect URL.
func NewGA4(endpoint, measurementID, apiSecret string, timeout time.Duration) *GA4 {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = defaultGA4Endpoint
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &GA4{
		endpoint:      endpoint,
		measurementID: strings.TrimSpace(measurementID),
		apiSecret:     strings.TrimSpace(apiSecret),
		http:          &http.Client{Timeout: timeout},
	}
}

type ga4Payload struct {
	ClientID string     `json:"client_id"`
	Events   []ga4Event `json:"events"`
}

type ga4Event struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// Track posts the event. Visitors without a client id get a random one.
func (g *GA4) Track(ctx context.Context, event string, props map[string]any) (err error) {
	ctx, span := observability.Tracer("analytics").Start(ctx, "ga4.collect")
	span.SetAttributes(attribute.String("analytics.event", event))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	clientID := ClientID(ctx)
	if clientID == "" {
		clientID = ulid.Make().String()
	}
	body, err := json.Marshal(ga4Payload{
		ClientID: clientID,
		Events:   []ga4Event{{Name: event, Params: props}},
	})
	if err != nil {
		return fmt.Errorf("analytics: encode ga4 payload: %w", err)
	}

	u, err := url.Parse(g.endpoint)
	if err != nil {
		return fmt.Errorf("analytics: ga4 endpoint: %w", err)
	}
	q := u.Query()
	q.Set("measurement_id", g.measurementID)
	q.Set("api_secret", g.apiSecret)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("analytics: ga4 post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("analytics: ga4 status %d", resp.StatusCode)
	}
	return nil
}
