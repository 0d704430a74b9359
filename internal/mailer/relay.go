// Package mailer relays transactional email from the site's forms to a
// third-party email provider. Each request results in at most one provider
// call; nothing is retried or queued.
package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"finitefield.org/ledgerline-web/internal/analytics"
	"finitefield.org/ledgerline-web/internal/httpx"
	"finitefield.org/ledgerline-web/internal/observability"
)

const (
	missingFieldsMessage = "Missing required fields: to, subject, and one of html, text, or template"
	maxRecipients        = 50
	defaultMaxBody       = 64 << 10
)

var (
	// ErrMissingFields is returned when to, subject or a body is absent.
	ErrMissingFields = errors.New("mailer: missing required fields")
	// ErrInvalidRecipient is returned for unparsable addresses.
	ErrInvalidRecipient = errors.New("mailer: invalid recipient")
)

// Recipients accepts either a single address or a list in JSON.
type Recipients []string

// UnmarshalJSON decodes "a@x" or ["a@x", "b@y"].
func (r *Recipients) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if strings.TrimSpace(one) == "" {
			*r = nil
		} else {
			*r = Recipients{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("to: expected string or array of strings")
	}
	*r = many
	return nil
}

// Request is the relay's JSON input.
type Request struct {
	To       Recipients     `json:"to"`
	Subject  string         `json:"subject"`
	HTML     string         `json:"html,omitempty"`
	Text     string         `json:"text,omitempty"`
	Template string         `json:"template,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	From     string         `json:"from,omitempty"`
	ReplyTo  string         `json:"replyTo,omitempty"`
}

// Response is the relay's success payload.
type Response struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

// Relay validates requests, renders bodies and hands them to the provider.
type Relay struct {
	provider  Provider
	templates *Templates
	policy    *bluemonday.Policy
	from      string
	maxBody   int64
	tracker   analytics.Tracker
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithFrom sets the default sender.
func WithFrom(from string) RelayOption {
	return func(r *Relay) { r.from = strings.TrimSpace(from) }
}

// WithMaxBody caps the request body size in bytes.
func WithMaxBody(n int64) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.maxBody = n
		}
	}
}

// WithTracker records email_sent events.
func WithTracker(t analytics.Tracker) RelayOption {
	return func(r *Relay) {
		if t != nil {
			r.tracker = t
		}
	}
}

// NewRelay builds a relay. A nil template registry disables templates.
func NewRelay(p Provider, t *Templates, opts ...RelayOption) *Relay {
	r := &Relay{
		provider:  p,
		templates: t,
		policy:    emailPolicy(),
		from:      "Ledgerline <hello@ledgerline.dev>",
		maxBody:   defaultMaxBody,
		tracker:   analytics.Nop,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.templates == nil {
		r.templates = &Templates{byName: map[string]emailTemplate{}}
	}
	return r
}

func emailPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("table", "thead", "tbody", "tr", "th", "td", "center")
	p.AllowAttrs("align").OnElements("td", "th", "p", "table")
	p.RequireNoFollowOnLinks(false)
	return p
}

// Build validates req and resolves it into a Message.
func (r *Relay) Build(req Request) (Message, error) {
	to := make([]string, 0, len(req.To))
	for _, addr := range req.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	subject := strings.TrimSpace(req.Subject)
	tmpl := strings.TrimSpace(req.Template)
	if len(to) == 0 || subject == "" || (strings.TrimSpace(req.HTML) == "" && strings.TrimSpace(req.Text) == "" && tmpl == "") {
		return Message{}, ErrMissingFields
	}
	if len(to) > maxRecipients {
		return Message{}, fmt.Errorf("%w: too many recipients", ErrInvalidRecipient)
	}
	for _, addr := range to {
		if _, err := mail.ParseAddress(addr); err != nil {
			return Message{}, fmt.Errorf("%w: %s", ErrInvalidRecipient, addr)
		}
	}

	msg := Message{
		From:    r.sender(req.From),
		To:      to,
		Subject: subject,
		HTML:    req.HTML,
		Text:    req.Text,
	}
	if reply := strings.TrimSpace(req.ReplyTo); reply != "" {
		if _, err := mail.ParseAddress(reply); err != nil {
			return Message{}, fmt.Errorf("%w: %s", ErrInvalidRecipient, reply)
		}
		msg.ReplyTo = reply
	}
	if tmpl != "" {
		html, text, err := r.templates.Render(tmpl, req.Data)
		if err != nil {
			return Message{}, err
		}
		if msg.HTML == "" {
			msg.HTML = html
		}
		if msg.Text == "" {
			msg.Text = text
		}
	}
	if msg.HTML != "" {
		msg.HTML = r.policy.Sanitize(msg.HTML)
	}
	return msg, nil
}

// sender allows a per-request from address only on the default sender's
// domain, so the relay cannot be used to spoof other domains.
func (r *Relay) sender(requested string) string {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return r.from
	}
	want, err1 := mail.ParseAddress(r.from)
	got, err2 := mail.ParseAddress(requested)
	if err1 != nil || err2 != nil {
		return r.from
	}
	if strings.EqualFold(domainOf(want.Address), domainOf(got.Address)) {
		return got.String()
	}
	return r.from
}

func domainOf(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 {
		return addr[i+1:]
	}
	return ""
}

// Send builds the message and makes the single provider call.
func (r *Relay) Send(ctx context.Context, req Request) (string, error) {
	msg, err := r.Build(req)
	if err != nil {
		return "", err
	}
	id, err := r.provider.Send(ctx, msg)
	if err != nil {
		return "", err
	}
	props := map[string]any{"recipients": len(msg.To)}
	if req.Template != "" {
		props["template"] = req.Template
	}
	if err := r.tracker.Track(ctx, analytics.EventEmailSent, props); err != nil {
		observability.FromContext(ctx).Warn("email tracking failed", zap.Error(err))
	}
	return id, nil
}

// ServeHTTP implements POST /api/send-email.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	logger := observability.FromContext(ctx).Named("mailer")

	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		httpx.WriteError(ctx, w, httpx.NewError("method_not_allowed", "Method not allowed", http.StatusMethodNotAllowed))
		return
	}

	var body Request
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, r.maxBody))
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "Request body too large", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_json", "Invalid JSON body", http.StatusBadRequest))
		return
	}

	id, err := r.Send(ctx, body)
	switch {
	case err == nil:
		logger.Info("email sent", zap.String("message_id", id), zap.Int("recipients", len(body.To)))
		httpx.WriteJSON(w, http.StatusOK, Response{Success: true, MessageID: id})
	case errors.Is(err, ErrMissingFields):
		httpx.WriteError(ctx, w, httpx.NewError("missing_fields", missingFieldsMessage, http.StatusBadRequest))
	case errors.Is(err, ErrInvalidRecipient):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_recipient", err.Error(), http.StatusBadRequest))
	case errors.Is(err, ErrUnknownTemplate):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_template", err.Error(), http.StatusBadRequest))
	default:
		status := http.StatusBadGateway
		var detail any = err.Error()
		if pe, ok := AsProviderError(err); ok {
			if pe.Status >= 400 {
				status = pe.Status
			}
			detail = pe.Detail
		}
		logger.Warn("email provider error", zap.Int("status", status), zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("provider_error", "Failed to send email", status).WithDetails(detail))
	}
}
