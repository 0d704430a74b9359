package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestHTTPProviderSend(t *testing.T) {
	sr := withSpanRecorder(t)

	var got providerRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/emails", r.URL.Path)
		require.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"4ef9a417-02e9-4d39-ad75-9611e0fcc33c"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL+"/", "re_test", time.Second)
	id, err := p.Send(context.Background(), Message{
		From:    "Ledgerline <hello@ledgerline.dev>",
		To:      []string{"a@example.com"},
		Subject: "Hi",
		Text:    "hello",
		ReplyTo: "sales@ledgerline.dev",
	})
	require.NoError(t, err)
	require.Equal(t, "4ef9a417-02e9-4d39-ad75-9611e0fcc33c", id)
	require.Equal(t, []string{"a@example.com"}, got.To)
	require.Equal(t, "sales@ledgerline.dev", got.ReplyTo)
	require.Empty(t, got.HTML)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "mailer.send", spans[0].Name())
}

func TestHTTPProviderErrorDetail(t *testing.T) {
	withSpanRecorder(t)

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"statusCode":403,"name":"validation_error","message":"The ledgerline.dev domain is not verified."}`))
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, "re_test", time.Second).Send(context.Background(), Message{To: []string{"a@example.com"}})
	pe, ok := AsProviderError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, pe.Status)
	require.Equal(t, "validation_error", pe.Detail.(map[string]any)["name"])
	require.Equal(t, 1, calls)
}

func TestHTTPProviderTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPProvider(url, "k", time.Second).Send(context.Background(), Message{To: []string{"a@example.com"}})
	pe, ok := AsProviderError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadGateway, pe.Status)
}

func TestHTTPProviderRejectsMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, "k", time.Second).Send(context.Background(), Message{To: []string{"a@example.com"}})
	require.Error(t, err)
}

func TestNewProviderSelectsHTTPWithKey(t *testing.T) {
	_, ok := NewProvider("https://api.resend.com", "re_live", time.Second).(*HTTPProvider)
	require.True(t, ok)
}

func TestTemplatesNames(t *testing.T) {
	tmpl, err := NewTemplates()
	require.NoError(t, err)
	require.Equal(t, []string{"contact-confirmation", "demo-request", "free-trial-welcome"}, tmpl.Names())

	html, text, err := tmpl.Render("demo-request", map[string]any{"name": "Jo"})
	require.NoError(t, err)
	require.Contains(t, html, "<td>Jo</td>")
	require.Contains(t, text, "Company: -")
}
