package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"finitefield.org/ledgerline-web/internal/observability"
	"finitefield.org/ledgerline-web/internal/sectionrouter"
)

const (
	sessionCookieName = "LEDGERLINE_SESSION"
	sessionTTL        = 30 * 24 * time.Hour
)

// SessionData is the visitor state carried in the signed cookie.
type SessionData struct {
	ID        string              `json:"id"`
	Locale    string              `json:"locale,omitempty"`
	CSRFToken string              `json:"csrf,omitempty"`
	Nav       sectionrouter.State `json:"nav"`
	FAQOpen   []string            `json:"faq,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
	// internal dirty flag; not serialized
	dirty bool
}

// MarkDirty flags the session for writing before the response is sent.
func (s *SessionData) MarkDirty() { s.dirty = true; s.UpdatedAt = time.Now().UTC() }

// SetNav stores navigation state.
func (s *SessionData) SetNav(st sectionrouter.State) {
	if s.Nav == st {
		return
	}
	s.Nav = st
	s.MarkDirty()
}

// SetFAQOpen stores the open FAQ item ids.
func (s *SessionData) SetFAQOpen(ids []string) {
	s.FAQOpen = ids
	s.MarkDirty()
}

// SessionStore signs and verifies the session cookie.
type SessionStore struct {
	key    []byte
	secure bool
}

// NewSessionStore returns a store using signingKey. An empty key yields a
// process-ephemeral key, which only suits development.
func NewSessionStore(signingKey string, secure bool, logger *zap.Logger) *SessionStore {
	key := []byte(signingKey)
	if signingKey == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			key = []byte("insecure-dev-key-set-LEDGERLINE_WEB_SESSION_SIGNING_KEY")
		}
		if logger != nil {
			logger.Warn("session: using ephemeral signing key; set LEDGERLINE_WEB_SESSION_SIGNING_KEY for production")
		}
	}
	return &SessionStore{key: key, secure: secure}
}

// Secure reports whether cookies carry the Secure attribute.
func (s *SessionStore) Secure() bool { return s.secure }

// Middleware loads or initialises the session and writes it back before the
// first byte of the response when it changed.
func (s *SessionStore) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sd, fromCookie := s.read(r)
		if sd.ID == "" {
			now := time.Now().UTC()
			sd = &SessionData{ID: randID(), CreatedAt: now, UpdatedAt: now, CSRFToken: newCSRFToken(), dirty: true}
		}
		sw := &sessionWriter{ResponseWriter: w}
		sw.before = func() {
			if sd.dirty || !fromCookie {
				s.write(w, r, sd)
			}
		}
		next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), ctxKeySession, sd)))
		// nothing written yet (e.g. empty 200)
		sw.flushCookie()
	})
}

// GetSession returns session data from context
func GetSession(r *http.Request) *SessionData {
	if sd, ok := r.Context().Value(ctxKeySession).(*SessionData); ok && sd != nil {
		return sd
	}
	return &SessionData{}
}

func (s *SessionStore) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return mac.Sum(nil)
}

func (s *SessionStore) read(r *http.Request) (*SessionData, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return &SessionData{}, false
	}
	payloadPart, sigPart, ok := strings.Cut(c.Value, ".")
	if !ok {
		return &SessionData{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return &SessionData{}, false
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil || !hmac.Equal(sig, s.sign(payload)) {
		return &SessionData{}, false
	}
	var sd SessionData
	if err := json.Unmarshal(payload, &sd); err != nil {
		return &SessionData{}, false
	}
	return &sd, true
}

// Encode returns the signed cookie value for sd.
func (s *SessionStore) Encode(sd *SessionData) (string, error) {
	b, err := json.Marshal(sd)
	if err != nil {
		return "", fmt.Errorf("session: encode: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b) + "." + base64.RawURLEncoding.EncodeToString(s.sign(b)), nil
}

// write sets the session cookie. An unencodable session leaves the
// visitor's existing cookie untouched.
func (s *SessionStore) write(w http.ResponseWriter, r *http.Request, sd *SessionData) {
	value, err := s.Encode(sd)
	if err != nil {
		observability.FromContext(r.Context()).Error("session cookie not written", zap.String("session_id", sd.ID), zap.Error(err))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sessionTTL),
	})
}

// sessionWriter runs before once, just ahead of the first header write.
type sessionWriter struct {
	http.ResponseWriter
	before func()
	done   bool
}

func (w *sessionWriter) flushCookie() {
	if w.done {
		return
	}
	w.done = true
	w.before()
}

func (w *sessionWriter) WriteHeader(code int) {
	w.flushCookie()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.flushCookie()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Flush() {
	w.flushCookie()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *sessionWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func randID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
