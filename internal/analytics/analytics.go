// Package analytics is the event-tracking capability injected into the
// section router, the FAQ accordion and page handlers.
package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Event names emitted by the site.
const (
	EventPageView  = "page_view"
	EventFAQToggle = "faq_toggle"
	EventROI       = "roi_calculated"
	EventEmailSent = "email_sent"
)

// Tracker accepts (event, properties) pairs.
type Tracker interface {
	Track(ctx context.Context, event string, props map[string]any) error
}

// TrackerFunc adapts a function to Tracker.
type TrackerFunc func(ctx context.Context, event string, props map[string]any) error

// Track calls f.
func (f TrackerFunc) Track(ctx context.Context, event string, props map[string]any) error {
	return f(ctx, event, props)
}

// Nop discards every event.
var Nop Tracker = TrackerFunc(func(context.Context, string, map[string]any) error { return nil })

// Tags are the client-side instrumentation ids surfaced to templates.
type Tags struct {
	GA4MeasurementID string
	GTMContainerID   string
	Debug            bool
}

type clientIDKey struct{}

// WithClientID scopes events to an anonymous visitor id (the session id).
func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, id)
}

// ClientID returns the visitor id attached by WithClientID.
func ClientID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(clientIDKey{}).(string)
	return id
}

// Event is one captured analytics event.
type Event struct {
	ID       string
	Name     string
	Props    map[string]any
	ClientID string
	At       time.Time
}

// Recorder keeps events in memory. When Err is set Track records the event
// and then returns Err.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

// Track records the event.
func (r *Recorder) Track(ctx context.Context, event string, props map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{
		ID:       ulid.Make().String(),
		Name:     event,
		Props:    cloneProps(props),
		ClientID: ClientID(ctx),
		At:       time.Now().UTC(),
	})
	return r.Err
}

// Events returns a snapshot of recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns recorded events with the given name.
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// LogTracker writes events to a zap logger at debug level.
type LogTracker struct {
	Logger *zap.Logger
}

// Track logs the event.
func (l LogTracker) Track(ctx context.Context, event string, props map[string]any) error {
	logger := l.Logger
	if logger == nil {
		return nil
	}
	logger.Debug("analytics event",
		zap.String("event", event),
		zap.String("client_id", ClientID(ctx)),
		zap.Any("props", props),
	)
	return nil
}

// Multi fans out to every tracker and joins their errors.
func Multi(trackers ...Tracker) Tracker {
	return TrackerFunc(func(ctx context.Context, event string, props map[string]any) error {
		var errs []error
		for _, t := range trackers {
			if t == nil {
				continue
			}
			if err := t.Track(ctx, event, props); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

func cloneProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
