// Package disclosure tracks which items of an accordion are expanded.
package disclosure

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"finitefield.org/ledgerline-web/internal/analytics"
)

// Set holds the ids of open items. Items toggle independently; any number may
// be open at once. The zero value is an empty set.
type Set struct {
	open map[string]struct{}
}

// FromIDs restores a set, e.g. from session storage.
func FromIDs(ids []string) *Set {
	s := &Set{}
	for _, id := range ids {
		if id = normalize(id); id != "" {
			s.add(id)
		}
	}
	return s
}

// Toggle flips id and reports whether it is open afterwards. A nil set has
// nothing to flip and reports false.
func (s *Set) Toggle(id string) bool {
	if s == nil {
		return false
	}
	id = normalize(id)
	if id == "" {
		return false
	}
	if _, ok := s.open[id]; ok {
		delete(s.open, id)
		return false
	}
	s.add(id)
	return true
}

// IsOpen reports whether id is expanded.
func (s *Set) IsOpen(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.open[normalize(id)]
	return ok
}

// IDs returns the open ids sorted, for stable persistence.
func (s *Set) IDs() []string {
	if s == nil || len(s.open) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.open))
	for id := range s.open {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of open items.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.open)
}

func (s *Set) add(id string) {
	if s.open == nil {
		s.open = map[string]struct{}{}
	}
	s.open[id] = struct{}{}
}

func normalize(id string) string {
	return strings.TrimSpace(id)
}

// Accordion couples a Set with analytics: every toggle emits one event.
type Accordion struct {
	Set     *Set
	Tracker analytics.Tracker
	Logger  *zap.Logger
}

// Toggle flips id, emits faq_toggle{id, open} and returns the new state.
// Tracking errors are logged and ignored.
func (a Accordion) Toggle(ctx context.Context, id string) bool {
	if a.Set == nil {
		return false
	}
	open := a.Set.Toggle(id)
	tracker := a.Tracker
	if tracker == nil {
		tracker = analytics.Nop
	}
	if err := tracker.Track(ctx, analytics.EventFAQToggle, map[string]any{"id": normalize(id), "open": open}); err != nil {
		logger := a.Logger
		if logger == nil {
			logger = zap.NewNop()
		}
		logger.Warn("faq toggle tracking failed", zap.String("id", id), zap.Error(err))
	}
	return open
}
