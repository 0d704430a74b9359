package disclosure

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"finitefield.org/ledgerline-web/internal/analytics"
)

func TestToggleAllowsMultipleOpen(t *testing.T) {
	var s Set
	require.True(t, s.Toggle("pricing-model"))
	require.True(t, s.Toggle("self-hosting"))
	require.True(t, s.IsOpen("pricing-model"))
	require.True(t, s.IsOpen("self-hosting"))
	require.Equal(t, []string{"pricing-model", "self-hosting"}, s.IDs())
	require.Equal(t, 2, s.Len())
}

func TestTogglePairIsIdentity(t *testing.T) {
	s := FromIDs([]string{"a", "c"})
	before := s.IDs()

	for _, id := range []string{"a", "b", "c"} {
		s.Toggle(id)
		s.Toggle(id)
		require.Equal(t, before, s.IDs(), "toggling %q twice", id)
	}
}

func TestEmptyIDIsIgnored(t *testing.T) {
	s := FromIDs([]string{"", "  ", "x"})
	require.False(t, s.Toggle(" "))
	require.Equal(t, []string{"x"}, s.IDs())
}

func TestNilSet(t *testing.T) {
	var s *Set
	require.False(t, s.IsOpen("x"))
	require.Nil(t, s.IDs())
	require.Zero(t, s.Len())
	require.False(t, s.Toggle("x"))
	require.False(t, s.IsOpen("x"))
}

func TestAccordionEmitsOneEventPerToggle(t *testing.T) {
	rec := &analytics.Recorder{}
	acc := Accordion{Set: &Set{}, Tracker: rec}

	require.True(t, acc.Toggle(context.Background(), "data-ownership"))
	require.False(t, acc.Toggle(context.Background(), "data-ownership"))

	events := rec.Named(analytics.EventFAQToggle)
	require.Len(t, events, 2)
	require.Equal(t, "data-ownership", events[0].Props["id"])
	require.Equal(t, true, events[0].Props["open"])
	require.Equal(t, false, events[1].Props["open"])
}

func TestAccordionSwallowsTrackingErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	acc := Accordion{
		Set:     &Set{},
		Tracker: &analytics.Recorder{Err: errors.New("blocked by extension")},
		Logger:  zap.New(core),
	}
	require.True(t, acc.Toggle(context.Background(), "migration"))
	require.True(t, acc.Set.IsOpen("migration"))
	require.Equal(t, 1, logs.FilterMessage("faq toggle tracking failed").Len())
}
