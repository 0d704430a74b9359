package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHonorsQValues(t *testing.T) {
	b, err := Load("../../locales", "en", []string{"en", "de"})
	require.NoError(t, err)

	assert.Equal(t, "en", b.Resolve("de;q=0.8, en;q=0.9"))
	assert.Equal(t, "de", b.Resolve("de-CH, en;q=0.5"))
	assert.Equal(t, "de", b.Resolve("fr, de;q=0.5"))
	assert.Equal(t, "en", b.Resolve("ja"))
	assert.Equal(t, "en", b.Resolve(""))
}

func TestTranslateFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.json"), []byte(`{"nav.home":"Home","cta.trial":"Start free trial"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "de.json"), []byte(`{"nav.home":"Start"}`), 0o644))

	b, err := Load(dir, "en", []string{"de", "en"})
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "de"}, b.Supported())
	assert.Equal(t, "Start", b.T("de", "nav.home"))
	assert.Equal(t, "Start free trial", b.T("de", "cta.trial"))
	assert.Equal(t, "missing.key", b.T("de", "missing.key"))
	assert.True(t, b.IsSupported("de"))
	assert.False(t, b.IsSupported("fr"))
}

func TestLoadRequiresFallback(t *testing.T) {
	_, err := Load(t.TempDir(), "en", []string{"en"})
	require.Error(t, err)
}

func TestLoadSkipsMissingLocale(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.json"), []byte(`{}`), 0o644))
	b, err := Load(dir, "en", []string{"en", "fr"})
	require.NoError(t, err)
	assert.Equal(t, []string{"en"}, b.Supported())
	assert.Equal(t, "en", b.Resolve("fr"))
}
