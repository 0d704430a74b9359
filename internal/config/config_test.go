package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(WithoutSystemEnv())
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, ":8080", cfg.Addr())
	require.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, "local", cfg.Env)
	require.False(t, cfg.Production())
	require.Equal(t, "http://localhost:8080", cfg.Site.BaseURL)
	require.Equal(t, []string{"en", "de"}, cfg.Site.SupportedLangs)
	require.Equal(t, 300.0, cfg.Chrome.StickyThreshold)
	require.Equal(t, []string{"pricing", "contact", "free-trial", "case-study-*", "blog-*"}, cfg.Chrome.HiddenFragments)
	require.False(t, cfg.Chrome.ShowOnHome)
	require.Equal(t, 256, cfg.Analytics.QueueSize)
	require.Empty(t, cfg.Email.APIKey)
}

func TestLoadFallsBackToCloudRunPort(t *testing.T) {
	cfg, err := Load(WithoutSystemEnv(), WithEnvMap(map[string]string{"PORT": "9000"}))
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.Server.Port)

	cfg, err = Load(WithoutSystemEnv(), WithEnvMap(map[string]string{
		"PORT":                       "9000",
		"LEDGERLINE_WEB_SERVER_PORT": "9100",
	}))
	require.NoError(t, err)
	require.Equal(t, "9100", cfg.Server.Port)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(WithoutSystemEnv(), WithEnvMap(map[string]string{
		"LEDGERLINE_WEB_SITE_BASE_URL":                "https://ledgerline.dev/",
		"LEDGERLINE_WEB_CHROME_HIDDEN_FRAGMENTS":      " Pricing , demo-*,",
		"LEDGERLINE_WEB_CHROME_STICKY_THRESHOLD":      "450",
		"LEDGERLINE_WEB_EMAIL_API_KEY":                "re_test",
		"LEDGERLINE_WEB_ANALYTICS_GA4_MEASUREMENT_ID": "G-TEST",
		"LEDGERLINE_WEB_SERVER_READ_TIMEOUT":          "20s",
	}))
	require.NoError(t, err)
	require.Equal(t, "https://ledgerline.dev", cfg.Site.BaseURL)
	require.Equal(t, []string{"pricing", "demo-*"}, cfg.Chrome.HiddenFragments)
	require.Equal(t, 450.0, cfg.Chrome.StickyThreshold)
	require.Equal(t, "re_test", cfg.Email.APIKey)
	require.Equal(t, "G-TEST", cfg.Analytics.GA4MeasurementID)
	require.Equal(t, 20*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(WithoutSystemEnv(), WithEnvMap(map[string]string{
		"LEDGERLINE_WEB_ENV":                      "prod",
		"LEDGERLINE_WEB_CHROME_STICKY_THRESHOLD":  "-1",
		"LEDGERLINE_WEB_ANALYTICS_GA4_API_SECRET": "secret",
	}))
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.ElementsMatch(t, []string{
		"SESSION_SIGNING_KEY",
		"CHROME_STICKY_THRESHOLD",
		"ANALYTICS_GA4_MEASUREMENT_ID",
	}, verr.Fields())
}

func TestProductionForcesSecureCookies(t *testing.T) {
	cfg, err := Load(WithoutSystemEnv(), WithEnvMap(map[string]string{
		"LEDGERLINE_WEB_ENV":                 "production",
		"LEDGERLINE_WEB_SESSION_SIGNING_KEY": "k",
	}))
	require.NoError(t, err)
	require.True(t, cfg.Production())
	require.True(t, cfg.Session.Secure)
}
