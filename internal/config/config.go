// Package config loads the web process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Prefix is prepended to every environment variable name.
const Prefix = "LEDGERLINE_WEB_"

// Config captures runtime configuration organised by concern.
type Config struct {
	Env      string `env:"ENV" envDefault:"local"`
	Dev      bool   `env:"DEV"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Server    ServerConfig    `envPrefix:"SERVER_"`
	Site      SiteConfig      `envPrefix:"SITE_"`
	Paths     PathsConfig     `envPrefix:"PATHS_"`
	Session   SessionConfig   `envPrefix:"SESSION_"`
	Analytics AnalyticsConfig `envPrefix:"ANALYTICS_"`
	Email     EmailConfig     `envPrefix:"EMAIL_"`
	Chrome    ChromeConfig    `envPrefix:"CHROME_"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port              string        `env:"PORT"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// SiteConfig describes the public site identity used by SEO and the sitemap.
type SiteConfig struct {
	Name           string   `env:"NAME" envDefault:"Ledgerline"`
	BaseURL        string   `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DefaultLang    string   `env:"DEFAULT_LANG" envDefault:"en"`
	SupportedLangs []string `env:"LANGS" envSeparator:"," envDefault:"en,de"`
	RepoURL        string   `env:"REPO_URL" envDefault:"https://github.com/ledgerline/ledgerline"`
}

// PathsConfig locates on-disk templates, assets, locales and content.
type PathsConfig struct {
	Templates string `env:"TEMPLATES" envDefault:"templates"`
	Public    string `env:"PUBLIC" envDefault:"public"`
	Locales   string `env:"LOCALES" envDefault:"locales"`
	Content   string `env:"CONTENT" envDefault:"content"`
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	SigningKey string `env:"SIGNING_KEY"`
	Secure     bool   `env:"SECURE"`
}

// AnalyticsConfig holds client instrumentation ids and the server-side
// GA4 Measurement Protocol credentials.
type AnalyticsConfig struct {
	GA4MeasurementID string        `env:"GA4_MEASUREMENT_ID"`
	GA4APISecret     string        `env:"GA4_API_SECRET"`
	GA4Endpoint      string        `env:"GA4_ENDPOINT" envDefault:"https://www.google-analytics.com/mp/collect"`
	GTMContainerID   string        `env:"GTM_CONTAINER_ID"`
	Debug            bool          `env:"DEBUG"`
	QueueSize        int           `env:"QUEUE_SIZE" envDefault:"256"`
	Timeout          time.Duration `env:"TIMEOUT" envDefault:"3s"`
}

// EmailConfig points the relay at the transactional email provider.
type EmailConfig struct {
	APIKey  string        `env:"API_KEY"`
	BaseURL string        `env:"BASE_URL" envDefault:"https://api.resend.com"`
	From    string        `env:"FROM" envDefault:"Ledgerline <hello@ledgerline.dev>"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
	MaxBody int64         `env:"MAX_BODY" envDefault:"65536"`
}

// ChromeConfig holds the sticky CTA deny-list and thresholds. The deny-list is
// configuration data; PolicyFile, when set, replaces it with a YAML document.
type ChromeConfig struct {
	StickyThreshold float64  `env:"STICKY_THRESHOLD" envDefault:"300"`
	HeaderThreshold float64  `env:"HEADER_THRESHOLD" envDefault:"80"`
	HiddenFragments []string `env:"HIDDEN_FRAGMENTS" envSeparator:"," envDefault:"pricing,contact,free-trial,case-study-*,blog-*"`
	ShowOnHome      bool     `env:"SHOW_ON_HOME"`
	PolicyFile      string   `env:"POLICY_FILE"`
}

// Production reports whether the process runs in the prod environment.
func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return ":" + c.Server.Port
}

// ValidationError lists missing or invalid settings.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the offending field names.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

type loadOptions struct {
	env       map[string]string
	systemEnv bool
}

// Option customises Load.
type Option func(*loadOptions)

// WithEnvMap overlays values on top of the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loadOptions) {
		if o.env == nil {
			o.env = map[string]string{}
		}
		for k, v := range values {
			o.env[k] = v
		}
	}
}

// WithoutSystemEnv ignores the process environment; used by tests.
func WithoutSystemEnv() Option {
	return func(o *loadOptions) { o.systemEnv = false }
}

// Load parses the environment into Config, applies fallbacks and validates.
func Load(opts ...Option) (Config, error) {
	o := loadOptions{systemEnv: true}
	for _, opt := range opts {
		opt(&o)
	}
	environ := map[string]string{}
	if o.systemEnv {
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok {
				environ[k] = v
			}
		}
	}
	for k, v := range o.env {
		environ[k] = v
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix, Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	// Cloud Run injects PORT; the prefixed variable wins.
	if strings.TrimSpace(cfg.Server.Port) == "" {
		cfg.Server.Port = strings.TrimSpace(environ["PORT"])
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	cfg.Site.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Site.BaseURL), "/")
	cfg.Chrome.HiddenFragments = normalizeList(cfg.Chrome.HiddenFragments)
	cfg.Site.SupportedLangs = normalizeList(cfg.Site.SupportedLangs)
	if cfg.Production() {
		cfg.Session.Secure = true
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var fields []string
	if c.Site.BaseURL == "" {
		fields = append(fields, "SITE_BASE_URL")
	}
	if len(c.Site.SupportedLangs) == 0 {
		fields = append(fields, "SITE_LANGS")
	}
	if c.Production() && strings.TrimSpace(c.Session.SigningKey) == "" {
		fields = append(fields, "SESSION_SIGNING_KEY")
	}
	if c.Chrome.StickyThreshold < 0 {
		fields = append(fields, "CHROME_STICKY_THRESHOLD")
	}
	if c.Chrome.HeaderThreshold < 0 {
		fields = append(fields, "CHROME_HEADER_THRESHOLD")
	}
	if c.Email.APIKey != "" && strings.TrimSpace(c.Email.From) == "" {
		fields = append(fields, "EMAIL_FROM")
	}
	if c.Analytics.GA4APISecret != "" && c.Analytics.GA4MeasurementID == "" {
		fields = append(fields, "ANALYTICS_GA4_MEASUREMENT_ID")
	}
	if len(fields) > 0 {
		return &ValidationError{fields: fields}
	}
	return nil
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
