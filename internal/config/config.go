// Package config loads relay configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default relay configuration.
const (
	DefaultBackendURL        = "http://localhost:8000/api"
	DefaultPort              = "8080"
	DefaultAgentLanguage     = "en"
	DefaultThinkProvider     = "open_ai"
	DefaultThinkModel        = "gpt-4o-mini"
	DefaultVoice             = "aura-2-thalia-en"
	DefaultSTTModel          = "nova-3"
	DefaultDrainGrace        = 5 * time.Second
	DefaultContextTimeout    = 5 * time.Second
	DefaultPendingAudioLimit = 1500
)

var (
	// ErrMissingAPIKey is returned when DEEPGRAM_API_KEY is not set.
	ErrMissingAPIKey = errors.New("config: DEEPGRAM_API_KEY is required")

	// ErrInvalidBackendURL is returned when BACKEND_URL does not parse.
	ErrInvalidBackendURL = errors.New("config: BACKEND_URL must be an absolute http(s) URL")
)

// Config is the full relay configuration.
type Config struct {
	DeepgramAPIKey string
	AgentURL       string
	AgentLanguage  string
	ThinkProvider  string
	ThinkModel     string
	DefaultVoice   string
	DefaultSTT     string

	BackendURL   string
	BackendToken string

	Port       string
	PublicHost string

	TelephonyTranscode bool
	DrainGrace         time.Duration
	ContextTimeout     time.Duration
	PendingAudioLimit  int

	LogLevel string
	LogFile  string

	RecordingBucket string
	RecordingPrefix string
	AWSRegion       string
}

// Default returns a Config with every optional key at its default.
func Default() Config {
	return Config{
		AgentLanguage:     DefaultAgentLanguage,
		ThinkProvider:     DefaultThinkProvider,
		ThinkModel:        DefaultThinkModel,
		DefaultVoice:      DefaultVoice,
		DefaultSTT:        DefaultSTTModel,
		BackendURL:        DefaultBackendURL,
		Port:              DefaultPort,
		DrainGrace:        DefaultDrainGrace,
		ContextTimeout:    DefaultContextTimeout,
		PendingAudioLimit: DefaultPendingAudioLimit,
		LogLevel:          "info",
		RecordingPrefix:   "recordings/",
	}
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv and validates it.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("DEEPGRAM_API_KEY", &cfg.DeepgramAPIKey)
	str("AGENT_URL", &cfg.AgentURL)
	str("AGENT_LANGUAGE", &cfg.AgentLanguage)
	str("THINK_PROVIDER", &cfg.ThinkProvider)
	str("THINK_MODEL", &cfg.ThinkModel)
	str("DEFAULT_VOICE", &cfg.DefaultVoice)
	str("DEFAULT_STT_MODEL", &cfg.DefaultSTT)
	str("BACKEND_URL", &cfg.BackendURL)
	str("BACKEND_TOKEN", &cfg.BackendToken)
	str("PORT", &cfg.Port)
	str("PUBLIC_HOST", &cfg.PublicHost)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FILE", &cfg.LogFile)
	str("RECORDING_BUCKET", &cfg.RecordingBucket)
	str("RECORDING_PREFIX", &cfg.RecordingPrefix)
	str("AWS_REGION", &cfg.AWSRegion)

	dur("DRAIN_GRACE", &cfg.DrainGrace)
	dur("CONTEXT_TIMEOUT", &cfg.ContextTimeout)

	if v := getenv("TELEPHONY_TRANSCODE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: TELEPHONY_TRANSCODE: %w", err))
		}
		cfg.TelephonyTranscode = b
	}
	if v := getenv("PENDING_AUDIO_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("config: PENDING_AUDIO_LIMIT must be a positive integer, got %q", v))
		} else {
			cfg.PendingAudioLimit = n
		}
	}

	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	return cfg, errors.Join(errs...)
}

// Validate checks required fields.
func (c Config) Validate() error {
	if c.DeepgramAPIKey == "" {
		return ErrMissingAPIKey
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBackendURL
	}
	return nil
}

// Addr returns the listen address for Port.
func (c Config) Addr() string {
	return ":" + c.Port
}
