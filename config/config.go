// Package config loads the Edge Notes service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AI providers.
const (
	ProviderWorkersAI = "workersai"
	ProviderGemini    = "gemini"
	ProviderNone      = "none"
)

// KV backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the service configuration.
type Config struct {
	Listen    string `yaml:"listen" validate:"required,hostname_port"`
	AssetsDir string `yaml:"assets_dir"`

	// Hostname is advertised in the X-Server-Hostname header. Empty uses
	// the OS hostname.
	Hostname string `yaml:"hostname"`

	Logging   LoggingConfig   `yaml:"logging"`
	HTTP      HTTPConfig      `yaml:"http"`
	CORS      CORSConfig      `yaml:"cors"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Turnstile TurnstileConfig `yaml:"turnstile"`
	AI        AIConfig        `yaml:"ai"`
	KV        KVConfig        `yaml:"kv"`
	Images    ImagesConfig    `yaml:"images"`
	Upload    UploadConfig    `yaml:"upload"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

type HTTPConfig struct {
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" validate:"gte=0"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`

	// RequestTimeout bounds every /api request.
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`

	// MaxBodyBytes limits POST bodies under /api.
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"gt=0"`

	// Origin, when set, answers requests no route or asset matches.
	Origin string `yaml:"origin" validate:"omitempty,url"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" validate:"min=1"`
	MaxAge         int      `yaml:"max_age"`
}

type ProxyConfig struct {
	TrustedProxies  []string `yaml:"trusted_proxies,omitempty" validate:"dive,cidr|ip"`
	TrustCloudflare bool     `yaml:"trust_cloudflare"`
}

type TurnstileConfig struct {
	// Secret enables the token gate on POST requests when set.
	Secret  string `yaml:"secret"`
	SiteKey string `yaml:"site_key"`
}

type AIConfig struct {
	Provider string `yaml:"provider" validate:"oneof=workersai gemini none"`
	Model    string `yaml:"model" validate:"required"`

	AccountID string `yaml:"account_id" validate:"required_if=Provider workersai"`
	APIToken  string `yaml:"api_token" validate:"required_if=Provider workersai"`
	BaseURL   string `yaml:"base_url" validate:"omitempty,url"`

	GeminiAPIKey string `yaml:"gemini_api_key" validate:"required_if=Provider gemini"`
	GeminiModel  string `yaml:"gemini_model"`

	// Cache keeps AI results in the KV store keyed by operation and input.
	Cache bool `yaml:"cache"`
}

type KVConfig struct {
	Backend  string `yaml:"backend" validate:"oneof=memory redis"`
	Addr     string `yaml:"addr" validate:"required_if=Backend redis,omitempty,hostname_port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix"`
}

type ImagesConfig struct {
	// Path is the SQLite database file. ":memory:" keeps images in memory.
	Path string `yaml:"path" validate:"required"`
}

type UploadConfig struct {
	// Users guards /api/upload-logo with basic auth when non-empty.
	Users map[string]string `yaml:"users"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true,omitempty,startswith=/"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Listen:    ":8788",
		AssetsDir: "public",
		Logging:   LoggingConfig{Level: "info"},
		HTTP: HTTPConfig{
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
			ShutdownTimeout:   15 * time.Second,
			RequestTimeout:    30 * time.Second,
			MaxBodyBytes:      1 << 20,
		},
		CORS: CORSConfig{AllowedOrigins: []string{"*"}},
		AI: AIConfig{
			Provider:    ProviderWorkersAI,
			Model:       "@cf/meta/llama-3.1-8b-instruct",
			GeminiModel: "gemini-2.5-flash",
			Cache:       true,
		},
		KV:      KVConfig{Backend: BackendMemory, Prefix: "edgenotes:"},
		Images:  ImagesConfig{Path: "edgenotes.db"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. A missing file yields the defaults. The result is
// not validated; call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"EDGENOTES_LISTEN":     &c.Listen,
		"EDGENOTES_ASSETS_DIR": &c.AssetsDir,
		"EDGENOTES_LOG_LEVEL":  &c.Logging.Level,
		"EDGENOTES_DB":         &c.Images.Path,
		"TURNSTILE_SECRET":     &c.Turnstile.Secret,
		"TURNSTILE_SITE_KEY":   &c.Turnstile.SiteKey,
		"CF_ACCOUNT_ID":        &c.AI.AccountID,
		"CF_API_TOKEN":         &c.AI.APIToken,
		"GEMINI_API_KEY":       &c.AI.GeminiAPIKey,
		"REDIS_PASSWORD":       &c.KV.Password,
	}

	for name, dst := range str {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	if v, ok := lookup("EDGENOTES_AI_PROVIDER"); ok {
		c.AI.Provider = strings.ToLower(v)
	}

	// Setting a Redis address selects the Redis backend.
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.KV.Addr = v
		c.KV.Backend = BackendRedis
	}

	if v, ok := lookup("REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: REDIS_DB: %w", err)
		}
		c.KV.DB = db
	}

	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their YAML keys.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}

		return name
	})

	return v
}

// Validate checks the configuration for missing or malformed values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config: %w", err)
		}

		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = fmt.Sprintf("%s: failed %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
		}

		return fmt.Errorf("config: invalid configuration: %s", strings.Join(msgs, "; "))
	}

	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}

	return nil
}
