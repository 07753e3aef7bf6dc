package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultSourceType       = "socketio"
	DefaultEndpoint         = "http://localhost:5000"
	DefaultSocketIOPath     = "/socket.io/"
	DefaultNamespace        = "/"
	DefaultReconnectInitial = 1 * time.Second
	DefaultReconnectMax     = 5 * time.Second
	DefaultKafkaTopic       = "alerts"
	DefaultRedisChannel     = "alerts"
	DefaultHistorySize      = 100
	DefaultHistoryTTL       = 24 * time.Hour
	DefaultSMTPPort         = 587
)

// Config is the top-level configuration for the notifier.
// Fields map 1:1 to config/notifier.example.yaml.
type Config struct {
	Notifier NotifierConfig `yaml:"notifier"`
}

// NotifierConfig holds all notifier settings.
type NotifierConfig struct {
	// Source describes the real-time connection alerts arrive on.
	Source Source `yaml:"source"`

	// Presenters are the sinks every alert is shown on, in order.
	// An empty list falls back to a single console presenter.
	Presenters []Presenter `yaml:"presenters"`

	// Cooldown suppresses repeat alerts for the same zone within the window.
	// Zero disables suppression.
	Cooldown time.Duration `yaml:"cooldown"`

	// History controls how many presented alerts the status API can return.
	History HistoryConfig `yaml:"history"`

	// HTTP configures the optional status API.
	HTTP HTTPConfig `yaml:"http"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`
}

// Source describes one real-time event source.
type Source struct {
	// Type is one of: socketio | websocket | kafka | redis.
	Type string `yaml:"type"`

	// Endpoint is the server URL. For socketio it is the http(s) base URL;
	// for websocket the full ws(s) URL.
	Endpoint string `yaml:"endpoint"`

	// Path is the Socket.IO handshake path (default "/socket.io/").
	Path string `yaml:"path"`

	// Namespace is the Socket.IO namespace to join (default "/").
	Namespace string `yaml:"namespace"`

	// Auth configures credentials sent on the connection handshake.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`

	// Reconnect controls retry after the connection drops.
	Reconnect ReconnectConfig `yaml:"reconnect"`

	// Kafka settings, used when Type == "kafka".
	Kafka KafkaConfig `yaml:"kafka"`

	// Redis settings, used when Type == "redis".
	Redis RedisConfig `yaml:"redis"`
}

// AuthConfig specifies the authentication mode for a source.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the handshake header carrying the API key. Defaults to "x-api-key".
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// TLSConfig holds TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// ReconnectConfig controls reconnection with exponential backoff.
type ReconnectConfig struct {
	// Enabled defaults to true. When false, the source stops after the
	// first connection ends.
	Enabled *bool `yaml:"enabled"`

	// Initial is the first retry delay (default 1s).
	Initial time.Duration `yaml:"initial"`

	// Max caps the retry delay (default 5s).
	Max time.Duration `yaml:"max"`
}

// On reports whether reconnection is enabled.
func (r ReconnectConfig) On() bool {
	return r.Enabled == nil || *r.Enabled
}

// KafkaConfig configures the kafka source.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	// GroupID is optional; without it the reader starts at the newest offset.
	GroupID string `yaml:"group_id"`
}

// RedisConfig configures the redis pub/sub source.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	Channel     string `yaml:"channel"`
	DB          int    `yaml:"db"`
	PasswordEnv string `yaml:"password_env"`
}

// Password returns the redis password resolved from the environment.
func (r RedisConfig) Password() string {
	if r.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(r.PasswordEnv)
}

// Presenter defines one notification sink.
type Presenter struct {
	// Type is one of: console | slack | teams | http | mail | telegram.
	Type string `yaml:"type"`

	// Modal makes the console presenter wait for Enter after each alert.
	Modal bool `yaml:"modal"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`

	// Mail settings, used when Type == "mail".
	SMTPHost    string   `yaml:"smtp_host"`
	SMTPPort    int      `yaml:"smtp_port"`
	From        string   `yaml:"from"`
	To          []string `yaml:"to"`
	Username    string   `yaml:"username"`
	PasswordEnv string   `yaml:"password_env"`

	// Telegram settings, used when Type == "telegram".
	TokenEnv string  `yaml:"token_env"`
	ChatIDs  []int64 `yaml:"chat_ids"`
}

// URL returns the webhook URL resolved from the environment.
func (p Presenter) URL() string {
	if p.URLEnv == "" {
		return ""
	}
	return os.Getenv(p.URLEnv)
}

// Password returns the SMTP password resolved from the environment.
func (p Presenter) Password() string {
	if p.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(p.PasswordEnv)
}

// Token returns the Telegram bot token resolved from the environment.
func (p Presenter) Token() string {
	if p.TokenEnv == "" {
		return ""
	}
	return os.Getenv(p.TokenEnv)
}

// HistoryConfig controls in-memory retention of presented alerts.
type HistoryConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// HTTPConfig configures the status API. An empty Addr disables it.
type HTTPConfig struct {
	Addr string         `yaml:"addr"`
	Auth HTTPAuthConfig `yaml:"auth"`
}

// HTTPAuthConfig controls status API authentication.
type HTTPAuthConfig struct {
	// Mode is one of: apikey | none.
	Mode   string `yaml:"mode"`
	KeyEnv string `yaml:"key_env"`
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a HTTPAuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a HTTPAuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error (default info).
	Level string `yaml:"level"`
	// Format is one of: json | text (default json).
	Format string `yaml:"format"`
}

// SlogLevel maps Level to a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	fill(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when no config file is given:
// a socket.io connection to DefaultEndpoint presented on the console.
func Default() *Config {
	cfg := defaults()
	fill(cfg)
	return cfg
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Notifier: NotifierConfig{
			Source: Source{
				Type:      DefaultSourceType,
				Endpoint:  DefaultEndpoint,
				Path:      DefaultSocketIOPath,
				Namespace: DefaultNamespace,
				Reconnect: ReconnectConfig{
					Initial: DefaultReconnectInitial,
					Max:     DefaultReconnectMax,
				},
				Kafka: KafkaConfig{Topic: DefaultKafkaTopic},
				Redis: RedisConfig{Channel: DefaultRedisChannel},
			},
			History: HistoryConfig{
				Size: DefaultHistorySize,
				TTL:  DefaultHistoryTTL,
			},
			Log: LogConfig{Level: "info", Format: "json"},
		},
	}
}

// fill applies defaults that depend on list contents, which yaml replaces
// wholesale rather than merging.
func fill(cfg *Config) {
	n := &cfg.Notifier
	if len(n.Presenters) == 0 {
		n.Presenters = []Presenter{{Type: "console"}}
	}
	for i := range n.Presenters {
		if n.Presenters[i].Type == "mail" && n.Presenters[i].SMTPPort == 0 {
			n.Presenters[i].SMTPPort = DefaultSMTPPort
		}
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	n := cfg.Notifier
	src := n.Source

	switch src.Type {
	case "socketio", "websocket":
		if src.Endpoint == "" {
			return fmt.Errorf("notifier.source.endpoint is required for type %q", src.Type)
		}
	case "kafka":
		if len(src.Kafka.Brokers) == 0 {
			return fmt.Errorf("notifier.source.kafka.brokers is required")
		}
		if src.Kafka.Topic == "" {
			return fmt.Errorf("notifier.source.kafka.topic is required")
		}
	case "redis":
		if src.Redis.Addr == "" {
			return fmt.Errorf("notifier.source.redis.addr is required")
		}
		if src.Redis.Channel == "" {
			return fmt.Errorf("notifier.source.redis.channel is required")
		}
	default:
		return fmt.Errorf("notifier.source.type %q unknown: want socketio|websocket|kafka|redis", src.Type)
	}

	switch src.Auth.Mode {
	case "mtls", "apikey", "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("notifier.source.auth.mode %q unknown", src.Auth.Mode)
	}
	if src.Reconnect.Initial <= 0 {
		return fmt.Errorf("notifier.source.reconnect.initial must be positive")
	}
	if src.Reconnect.Max < src.Reconnect.Initial {
		return fmt.Errorf("notifier.source.reconnect.max must not be less than initial")
	}

	for i, p := range n.Presenters {
		switch p.Type {
		case "console":
		case "slack", "teams", "http":
			if p.URLEnv == "" {
				return fmt.Errorf("presenters[%d] %s: url_env is required", i, p.Type)
			}
		case "mail":
			if p.SMTPHost == "" || p.From == "" || len(p.To) == 0 {
				return fmt.Errorf("presenters[%d] mail: smtp_host, from and to are required", i)
			}
		case "telegram":
			if p.TokenEnv == "" || len(p.ChatIDs) == 0 {
				return fmt.Errorf("presenters[%d] telegram: token_env and chat_ids are required", i)
			}
		default:
			return fmt.Errorf("presenters[%d]: unknown type %q", i, p.Type)
		}
	}

	if n.Cooldown < 0 {
		return fmt.Errorf("notifier.cooldown must not be negative")
	}
	if n.History.Size <= 0 {
		return fmt.Errorf("notifier.history.size must be positive")
	}
	if n.History.TTL <= 0 {
		return fmt.Errorf("notifier.history.ttl must be positive")
	}
	switch n.HTTP.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("notifier.http.auth.mode %q unknown: want apikey|none", n.HTTP.Auth.Mode)
	}
	switch n.Log.Format {
	case "json", "text", "":
	default:
		return fmt.Errorf("notifier.log.format %q unknown: want json|text", n.Log.Format)
	}
	return nil
}
