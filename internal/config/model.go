// internal/config/model.go
//
// Typed configuration model for Signup.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                          – dotenv values,
//   • `conf/global.yaml`                       – primary static file,
//   • `SIGNUP_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *before* unmarshalling, so the model never
// stores Vault URIs, only plain strings.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • Durations are written as Go duration strings (“5s”, “1m”).
//   • The `Paths` block is filled at runtime; YAML must not try to set it.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr     string        `koanf:"listen_addr"     validate:"required,hostname_port"`
	ForceHTTPS     bool          `koanf:"force_https"`
	AllowedOrigins []string      `koanf:"allowed_origins" validate:"dive,required"`
	RateLimit      float64       `koanf:"rate_limit"      validate:"gte=0"` // submits per second per IP, 0 disables
	RateBurst      int           `koanf:"rate_burst"      validate:"gte=0"`
	TrustProxy     bool          `koanf:"trust_proxy"` // limiter keys on the right-most X-Forwarded-For hop
	ReadTimeout    time.Duration `koanf:"read_timeout"    validate:"gte=0"`
	WriteTimeout   time.Duration `koanf:"write_timeout"   validate:"gte=0"`
	IdleTimeout    time.Duration `koanf:"idle_timeout"    validate:"gte=0"`
}

//
// Webhook section
//

// Webhook configures where submissions go.  URL may be overridden per form by
// the webhook action's own url param.
type Webhook struct {
	URL       string        `koanf:"url"        validate:"required,http_url"`
	Timeout   time.Duration `koanf:"timeout"    validate:"gt=0"`
	Workers   int           `koanf:"workers"    validate:"min=1,max=64"`
	QueueSize int           `koanf:"queue_size" validate:"min=1"`
}

//
// Form section
//

// Form holds per-visitor form settings.
type Form struct {
	CSRFKey     string `koanf:"csrf_key"`
	MaxSessions int    `koanf:"max_sessions" validate:"min=1"`
}

// Geo points at an optional MaxMind database.
type Geo struct {
	DBPath string `koanf:"db_path"`
}

// Log sets the minimum log level.
type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // SIGNUP_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP    HTTP    `koanf:"http"`
	Webhook Webhook `koanf:"webhook"`
	Form    Form    `koanf:"form"`
	Geo     Geo     `koanf:"geo"`
	Log     Log     `koanf:"log"`
	Paths   Paths   `koanf:"-"` // not loaded from config files
}

// applyDefaults fills zero values that have a sensible default.
func applyDefaults(c *Config) {
	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = ":8080"
	}
	if c.HTTP.RateBurst == 0 && c.HTTP.RateLimit > 0 {
		c.HTTP.RateBurst = 5
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = 10 * time.Second
	}
	if c.Webhook.Workers == 0 {
		c.Webhook.Workers = 4
	}
	if c.Webhook.QueueSize == 0 {
		c.Webhook.QueueSize = 256
	}
	if c.Form.MaxSessions == 0 {
		c.Form.MaxSessions = 10000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
