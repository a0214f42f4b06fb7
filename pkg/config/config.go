// Package config loads and validates the ssobridge configuration.
//
// Values come from an optional YAML file, overridden by environment variables
// prefixed with SSOBRIDGE_ (nested keys joined with "_", e.g.
// SSOBRIDGE_SERVER_ADDRESS), overridden by flags bound into viper.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "SSOBRIDGE"

// ErrInvalidConfig is returned when the configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete ssobridge configuration.
type Config struct {
	// WebAppRole is the role required on the web application paths.
	WebAppRole string `mapstructure:"webapp_role"`

	// Registration selects the client registration used for browser login.
	Registration string `mapstructure:"registration"`

	// ResourceServer selects the registration whose key set verifies bearer
	// tokens. Defaults to Registration.
	ResourceServer string `mapstructure:"resource_server"`

	LogLevel string `mapstructure:"log_level"`

	Server        ServerConfig         `mapstructure:"server"`
	Decoder       DecoderConfig        `mapstructure:"decoder"`
	Session       SessionConfig        `mapstructure:"session"`
	Registrations []RegistrationConfig `mapstructure:"registrations"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address           string        `mapstructure:"address"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	// TrustForwardedHeaders honours X-Forwarded-Proto and X-Forwarded-Host
	// when building redirect URLs.
	TrustForwardedHeaders bool `mapstructure:"trust_forwarded_headers"`
}

// DecoderConfig configures token verification.
type DecoderConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	Leeway       time.Duration `mapstructure:"leeway"`
}

// SessionConfig configures browser login sessions.
type SessionConfig struct {
	CookieName  string        `mapstructure:"cookie_name"`
	TTL         time.Duration `mapstructure:"ttl"`
	MaxSessions int           `mapstructure:"max_sessions"`
	Secure      bool          `mapstructure:"secure"`
}

// RegistrationConfig is one OAuth2/OIDC client registration.
type RegistrationConfig struct {
	ID           string   `mapstructure:"id"`
	Issuer       string   `mapstructure:"issuer"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	JWKSURL      string   `mapstructure:"jwks_url"`
	Scopes       []string `mapstructure:"scopes"`
	Audience     string   `mapstructure:"audience"`
}

// SetDefaults registers default values on v. Every key that may be set from
// the environment needs a default so viper can resolve it during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("webapp_role", "")
	v.SetDefault("registration", "")
	v.SetDefault("resource_server", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.trust_forwarded_headers", true)

	v.SetDefault("decoder.fetch_timeout", 5*time.Second)
	v.SetDefault("decoder.leeway", 30*time.Second)

	v.SetDefault("session.cookie_name", "SSOBRIDGE_SESSION")
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("session.secure", true)
}

// Load reads the configuration into a Config. path may be empty, in which case
// only defaults, environment and bound flags apply.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if cfg.ResourceServer == "" {
		cfg.ResourceServer = cfg.Registration
	}
	for i := range cfg.Registrations {
		if len(cfg.Registrations[i].Scopes) == 0 {
			cfg.Registrations[i].Scopes = []string{"openid", "profile", "email"}
		}
	}
	return cfg, nil
}

// Validate reports every problem with cfg at once.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is nil", ErrInvalidConfig)
	}

	var problems []string
	if strings.TrimSpace(cfg.WebAppRole) == "" {
		problems = append(problems, "webapp_role is required")
	}
	if strings.TrimSpace(cfg.Registration) == "" {
		problems = append(problems, "registration is required")
	} else if reg, ok := cfg.FindRegistration(cfg.Registration); !ok {
		problems = append(problems, fmt.Sprintf("registration %q is not defined in registrations", cfg.Registration))
	} else if reg.Issuer == "" {
		problems = append(problems, fmt.Sprintf("registration %q needs an issuer for browser login", cfg.Registration))
	}
	if cfg.ResourceServer != "" && cfg.ResourceServer != cfg.Registration {
		if _, ok := cfg.FindRegistration(cfg.ResourceServer); !ok {
			problems = append(problems, fmt.Sprintf("resource_server %q is not defined in registrations", cfg.ResourceServer))
		}
	}
	if cfg.Server.Address == "" {
		problems = append(problems, "server.address is required")
	}
	if cfg.Decoder.FetchTimeout <= 0 {
		problems = append(problems, "decoder.fetch_timeout must be positive")
	}
	if cfg.Session.TTL <= 0 {
		problems = append(problems, "session.ttl must be positive")
	}

	var seen []string
	for i, reg := range cfg.Registrations {
		problems = append(problems, reg.validate(fmt.Sprintf("registrations[%d]", i))...)
		if reg.ID != "" && slices.Contains(seen, reg.ID) {
			problems = append(problems, fmt.Sprintf("registrations[%d].id %q is duplicated", i, reg.ID))
		}
		seen = append(seen, reg.ID)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(problems, "\n  - "))
	}
	return nil
}

func (r RegistrationConfig) validate(path string) []string {
	var problems []string
	if r.ID == "" {
		problems = append(problems, path+".id is required")
	}
	if r.Issuer == "" && r.JWKSURL == "" {
		problems = append(problems, path+": issuer or jwks_url is required")
	}
	if r.ClientID == "" {
		problems = append(problems, path+".client_id is required")
	}
	return problems
}

// FindRegistration returns the registration with the given ID.
func (cfg *Config) FindRegistration(id string) (RegistrationConfig, bool) {
	for _, reg := range cfg.Registrations {
		if reg.ID == id {
			return reg, true
		}
	}
	return RegistrationConfig{}, false
}
