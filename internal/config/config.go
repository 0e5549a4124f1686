// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string `env:"REFRAME_HTTP_ADDR" envDefault:":8080"`
	// BasePath is the prefix every page lives under. Empty serves from /.
	BasePath string `env:"REFRAME_BASE_PATH" envDefault:"/reframe_ocd_thoughts"`
	LogLevel string `env:"REFRAME_LOG_LEVEL" envDefault:"info"`

	IdentityEndpoint string        `env:"REFRAME_IDENTITY_ENDPOINT" envDefault:"https://api.mantracare.com/user/user-info"`
	IdentityTimeout  time.Duration `env:"REFRAME_IDENTITY_TIMEOUT" envDefault:"0s"`
	ExitURL          string        `env:"REFRAME_EXIT_URL" envDefault:"https://mantracare.com"`
	ExitLabel        string        `env:"REFRAME_EXIT_LABEL" envDefault:"Go back to MantraCare"`

	DatabaseURL string `env:"REFRAME_DATABASE_URL" envDefault:"reframe.db"`

	SessionSecret string `env:"REFRAME_SESSION_SECRET"`
	// SecureCookies marks the session cookie Secure. The server itself only
	// speaks plain HTTP, so enable this only behind a TLS-terminating proxy;
	// otherwise browsers drop the cookie and every handshake ends on /token.
	SecureCookies bool `env:"REFRAME_SECURE_COOKIES" envDefault:"false"`
	// TestUserID skips the token handshake and signs every browser in as
	// this user. Development only.
	TestUserID int64 `env:"REFRAME_TEST_USER_ID"`

	AllowBack         bool          `env:"REFRAME_WIZARD_ALLOW_BACK" envDefault:"true"`
	AllowRetry        bool          `env:"REFRAME_WIZARD_ALLOW_RETRY" envDefault:"true"`
	PersistOnComplete bool          `env:"REFRAME_PERSIST_ON_COMPLETE" envDefault:"false"`
	WizardIdleTTL     time.Duration `env:"REFRAME_WIZARD_IDLE_TTL" envDefault:"1h"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.BasePath = NormalizeBasePath(cfg.BasePath)
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("REFRAME_HTTP_ADDR is required"))
	}
	if len(c.SessionSecret) < 16 {
		errs = append(errs, errors.New("REFRAME_SESSION_SECRET must be at least 16 characters"))
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("REFRAME_DATABASE_URL is required"))
	}
	if c.IdentityTimeout < 0 {
		errs = append(errs, errors.New("REFRAME_IDENTITY_TIMEOUT must not be negative"))
	}
	if c.TestUserID < 0 {
		errs = append(errs, errors.New("REFRAME_TEST_USER_ID must not be negative"))
	}

	return errors.Join(errs...)
}

// ErrorPath is the route of the "access required" screen.
func (c Config) ErrorPath() string {
	return c.BasePath + "/token"
}

// NormalizeBasePath turns "", "/" and "/app/" into "", "" and "/app".
func NormalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
