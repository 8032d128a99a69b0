package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/naval-duel/game/session"
)

var (
	ErrConfigNotFound    = errors.New("configuration not found")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnsupportedFormat = errors.New("unsupported configuration format")
)

// Config is the complete server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Reclaim ReclaimConfig `yaml:"reclaim" toml:"reclaim"`
	Auth    AuthConfig    `yaml:"auth" toml:"auth"`
	Events  EventsConfig  `yaml:"events" toml:"events"`
	Ngrok   NgrokConfig   `yaml:"ngrok" toml:"ngrok"`
}

// ServerConfig controls the HTTP listener and logging
type ServerConfig struct {
	Host       string `yaml:"host" toml:"host"`
	Port       int    `yaml:"port" toml:"port" validate:"min=1,max=65535"`
	LogLevel   string `yaml:"log_level" toml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat  string `yaml:"log_format" toml:"log_format" validate:"oneof=json console"`
	SendBuffer int    `yaml:"send_buffer" toml:"send_buffer" validate:"min=1"`
}

// ReclaimConfig controls session reclamation
type ReclaimConfig struct {
	Interval            time.Duration `yaml:"interval" toml:"interval" validate:"gt=0"`
	EmptyRoomTimeout    time.Duration `yaml:"empty_timeout" toml:"empty_timeout" validate:"min=0"`
	FinishedGameTimeout time.Duration `yaml:"finished_timeout" toml:"finished_timeout" validate:"min=0"`
	InactiveRoomTimeout time.Duration `yaml:"inactive_timeout" toml:"inactive_timeout" validate:"min=0"`
	VacateSweepDelay    time.Duration `yaml:"vacate_sweep_delay" toml:"vacate_sweep_delay" validate:"min=0"`
	ReconnectGrace      time.Duration `yaml:"reconnect_grace" toml:"reconnect_grace" validate:"min=0"`
}

// AuthConfig holds the token signing key
type AuthConfig struct {
	Secret   string        `yaml:"secret" toml:"secret" validate:"required,min=16"`
	TokenTTL time.Duration `yaml:"token_ttl" toml:"token_ttl" validate:"gt=0"`
}

// EventsConfig enables lifecycle publishing. An empty NATSURL disables it.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url" toml:"nats_url" validate:"omitempty,url"`
	Subject string `yaml:"subject" toml:"subject" validate:"required"`
}

// NgrokConfig exposes the server through an ngrok tunnel
type NgrokConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	AuthToken string `yaml:"authtoken" toml:"authtoken" validate:"required_if=Enabled true"`
	Domain    string `yaml:"domain" toml:"domain"`
}

// Default returns the built-in configuration. Auth.Secret has no default.
func Default() *Config {
	th := session.DefaultThresholds()
	return &Config{
		Server: ServerConfig{
			Port:       8080,
			LogLevel:   "info",
			LogFormat:  "console",
			SendBuffer: 256,
		},
		Reclaim: ReclaimConfig{
			Interval:            time.Minute,
			EmptyRoomTimeout:    th.EmptyRoom,
			FinishedGameTimeout: th.FinishedGame,
			InactiveRoomTimeout: th.InactiveRoom,
			VacateSweepDelay:    2 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Events: EventsConfig{
			Subject: "naval",
		},
	}
}

// Load reads path over the defaults. The format is chosen by extension:
// .yaml/.yml or .toml. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	return cfg, nil
}

// LoadDotEnv loads environment variables from the given .env files, or
// ./.env when none are named. Missing files are not an error. It reports
// whether anything was loaded.
func LoadDotEnv(files ...string) (bool, error) {
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field against its constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Thresholds returns the reclamation age limits
func (c *Config) Thresholds() session.Thresholds {
	return session.Thresholds{
		EmptyRoom:    c.Reclaim.EmptyRoomTimeout,
		FinishedGame: c.Reclaim.FinishedGameTimeout,
		InactiveRoom: c.Reclaim.InactiveRoomTimeout,
	}
}
