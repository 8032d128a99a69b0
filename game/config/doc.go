// Package config provides configuration management for the naval duel server.
//
// The config package handles:
//   - Built-in defaults for every setting
//   - Loading overrides from YAML or TOML files
//   - Loading environment variables from .env files
//   - Validating the final configuration
//
// Configuration Format:
//
// A YAML configuration looks like:
//
//	server:
//	  port: 8080
//	  log_level: info
//	reclaim:
//	  interval: 1m
//	  empty_timeout: 30m
//	  finished_timeout: 1h
//	  inactive_timeout: 2h
//	  reconnect_grace: 0s
//	auth:
//	  secret: a-long-random-signing-key
//	events:
//	  nats_url: nats://localhost:4222
//
// The TOML form uses the same keys under [server], [reclaim] and so on.
// Durations are Go duration strings.
//
// Precedence:
//
// Defaults, then the file, then command line flags and their environment
// variables. Validate runs last.
//
// Usage:
//
//	cfg, err := config.Load("naval.yaml")
//	if err != nil {
//		return err
//	}
//	cfg.Auth.Secret = os.Getenv("NAVAL_AUTH_SECRET")
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
package config
