package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/naval-duel/auth"
	"github.com/wricardo/naval-duel/game/config"
	"github.com/wricardo/naval-duel/game/engine"
	"github.com/wricardo/naval-duel/logging"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Naval Duel Server"
)

// main loads .env, then runs the selected command
func main() {
	loadedEnv, envErr := config.LoadDotEnv()

	app := newApp(os.Stdout)
	app.Metadata = map[string]any{
		"dotenv_loaded": loadedEnv,
		"dotenv_error":  envErr,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// serverFlags live on the root command and are inherited by every
// subcommand. Each flag also reads an environment variable, and both
// override the config file.
func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to a YAML or TOML configuration file",
			Sources: cli.EnvVars("NAVAL_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "host",
			Usage:   "HTTP server host",
			Sources: cli.EnvVars("NAVAL_HOST"),
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   "HTTP server port",
			Sources: cli.EnvVars("NAVAL_PORT", "PORT"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "debug, info, warn or error",
			Sources: cli.EnvVars("NAVAL_LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "console or json",
			Sources: cli.EnvVars("NAVAL_LOG_FORMAT"),
		},
		&cli.StringFlag{
			Name:    "auth-secret",
			Usage:   "token signing secret",
			Sources: cli.EnvVars("NAVAL_AUTH_SECRET"),
		},
		&cli.DurationFlag{
			Name:    "reconnect-grace",
			Usage:   "how long a disconnected seat is held (0 removes it at once)",
			Sources: cli.EnvVars("NAVAL_RECONNECT_GRACE"),
		},
		&cli.DurationFlag{
			Name:    "sweep-interval",
			Usage:   "time between reclamation sweeps",
			Sources: cli.EnvVars("NAVAL_SWEEP_INTERVAL"),
		},
		&cli.StringFlag{
			Name:    "nats-url",
			Usage:   "publish session lifecycle events to this NATS server",
			Sources: cli.EnvVars("NAVAL_NATS_URL", "NATS_URL"),
		},
		&cli.BoolFlag{
			Name:    "ngrok",
			Usage:   "expose the server through an ngrok tunnel",
			Sources: cli.EnvVars("NGROK_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "ngrok-auth",
			Usage:   "ngrok auth token",
			Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "ngrok-domain",
			Usage:   "custom ngrok domain",
			Sources: cli.EnvVars("NGROK_DOMAIN"),
		},
	}
}

// newApp builds the command tree. Command output goes to out.
func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "naval-duel",
		Usage:   AppName,
		Version: Version,
		Flags:   serverFlags(),
		Action:  runServer,
		Writer:  out,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run the HTTP server with REST API, WebSocket and MCP endpoint (default)",
				Action:  runServer,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run the MCP admin server over stdio",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Usage:   "admin API to proxy; an internal server is started when unreachable",
						Value:   "http://localhost:8080",
						Sources: cli.EnvVars("NAVAL_API_URL"),
					},
				},
				Action: runStdioMCP,
			},
			{
				Name:  "token",
				Usage: "Issue a signed identity token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "identity",
						Usage:    "identity the token authenticates",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "token lifetime (defaults to auth.token_ttl)",
					},
				},
				Action: runToken,
			},
			{
				Name:      "validate-fleet",
				Usage:     "Check a fleet JSON file, or print a random valid fleet",
				ArgsUsage: "[fleet.json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "random",
						Usage: "generate a random valid fleet instead of reading a file",
					},
				},
				Action: runValidateFleet,
			},
		},
	}
}

// loadConfig reads the config file and applies flag overrides. It does not
// validate.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("log-level") {
		cfg.Server.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.Server.LogFormat = cmd.String("log-format")
	}
	if cmd.IsSet("auth-secret") {
		cfg.Auth.Secret = cmd.String("auth-secret")
	}
	if cmd.IsSet("reconnect-grace") {
		cfg.Reclaim.ReconnectGrace = cmd.Duration("reconnect-grace")
	}
	if cmd.IsSet("sweep-interval") {
		cfg.Reclaim.Interval = cmd.Duration("sweep-interval")
	}
	if cmd.IsSet("nats-url") {
		cfg.Events.NATSURL = cmd.String("nats-url")
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.Ngrok.AuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}
	return cfg, nil
}

// setup loads and validates the configuration and builds the logger
func setup(cmd *cli.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Server.LogLevel, cfg.Server.LogFormat)
	if err != nil {
		return nil, nil, err
	}

	root := cmd.Root()
	if loaded, _ := root.Metadata["dotenv_loaded"].(bool); loaded {
		logger.Info("loaded environment variables from .env file")
	}
	if envErr, _ := root.Metadata["dotenv_error"].(error); envErr != nil {
		logger.Warn("error loading .env file", zap.Error(envErr))
	}
	return cfg, logger, nil
}

func runToken(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	verifier, err := auth.NewHMACVerifier(cfg.Auth.Secret)
	if err != nil {
		return fmt.Errorf("%w (set --auth-secret or NAVAL_AUTH_SECRET)", err)
	}

	ttl := cfg.Auth.TokenTTL
	if cmd.IsSet("ttl") {
		ttl = cmd.Duration("ttl")
	}

	token, err := verifier.Issue(cmd.String("identity"), ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, token)
	return nil
}

func runValidateFleet(ctx context.Context, cmd *cli.Command) error {
	out := cmd.Root().Writer

	var fleet engine.Fleet
	switch {
	case cmd.Bool("random"):
		fleet = engine.RandomFleet(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	case cmd.Args().Len() == 1:
		data, err := os.ReadFile(cmd.Args().First())
		if err != nil {
			return fmt.Errorf("failed to read fleet: %w", err)
		}
		fleet, err = decodeFleet(data)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("expected a fleet file or --random")
	}

	if err := engine.ValidateFleet(fleet); err != nil {
		return err
	}

	fleet = engine.NormalizeFleet(fleet)
	fmt.Fprint(out, engine.RenderFleet(fleet))
	if cmd.Bool("random") {
		data, err := json.MarshalIndent(map[string]engine.Fleet{"ships": fleet}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	}
	fmt.Fprintln(out, "fleet is valid")
	return nil
}

// decodeFleet accepts either a bare ship array or the submit_fleet payload
// {"ships": [...]}
func decodeFleet(data []byte) (engine.Fleet, error) {
	var wrapped struct {
		Ships engine.Fleet `json:"ships"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Ships != nil {
		return wrapped.Ships, nil
	}

	var fleet engine.Fleet
	if err := json.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrInvalidFleet, err)
	}
	return fleet, nil
}
