package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/naval-duel/api"
	"github.com/wricardo/naval-duel/auth"
	"github.com/wricardo/naval-duel/game/config"
	"github.com/wricardo/naval-duel/game/events"
	"github.com/wricardo/naval-duel/game/reclaim"
	"github.com/wricardo/naval-duel/game/service"
	"github.com/wricardo/naval-duel/game/session"
	"github.com/wricardo/naval-duel/logging"
	"github.com/wricardo/naval-duel/transport/mcp"
	"github.com/wricardo/naval-duel/transport/websocket"
)

// stack is the running set of components behind one listener
type stack struct {
	service   *service.Service
	scheduler *reclaim.Scheduler
	hub       *websocket.Hub
	publisher events.Publisher
	api       *api.Server
	logger    *zap.Logger
}

// newStack wires the session store, game service, reclamation scheduler,
// WebSocket hub and REST API, and starts their background loops.
func newStack(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stack, error) {
	verifier, err := auth.NewHMACVerifier(cfg.Auth.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create verifier: %w", err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		publisher = natsPublisher
	}

	gameService := service.NewGameService(
		session.NewManager(),
		verifier,
		logger,
		service.WithPublisher(publisher),
		service.WithReconnectGrace(cfg.Reclaim.ReconnectGrace),
	)

	scheduler := reclaim.New(gameService, reclaim.Config{
		Interval:    cfg.Reclaim.Interval,
		VacateDelay: cfg.Reclaim.VacateSweepDelay,
		Thresholds:  cfg.Thresholds(),
	}, logger)
	gameService.SetScheduler(scheduler)
	scheduler.Start(ctx)

	hub := websocket.NewHub(gameService, logger, cfg.Server.SendBuffer)
	go hub.Run()

	apiServer := api.NewServer(gameService, hub,
		api.WithLogger(logger),
		api.WithThresholds(cfg.Thresholds()),
	)

	return &stack{
		service:   gameService,
		scheduler: scheduler,
		hub:       hub,
		publisher: publisher,
		api:       apiServer,
		logger:    logger,
	}, nil
}

// handler mounts the API at the root and the MCP admin endpoint at /mcp.
// The MCP tools call back into the API at baseURL.
func (s *stack) handler(baseURL string) http.Handler {
	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", s.api)
	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
	return mainRouter
}

// close stops the scheduler, disconnects every client and closes the publisher
func (s *stack) close() {
	s.scheduler.Stop()
	s.hub.Close()
	if err := s.publisher.Close(); err != nil {
		s.logger.Warn("failed to close event publisher", zap.Error(err))
	}
}

// localURL turns a listen address into a URL the process can call itself on
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// runServer starts the HTTP server with REST API, WebSocket hub and /mcp
// endpoint. With ngrok enabled it also serves through a public tunnel.
func runServer(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting server", zap.String("app", AppName), zap.String("version", Version))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := newStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	addr := cfg.Addr()
	mainRouter := st.handler(localURL(addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("api", fmt.Sprintf("http://%s/api", addr)),
			zap.String("websocket", fmt.Sprintf("ws://%s/ws", addr)),
			zap.String("mcp", fmt.Sprintf("http://%s/mcp", addr)),
		)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveNgrok(ctx, cfg.Ngrok, mainRouter, logger)
		}()
	}

	var runErr error
	select {
	case sig := <-stop:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	case err := <-serveErr:
		runErr = fmt.Errorf("HTTP server failed: %w", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	wg.Wait()
	logger.Info("server stopped")
	return runErr
}

// serveNgrok serves handler through an ngrok tunnel until ctx is done
func serveNgrok(ctx context.Context, cfg config.NgrokConfig, handler http.Handler, logger *zap.Logger) {
	logger = logger.Named("ngrok")
	logger.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
		logger.Info("using custom ngrok domain", zap.String("domain", cfg.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx,
		tunnel,
		ngrok.WithAuthtoken(cfg.AuthToken),
	)
	if err != nil {
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", zap.Error(err))
		}
	}()

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		zap.String("url", ngrokURL),
		zap.String("api", ngrokURL+"/api"),
		zap.String("websocket", strings.Replace(ngrokURL, "https://", "wss://", 1)+"/ws"),
		zap.String("mcp", ngrokURL+"/mcp"),
	)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Warn("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
}

// apiReachable reports whether a naval duel API answers at baseURL
func apiReachable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runStdioMCP serves the MCP admin tools over stdio. It proxies to the API at
// --api-url when one answers, otherwise it starts an internal API on a
// random loopback port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	externalURL := cmd.String("api-url")

	if apiReachable(ctx, externalURL) {
		logger, err := logging.New(envOr("NAVAL_LOG_LEVEL", "info"), "console")
		if err != nil {
			return err
		}
		defer logger.Sync()
		logger.Info("external API server found, using it for MCP", zap.String("url", externalURL))
		return server.ServeStdio(mcp.NewClient(externalURL).GetMCPServer())
	}

	cfg, logger, err := setup(cmd)
	if err != nil {
		return fmt.Errorf("no API at %s and cannot start an internal one: %w", externalURL, err)
	}
	defer logger.Sync()

	logger.Info("no external API server found, starting internal HTTP server", zap.String("url", externalURL))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := newStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to get available port: %w", err)
	}

	baseURL := "http://" + listener.Addr().String()
	httpServer := &http.Server{Handler: st.handler(baseURL)}

	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("internal HTTP server error", zap.Error(err))
		}
	}()
	defer httpServer.Close()

	logger.Info("internal HTTP server started for MCP stdio", zap.String("url", baseURL))
	return server.ServeStdio(mcp.NewClient(baseURL).GetMCPServer())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
