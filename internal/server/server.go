// Package server runs the platform over the configured MCP transport.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	httpauth "github.com/txn2/mcp-kusto/pkg/http"
	"github.com/txn2/mcp-kusto/pkg/platform"
)

// Version is set at build time.
var Version = "dev"

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// NewWithConfig loads the configuration file, applies overrides in order
// and builds the platform.
func NewWithConfig(configPath string, overrides ...func(*platform.Config)) (*platform.Platform, error) {
	cfg, err := platform.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}
	if cfg.Server.Version == "" || cfg.Server.Version == "1.0.0" {
		cfg.Server.Version = Version
	}
	p, err := platform.New(platform.WithConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating platform: %w", err)
	}
	return p, nil
}

// NewHTTPHandler serves the probes on /healthz and /readyz and the
// streamable MCP endpoint on every other path. Only the MCP endpoint is
// authenticated.
func NewHTTPHandler(p *platform.Platform) http.Handler {
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return p.MCPServer()
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/healthz", p.Health().LivenessHandler())
	mux.Handle("/readyz", p.Health().ReadinessHandler())
	mux.Handle("/", httpauth.AuthMiddleware(p.Authenticator())(mcpHandler))
	return corsMiddleware(mux)
}

// corsMiddleware lets browser-based MCP clients reach the endpoint.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers",
			"Content-Type, Authorization, X-API-Key, Mcp-Session-Id, Mcp-Protocol-Version, Last-Event-ID")
		h.Set("Access-Control-Expose-Headers", "Mcp-Session-Id")
		h.Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run loads the catalog and serves MCP until ctx is done.
func Run(ctx context.Context, p *platform.Platform) error {
	cfg := p.Config()
	switch cfg.Server.Transport {
	case platform.TransportHTTP:
		return serveHTTP(ctx, p, cfg.Server.Address)
	default:
		return serveStdio(ctx, p)
	}
}

func serveStdio(ctx context.Context, p *platform.Platform) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer stop(p)

	err := p.MCPServer().Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serving stdio: %w", err)
	}
	return nil
}

// serveHTTP starts listening before the catalog is loaded so the probes
// answer during bootstrap.
func serveHTTP(ctx context.Context, p *platform.Platform, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           NewHTTPHandler(p),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("listening", "address", address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serving http: %w", err)
		}
	}()
	startCtx, cancelStart := context.WithCancel(ctx)
	defer cancelStart()
	startDone := make(chan struct{})
	go func() {
		defer close(startDone)
		if err := p.Start(startCtx); err != nil && startCtx.Err() == nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	cancelStart()
	<-startDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	stop(p)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("shutting down http server: %w", err))
	}
	return runErr
}

func stop(p *platform.Platform) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		slog.Warn("stopping platform", "error", err)
	}
}
