// Package main provides the entry point for the mcp-kusto server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mcpserver "github.com/txn2/mcp-kusto/internal/server"
	"github.com/txn2/mcp-kusto/pkg/auth"
	"github.com/txn2/mcp-kusto/pkg/platform"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serverOptions struct {
	configPath  string
	transport   string
	address     string
	logLevel    string
	hashKey     string
	showVersion bool
}

func parseFlags(args []string) (serverOptions, error) {
	opts := serverOptions{}
	fs := flag.NewFlagSet("mcp-kusto", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&opts.transport, "transport", "", "Override the configured transport: stdio, http")
	fs.StringVar(&opts.address, "address", "", "Override the configured HTTP listen address")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&opts.hashKey, "hash-key", "", "Print a bcrypt hash of the given API key and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("parsing flags: %w", err)
	}
	return opts, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	switch {
	case opts.showVersion:
		_, _ = fmt.Fprintf(stdout, "mcp-kusto version %s\n", mcpserver.Version)
		return nil
	case opts.hashKey != "":
		hash, err := auth.HashKey(opts.hashKey)
		if err != nil {
			return fmt.Errorf("hashing key: %w", err)
		}
		_, _ = fmt.Fprintln(stdout, hash)
		return nil
	case opts.configPath == "":
		return errors.New("-config is required")
	}

	level, err := parseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	// stdout carries the stdio transport, so logs go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := mcpserver.NewWithConfig(opts.configPath, func(cfg *platform.Config) {
		applyOverrides(cfg, opts)
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			slog.Warn("closing platform", "error", err)
		}
	}()

	return mcpserver.Run(ctx, p)
}

func applyOverrides(cfg *platform.Config, opts serverOptions) {
	if opts.transport != "" {
		cfg.Server.Transport = opts.transport
	}
	if opts.address != "" {
		cfg.Server.Address = opts.address
	}
}
