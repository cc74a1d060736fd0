package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/txn2/mcp-kusto/pkg/platform"
)

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-version"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(out.String(), "mcp-kusto version ") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestRun_HashKey(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-hash-key", "s3cret"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	hash := strings.TrimSpace(out.String())
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Errorf("printed hash does not match the key: %v", err)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing config", nil, "-config is required"},
		{"unknown flag", []string{"-nope"}, "parsing flags"},
		{"bad log level", []string{"-config", "x.yaml", "-log-level", "loud"}, "invalid log level"},
		{"missing file", []string{"-config", "/nonexistent/config.yaml"}, "creating server"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.args, &bytes.Buffer{})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("run(%v) = %v, want error containing %q", tt.args, err, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := parseLevel(in)
		if err != nil || got != want {
			t.Errorf("parseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := &platform.Config{}
	cfg.Server.Transport = platform.TransportStdio
	cfg.Server.Address = ":8080"

	applyOverrides(cfg, serverOptions{})
	if cfg.Server.Transport != platform.TransportStdio || cfg.Server.Address != ":8080" {
		t.Errorf("empty flags changed the config: %+v", cfg.Server)
	}

	applyOverrides(cfg, serverOptions{transport: platform.TransportHTTP, address: ":9090"})
	if cfg.Server.Transport != platform.TransportHTTP || cfg.Server.Address != ":9090" {
		t.Errorf("flags not applied: %+v", cfg.Server)
	}
}
