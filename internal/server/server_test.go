package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-kusto/pkg/auth"
	"github.com/txn2/mcp-kusto/pkg/kusto/kustotest"
	"github.com/txn2/mcp-kusto/pkg/platform"
)

const (
	testAPIKey         = "test-key-12345"
	fmtConnectFailed   = "Connect failed: %v"
	fmtCallToolFailed  = "CallTool failed: %v"
	fmtWantTextContent = "expected TextContent, got %T"
)

// authRoundTripper adds an Authorization header to all outgoing requests.
type authRoundTripper struct {
	token string
	base  http.RoundTripper
}

func (a *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+a.token)
	resp, err := a.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("round trip: %w", err)
	}
	return resp, nil
}

func newPlatform(t *testing.T, keys []auth.APIKey) *platform.Platform {
	t.Helper()
	cfg, err := platform.ParseConfig([]byte("clusters: [help]\ncache: {backend: none}\nserver: {transport: http}\n"))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if len(keys) > 0 {
		cfg.Auth.APIKeys = platform.APIKeyAuthConfig{Enabled: true, Keys: keys}
	}
	p, err := platform.New(
		platform.WithConfig(cfg),
		platform.WithHandleFactory(kustotest.Factory(kustotest.Samples())),
	)
	if err != nil {
		t.Fatalf("platform.New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestVersion(t *testing.T) {
	if Version != "dev" {
		t.Errorf("expected Version 'dev', got %q", Version)
	}
}

func TestNewWithConfig(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := NewWithConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("no clusters", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("server:\n  name: test\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := NewWithConfig(path)
		if err == nil || !strings.Contains(err.Error(), "at least one cluster is required") {
			t.Errorf("expected cluster validation error, got %v", err)
		}
	})

	t.Run("overrides are validated", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("clusters: [help]\ncache:\n  backend: none\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := NewWithConfig(path, func(cfg *platform.Config) { cfg.Server.Transport = "carrier-pigeon" })
		if err == nil || !strings.Contains(err.Error(), "carrier-pigeon") {
			t.Errorf("expected transport validation error, got %v", err)
		}
	})
}

func TestHTTPHandler_Probes(t *testing.T) {
	p := newPlatform(t, []auth.APIKey{{Name: "ci", Key: testAPIKey}})
	handler := NewHTTPHandler(p)

	get := func(path string) int {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}

	if code := get("/healthz"); code != http.StatusOK {
		t.Errorf("/healthz = %d, want 200", code)
	}
	if code := get("/readyz"); code != http.StatusServiceUnavailable {
		t.Errorf("/readyz before start = %d, want 503", code)
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if code := get("/readyz"); code != http.StatusOK {
		t.Errorf("/readyz after start = %d, want 200", code)
	}
}

func TestHTTPHandler_RequiresAPIKey(t *testing.T) {
	p := newPlatform(t, []auth.APIKey{{Name: "ci", Key: testAPIKey}})
	httpServer := httptest.NewServer(NewHTTPHandler(p))
	defer httpServer.Close()

	resp, err := http.Post(httpServer.URL, "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHTTPHandler_ToolCall(t *testing.T) {
	ctx := context.Background()
	p := newPlatform(t, []auth.APIKey{{Name: "ci", Key: testAPIKey}})
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	httpServer := httptest.NewServer(NewHTTPHandler(p))
	defer httpServer.Close()

	httpClient := &http.Client{
		Transport: &authRoundTripper{token: testAPIKey, base: http.DefaultTransport},
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   httpServer.URL,
		HTTPClient: httpClient,
	}, nil)
	if err != nil {
		t.Fatalf(fmtConnectFailed, err)
	}
	defer func() { _ = session.Close() }()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      platform.ToolListClusters,
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf(fmtCallToolFailed, err)
	}
	if result.IsError || len(result.Content) == 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf(fmtWantTextContent, result.Content[0])
	}
	if !strings.Contains(tc.Text, "https://help.kusto.windows.net") {
		t.Errorf("cluster list %q does not name the help cluster", tc.Text)
	}
}

func TestRun_StopsWhenContextIsCanceled(t *testing.T) {
	p := newPlatform(t, nil)
	p.Config().Server.Address = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, p) }()

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v, want nil", err)
	}
}

func TestCorsMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("echoes origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
			t.Errorf("Allow-Origin = %q, want %q", got, "https://example.com")
		}
		for _, h := range []string{"Mcp-Session-Id", "X-API-Key", "Authorization"} {
			if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), h) {
				t.Errorf("Allow-Headers missing %q", h)
			}
		}
		if w.Code != http.StatusTeapot {
			t.Errorf("status = %d, want the inner handler's %d", w.Code, http.StatusTeapot)
		}
	})

	t.Run("answers preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/", nil))
		if w.Code != http.StatusOK {
			t.Errorf("OPTIONS status = %d, want 200", w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Allow-Origin = %q, want *", got)
		}
	})
}
