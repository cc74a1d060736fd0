package platform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerPrompts serves the configured prompts. A file prompt whose name
// is also configured inline is skipped.
func (p *Platform) registerPrompts() error {
	prompts := slices.Clone(p.config.Server.Prompts)

	fromDir, err := loadPromptDir(p.config.Server.PromptsDir)
	if err != nil {
		return err
	}
	for _, pr := range fromDir {
		if slices.ContainsFunc(prompts, func(c PromptConfig) bool { return c.Name == pr.Name }) {
			slog.Warn("prompt file shadowed by configured prompt", "prompt", pr.Name)
			continue
		}
		prompts = append(prompts, pr)
	}

	for _, pr := range prompts {
		p.registerPrompt(pr)
	}
	return nil
}

func (p *Platform) registerPrompt(cfg PromptConfig) {
	content := cfg.Content
	p.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        cfg.Name,
		Description: cfg.Description,
	}, func(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Description: cfg.Description,
			Messages: []*mcp.PromptMessage{
				{Role: "user", Content: &mcp.TextContent{Text: content}},
			},
		}, nil
	})
}

// loadPromptDir reads every .md and .txt file in dir as a prompt named
// after the file. A missing directory yields no prompts.
func loadPromptDir(dir string) ([]PromptConfig, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading prompts directory: %w", err)
	}

	var prompts []PromptConfig
	for _, entry := range entries {
		name := entry.Name()
		ext := filepath.Ext(name)
		if entry.IsDir() || (ext != ".md" && ext != ".txt") {
			continue
		}
		// #nosec G304 -- path is built from a directory listing
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading prompt %s: %w", name, err)
		}
		prompts = append(prompts, PromptConfig{
			Name:        strings.TrimSuffix(name, ext),
			Description: "Prompt loaded from " + name,
			Content:     string(content),
		})
	}
	return prompts, nil
}
