package platform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPromptDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "storms.md"), []byte("Summarize storm damage."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("Prefer has over contains."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.json"), []byte("{}"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.md"), 0o750))

	prompts, err := loadPromptDir(dir)
	require.NoError(t, err)

	got := map[string]string{}
	for _, p := range prompts {
		got[p.Name] = p.Content
	}
	assert.Equal(t, map[string]string{
		"storms": "Summarize storm damage.",
		"notes":  "Prefer has over contains.",
	}, got)

	prompts, err = loadPromptDir(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, prompts)

	prompts, err = loadPromptDir("")
	require.NoError(t, err)
	assert.Empty(t, prompts)
}

func TestPlatform_Prompts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "storms.md"), []byte("from file"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "triage.md"), []byte("triage steps"), 0o600))

	cfg := testConfig(func(c *Config) {
		c.Server.PromptsDir = dir
		c.Server.Prompts = []PromptConfig{{Name: "storms", Description: "Storm analysis", Content: "inline"}}
	})
	p, _ := newTestPlatform(t, cfg)
	cs := connect(t, p)
	ctx := context.Background()

	list, err := cs.ListPrompts(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, pr := range list.Prompts {
		names = append(names, pr.Name)
	}
	assert.ElementsMatch(t, []string{"storms", "triage"}, names)

	res, err := cs.GetPrompt(ctx, &mcp.GetPromptParams{Name: "storms"})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text, ok := res.Messages[0].Content.(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "inline", text.Text)
}

func TestValidate_Prompts(t *testing.T) {
	cfg := testConfig(func(c *Config) { c.Server.Prompts = []PromptConfig{{Name: "empty"}} })
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.prompts[0]")
}
