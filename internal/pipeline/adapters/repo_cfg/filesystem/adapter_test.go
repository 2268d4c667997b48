package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
)

func TestGetRepoConfig_ReadsManifest(t *testing.T) {
	root := t.TempDir()
	manifest := `
services:
  - name: ui
    paths: ["src/ui/**"]
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ".release-pilot.yaml"), []byte(manifest), 0o644))

	cfg, err := New(root, "registry.example.com/retail").GetRepoConfig(context.Background(), domain.TriggerContext{})
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "ui", cfg.Rules[0].Name)
}

func TestGetRepoConfig_MissingManifestUsesDefaults(t *testing.T) {
	cfg, err := New(t.TempDir(), "registry.example.com/retail").GetRepoConfig(context.Background(), domain.TriggerContext{})
	require.NoError(t, err)
	assert.Len(t, cfg.Rules, 5)
	assert.Equal(t, "main", cfg.TrunkBranch)
}
