// Package filesystem loads the pipeline manifest from a local checkout.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	repocfg "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/repo_cfg"
	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
)

// Adapter implements ports.RepoConfigPort by reading .release-pilot.yaml
// from the working tree (the CLI runs inside the checked-out repo).
type Adapter struct {
	root     string
	registry string
}

// New creates a filesystem manifest adapter rooted at the given checkout.
func New(root, registry string) *Adapter {
	return &Adapter{root: root, registry: registry}
}

// GetRepoConfig reads and parses the manifest, falling back to the
// compiled-in defaults when the file does not exist.
func (a *Adapter) GetRepoConfig(_ context.Context, _ domain.TriggerContext) (domain.RepoConfig, error) {
	content, err := os.ReadFile(filepath.Join(a.root, repocfg.ManifestPath))
	if err != nil {
		if os.IsNotExist(err) {
			return repocfg.Defaults(a.registry), nil
		}
		return domain.RepoConfig{}, fmt.Errorf("reading manifest: %w", err)
	}

	return repocfg.Parse(content, a.registry)
}
