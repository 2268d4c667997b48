// Package githubcfg loads the pipeline manifest from the target repository
// via the GitHub contents API.
package githubcfg

import (
	"context"
	"fmt"
	"net/http"

	gogithub "github.com/google/go-github/v68/github"

	repocfg "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/repo_cfg"
	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
)

// Adapter implements ports.RepoConfigPort by fetching .release-pilot.yaml
// from the repository at the trigger's commit. A repository without a
// manifest gets the compiled-in retail-store defaults.
type Adapter struct {
	client   *gogithub.Client
	registry string
}

// New creates a new GitHub manifest adapter.
func New(client *gogithub.Client, registry string) *Adapter {
	return &Adapter{client: client, registry: registry}
}

// GetRepoConfig fetches and parses the manifest at the trigger's commit sha.
func (a *Adapter) GetRepoConfig(ctx context.Context, trigger domain.TriggerContext) (domain.RepoConfig, error) {
	fileContent, _, resp, err := a.client.Repositories.GetContents(
		ctx, trigger.Owner, trigger.Repo, repocfg.ManifestPath,
		&gogithub.RepositoryContentGetOptions{Ref: trigger.CommitSHA},
	)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return repocfg.Defaults(a.registry), nil
		}
		return domain.RepoConfig{}, fmt.Errorf("fetching manifest: %w", err)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return domain.RepoConfig{}, fmt.Errorf("decoding manifest content: %w", err)
	}

	return repocfg.Parse([]byte(content), a.registry)
}
