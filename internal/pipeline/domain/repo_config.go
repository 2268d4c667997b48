package domain

import "path"

// RepoConfig holds the per-repository pipeline settings, loaded from the
// .release-pilot.yaml manifest or falling back to compiled-in defaults.
type RepoConfig struct {
	Registry    string
	TrunkBranch string
	ChartRoot   string
	Rules       []ServiceRule
	// ValuesFiles overrides the default values file location per service.
	ValuesFiles map[string]string
}

// ValuesPathFor returns the repo-relative path of the values file that deploys
// the given service.
func (c RepoConfig) ValuesPathFor(service string) string {
	if p, ok := c.ValuesFiles[service]; ok && p != "" {
		return p
	}
	return path.Join(c.ChartRoot, service, "values.yaml")
}
