// Package repocfg loads per-repository pipeline settings from the
// .release-pilot.yaml manifest, with compiled-in defaults for the
// retail-store demo layout.
package repocfg

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nathantilsley/release-pilot/api"
	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
)

// ManifestPath is the repo-relative location of the pipeline manifest.
const ManifestPath = ".release-pilot.yaml"

const (
	defaultTrunkBranch = "main"
	defaultChartRoot   = "helm"
)

// Defaults returns the configuration used when a repository carries no
// manifest: one rule per retail-store service, mapping src/{name}/** to the
// service of the same name.
func Defaults(registry string) domain.RepoConfig {
	services := []string{"ui", "catalog", "cart", "checkout", "orders"}
	rules := make([]domain.ServiceRule, 0, len(services))
	for _, s := range services {
		rules = append(rules, domain.ServiceRule{
			Name:         s,
			PathPatterns: []string{"src/" + s + "/**"},
		})
	}
	return domain.RepoConfig{
		Registry:    registry,
		TrunkBranch: defaultTrunkBranch,
		ChartRoot:   defaultChartRoot,
		Rules:       rules,
	}
}

// Parse converts manifest YAML into a RepoConfig. Fields absent from the
// manifest fall back to their defaults; registry is the configured registry
// unless the manifest overrides it.
func Parse(content []byte, registry string) (domain.RepoConfig, error) {
	var manifest api.Manifest
	if err := yaml.Unmarshal(content, &manifest); err != nil {
		return domain.RepoConfig{}, fmt.Errorf("parsing manifest YAML: %w", err)
	}

	if len(manifest.Services) == 0 {
		return domain.RepoConfig{}, fmt.Errorf("manifest %s declares no services", ManifestPath)
	}

	cfg := domain.RepoConfig{
		Registry:    registry,
		TrunkBranch: defaultTrunkBranch,
		ChartRoot:   defaultChartRoot,
		ValuesFiles: make(map[string]string),
	}
	if manifest.Registry != "" {
		cfg.Registry = manifest.Registry
	}
	if manifest.TrunkBranch != "" {
		cfg.TrunkBranch = manifest.TrunkBranch
	}
	if manifest.ChartRoot != "" {
		cfg.ChartRoot = manifest.ChartRoot
	}

	for _, svc := range manifest.Services {
		if svc.Name == "" {
			return domain.RepoConfig{}, fmt.Errorf("manifest %s has a service without a name", ManifestPath)
		}
		cfg.Rules = append(cfg.Rules, domain.ServiceRule{
			Name:         svc.Name,
			PathPatterns: svc.Paths,
		})
		if svc.ValuesFile != "" {
			cfg.ValuesFiles[svc.Name] = svc.ValuesFile
		}
	}

	return cfg, nil
}
