package api

// Manifest is the top-level schema of the .release-pilot.yaml file
// stored in target repositories.
type Manifest struct {
	// Registry overrides the configured image registry for this repo.
	Registry string `yaml:"registry,omitempty"`
	// TrunkBranch is the branch whose builds persist chart updates.
	// Defaults to "main".
	TrunkBranch string `yaml:"trunkBranch,omitempty"`
	// ChartRoot is the directory holding one Helm chart per service.
	// Defaults to "helm".
	ChartRoot string `yaml:"chartRoot,omitempty"`
	// Services maps each deployable service to its source paths.
	Services []ManifestService `yaml:"services"`
}

// ManifestService maps a service name to the source paths that build it.
type ManifestService struct {
	Name string `yaml:"name"`
	// Paths are doublestar globs relative to the repo root, e.g. "src/ui/**".
	Paths []string `yaml:"paths"`
	// ValuesFile overrides the default {chartRoot}/{name}/values.yaml location.
	ValuesFile string `yaml:"valuesFile,omitempty"`
}
