package domain

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ServiceRule maps a service name to the source paths that build it.
type ServiceRule struct {
	Name         string
	PathPatterns []string // doublestar globs, e.g. "src/ui/**"
}

// Matches reports whether the given repo-relative path belongs to this
// service. Patterns without glob metacharacters are treated as directory
// prefixes, so "src/ui" and "src/ui/**" are equivalent.
func (r ServiceRule) Matches(path string) bool {
	for _, pattern := range r.PathPatterns {
		if !strings.ContainsAny(pattern, "*?[{") {
			prefix := strings.TrimSuffix(pattern, "/")
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

// DetectServices maps a set of changed file paths to the services affected by
// them, in rule order and without duplicates. When buildAll is set the full
// rule set is returned regardless of the changed paths. An empty result means
// nothing downstream should run.
func DetectServices(changedFiles []string, rules []ServiceRule, buildAll bool) []string {
	var services []string
	for _, rule := range rules {
		if buildAll {
			services = append(services, rule.Name)
			continue
		}
		for _, f := range changedFiles {
			if rule.Matches(f) {
				services = append(services, rule.Name)
				break
			}
		}
	}
	return services
}
