// Package gitfiles lists changed files by shelling out to git in a local
// checkout, for runs inside a CI job.
package gitfiles

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
)

// Adapter implements ports.FileChangesPort against a working tree.
type Adapter struct {
	gitBin  string
	workdir string
}

// New creates a git-based file changes adapter rooted at the checkout. It
// verifies the git binary is on PATH at construction time.
func New(workdir string) (*Adapter, error) {
	gitBin, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git binary not found: %w", err)
	}
	return &Adapter{gitBin: gitBin, workdir: workdir}, nil
}

// ChangedFiles diffs the trigger's commit range. Pull requests diff against
// the merge base of the base branch; pushes diff before..head, falling back
// to the head commit's parent when no before sha is known.
func (a *Adapter) ChangedFiles(ctx context.Context, trigger domain.TriggerContext) ([]string, error) {
	var rangeSpec string
	switch {
	case trigger.Event == domain.EventPullRequest && trigger.Branch != "":
		rangeSpec = "origin/" + trigger.Branch + "...HEAD"
	case trigger.BeforeSHA != "":
		rangeSpec = trigger.BeforeSHA + ".." + trigger.CommitSHA
	default:
		rangeSpec = "HEAD~1..HEAD"
	}

	cmd := exec.CommandContext(ctx, a.gitBin, "-C", a.workdir, "diff", "--name-only", rangeSpec)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git diff %s failed: %w\nstderr: %s", rangeSpec, err, stderr.String())
	}

	var files []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}
