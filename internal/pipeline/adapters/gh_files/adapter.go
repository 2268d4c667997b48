// Package ghfiles lists the files a trigger touched via the GitHub API.
package ghfiles

import (
	"context"
	"fmt"
	"log/slog"

	gogithub "github.com/google/go-github/v68/github"

	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
)

// Adapter implements ports.FileChangesPort. Pull requests use the PR files
// API; pushes compare the before/after commits.
type Adapter struct {
	client *gogithub.Client
	logger *slog.Logger
}

// New creates a new GitHub file changes adapter.
func New(client *gogithub.Client, logger *slog.Logger) *Adapter {
	return &Adapter{client: client, logger: logger}
}

// ChangedFiles returns the repo-relative paths modified by the trigger.
func (a *Adapter) ChangedFiles(ctx context.Context, trigger domain.TriggerContext) ([]string, error) {
	if trigger.Event == domain.EventPullRequest {
		return a.listPRFiles(ctx, trigger)
	}
	return a.compareCommits(ctx, trigger)
}

// listPRFiles pages through the pull request's changed files.
func (a *Adapter) listPRFiles(ctx context.Context, trigger domain.TriggerContext) ([]string, error) {
	var files []string
	opts := &gogithub.ListOptions{PerPage: 100}

	for {
		page, resp, err := a.client.PullRequests.ListFiles(ctx, trigger.Owner, trigger.Repo, trigger.PRNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("listing PR files: %w", err)
		}
		for _, f := range page {
			files = append(files, f.GetFilename())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	a.logger.Debug("PR files listed", "pr", trigger.PRNumber, "count", len(files))
	return files, nil
}

// compareCommits diffs the push's before sha against its head. A push with
// no usable before sha (new branch, force push) falls back to the head
// commit's own file list.
func (a *Adapter) compareCommits(ctx context.Context, trigger domain.TriggerContext) ([]string, error) {
	if trigger.BeforeSHA == "" || isZeroSHA(trigger.BeforeSHA) {
		return a.commitFiles(ctx, trigger)
	}

	cmp, _, err := a.client.Repositories.CompareCommits(
		ctx, trigger.Owner, trigger.Repo, trigger.BeforeSHA, trigger.CommitSHA,
		&gogithub.ListOptions{PerPage: 100},
	)
	if err != nil {
		return nil, fmt.Errorf("comparing %s...%s: %w", trigger.BeforeSHA, trigger.CommitSHA, err)
	}

	files := make([]string, 0, len(cmp.Files))
	for _, f := range cmp.Files {
		files = append(files, f.GetFilename())
	}

	a.logger.Debug("push compared", "before", trigger.BeforeSHA, "head", trigger.CommitSHA, "count", len(files))
	return files, nil
}

// commitFiles lists the files of the head commit itself.
func (a *Adapter) commitFiles(ctx context.Context, trigger domain.TriggerContext) ([]string, error) {
	commit, _, err := a.client.Repositories.GetCommit(
		ctx, trigger.Owner, trigger.Repo, trigger.CommitSHA,
		&gogithub.ListOptions{PerPage: 100},
	)
	if err != nil {
		return nil, fmt.Errorf("fetching commit %s: %w", trigger.CommitSHA, err)
	}

	files := make([]string, 0, len(commit.Files))
	for _, f := range commit.Files {
		files = append(files, f.GetFilename())
	}
	return files, nil
}

// isZeroSHA reports whether the sha is the all-zero ref GitHub sends for
// branch creation events.
func isZeroSHA(sha string) bool {
	for _, c := range sha {
		if c != '0' {
			return false
		}
	}
	return true
}
