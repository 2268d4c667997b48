// Package gitdeploy implements the deploy repository port on top of a local
// git clone managed by the platform gitrepo package.
package gitdeploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
	"github.com/nathantilsley/release-pilot/internal/platform/gitrepo"
)

// Adapter reads and writes chart values files inside a git clone and pushes
// commits back to the remote. A mutex serializes CommitAndPush; the deploy
// branch is a shared resource and concurrent pushes would conflict.
type Adapter struct {
	repo   *gitrepo.GitRepo
	logger *slog.Logger
	mu     sync.Mutex
}

// NewAdapter creates a deploy repo adapter over an existing GitRepo.
func NewAdapter(repo *gitrepo.GitRepo, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Adapter{repo: repo, logger: logger}
}

// ReadValues reads a repo-relative values file from the clone.
func (a *Adapter) ReadValues(_ context.Context, path string) ([]byte, error) {
	content, err := os.ReadFile(filepath.Join(a.repo.Path(), path))
	if os.IsNotExist(err) {
		service := filepath.Base(filepath.Dir(path))
		return nil, domain.NewNotFoundError(service, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading values file %s: %w", path, err)
	}
	return content, nil
}

// WriteValues writes a repo-relative values file in the clone. The commit
// happens separately via CommitAndPush.
func (a *Adapter) WriteValues(_ context.Context, path string, content []byte) error {
	full := filepath.Join(a.repo.Path(), path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return fmt.Errorf("writing values file %s: %w", path, err)
	}
	return nil
}

// CommitAndPush commits the given paths and pushes to the remote. When the
// push is rejected because another writer advanced the branch, the adapter
// rebases the commit onto the new head and retries with backoff.
func (a *Adapter) CommitAndPush(ctx context.Context, paths []string, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.repo.Commit(ctx, paths, message); err != nil {
		return fmt.Errorf("committing %d file(s): %w", len(paths), err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		pushErr := a.repo.Push(ctx)
		if pushErr == nil {
			return nil
		}
		a.logger.Warn("push rejected, rebasing onto remote head", "error", pushErr)
		if err := a.repo.PullRebase(ctx); err != nil {
			return fmt.Errorf("rebasing onto remote head: %w", err)
		}
		return retry.RetryableError(pushErr)
	})
	if err != nil {
		return fmt.Errorf("pushing commit: %w", err)
	}

	a.logger.Info("pushed deploy commit", "files", len(paths), "message", message)
	return nil
}
