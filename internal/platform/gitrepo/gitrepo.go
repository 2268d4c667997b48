// Package gitrepo manages a local git clone's lifecycle: clone, pull,
// periodic background sync, and committing changes back to the remote.
package gitrepo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultAuthorName  = "release-pilot"
	defaultAuthorEmail = "release-pilot@users.noreply.github.com"
)

// GitRepo owns the clone/pull/commit/push lifecycle for a single git
// repository. All git operations are serialized under mu; the branch is a
// shared resource and concurrent commits would conflict.
type GitRepo struct {
	repoURL      string
	localPath    string
	syncInterval time.Duration
	authorName   string
	authorEmail  string
	logger       *slog.Logger

	ready  atomic.Bool
	stopCh chan struct{}
	mu     sync.Mutex
}

// New creates a GitRepo for a remote to be cloned. No I/O is performed;
// call Start to clone/pull.
func New(repoURL, localPath string, syncInterval time.Duration, logger *slog.Logger) *GitRepo {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &GitRepo{
		repoURL:      repoURL,
		localPath:    localPath,
		syncInterval: syncInterval,
		authorName:   defaultAuthorName,
		authorEmail:  defaultAuthorEmail,
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
}

// Open wraps an existing checkout (e.g. the CI job's working tree). The repo
// is immediately ready; no clone or background sync happens.
func Open(localPath string, logger *slog.Logger) *GitRepo {
	r := New("", localPath, 0, logger)
	r.ready.Store(true)
	return r
}

// SetAuthor overrides the commit author identity.
func (r *GitRepo) SetAuthor(name, email string) {
	if name != "" {
		r.authorName = name
	}
	if email != "" {
		r.authorEmail = email
	}
}

// Start performs the initial clone (or pull if already cloned), marks the
// repo as ready, and starts the background sync goroutine.
func (r *GitRepo) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.initRepo(ctx); err != nil {
		return fmt.Errorf("initializing repo: %w", err)
	}

	r.ready.Store(true)

	if r.syncInterval > 0 {
		go r.syncLoop(ctx)
	}
	r.logger.Info("gitrepo started", "repoURL", r.repoURL, "syncInterval", r.syncInterval)
	return nil
}

// Ready returns true after Start completes the initial clone.
func (r *GitRepo) Ready() bool {
	return r.ready.Load()
}

// Path returns the local filesystem path of the repository.
func (r *GitRepo) Path() string {
	return r.localPath
}

// Stop signals the background sync goroutine to exit.
func (r *GitRepo) Stop() {
	close(r.stopCh)
}

// Commit stages the given repo-relative paths and commits them with the
// configured author identity.
func (r *GitRepo) Commit(ctx context.Context, paths []string, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	addArgs := append([]string{"-C", r.localPath, "add", "--"}, paths...)
	if out, err := r.git(ctx, addArgs...); err != nil {
		return fmt.Errorf("git add failed: %w\noutput: %s", err, out)
	}

	out, err := r.git(ctx,
		"-C", r.localPath,
		"-c", "user.name="+r.authorName,
		"-c", "user.email="+r.authorEmail,
		"commit", "-m", message,
	)
	if err != nil {
		return fmt.Errorf("git commit failed: %w\noutput: %s", err, out)
	}
	return nil
}

// Push pushes the current branch to the remote.
func (r *GitRepo) Push(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if out, err := r.git(ctx, "-C", r.localPath, "push"); err != nil {
		return fmt.Errorf("git push failed: %w\noutput: %s", err, out)
	}
	return nil
}

// PullRebase rebases local commits onto the updated remote branch. Used to
// recover when a push raced with another writer.
func (r *GitRepo) PullRebase(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if out, err := r.git(ctx, "-C", r.localPath, "pull", "--rebase"); err != nil {
		return fmt.Errorf("git pull --rebase failed: %w\noutput: %s", err, out)
	}
	return nil
}

// initRepo clones the repository if it doesn't exist, or pulls latest if it does.
func (r *GitRepo) initRepo(ctx context.Context) error {
	gitDir := filepath.Join(r.localPath, ".git")

	if _, err := os.Stat(gitDir); err == nil {
		r.logger.Info("repository already exists, pulling latest")
		return r.pullRepo(ctx)
	}

	r.logger.Info("cloning repository", "repoURL", r.repoURL)
	//nolint:gosec // G204: repoURL is from trusted config, not user input
	if out, err := r.git(ctx, "clone", "--depth=1", r.repoURL, r.localPath); err != nil {
		return fmt.Errorf("git clone failed: %w\noutput: %s", err, out)
	}
	return nil
}

// pullRepo pulls the latest changes from the remote repository.
func (r *GitRepo) pullRepo(ctx context.Context) error {
	if out, err := r.git(ctx, "-C", r.localPath, "pull", "--ff-only"); err != nil {
		return fmt.Errorf("git pull failed: %w\noutput: %s", err, out)
	}
	return nil
}

// git runs a git command and returns its combined output.
func (r *GitRepo) git(ctx context.Context, args ...string) (string, error) {
	//nolint:gosec // G204: arguments come from trusted config, not user input
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// syncLoop periodically pulls the remote.
func (r *GitRepo) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(r.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sync(ctx)
		case <-r.stopCh:
			r.logger.Info("stopping gitrepo sync loop")
			return
		}
	}
}

// sync performs a single pull cycle under mu.
func (r *GitRepo) sync(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("syncing git repository")
	if err := r.pullRepo(ctx); err != nil {
		r.logger.Error("failed to pull repository", "error", err)
		return
	}
	r.logger.Info("git repository synced successfully")
}
