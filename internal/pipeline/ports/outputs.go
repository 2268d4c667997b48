package ports

import (
	"context"

	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
)

// FileChangesPort abstracts listing the files modified by a trigger.
type FileChangesPort interface {
	ChangedFiles(ctx context.Context, trigger domain.TriggerContext) ([]string, error)
}

// RepoConfigPort abstracts loading the service rules and repo settings
// that drive the pipeline.
type RepoConfigPort interface {
	GetRepoConfig(ctx context.Context, trigger domain.TriggerContext) (domain.RepoConfig, error)
}

// ValuesRewriterPort abstracts rewriting the image section of a chart values
// document, separated from storage so the rewrite strategy is independently
// swappable.
type ValuesRewriterPort interface {
	Rewrite(doc []byte, repository, tag string) (updated []byte, changed bool, err error)
}

// DeployRepoPort abstracts the repository holding the chart values files.
// CommitAndPush must serialize concurrent callers; the branch is a shared
// resource.
type DeployRepoPort interface {
	ReadValues(ctx context.Context, path string) ([]byte, error)
	WriteValues(ctx context.Context, path string, content []byte) error
	CommitAndPush(ctx context.Context, paths []string, message string) error
}

// DiffPort abstracts computing a human-readable diff between two documents.
type DiffPort interface {
	ComputeDiff(baseName, headName string, base, head []byte) string
}

// ReportingPort abstracts posting pipeline results back to the trigger's
// commit or pull request.
type ReportingPort interface {
	CreateInProgressCheck(ctx context.Context, trigger domain.TriggerContext) (int64, error)
	UpdateCheckWithResults(ctx context.Context, trigger domain.TriggerContext, checkRunID int64, results []domain.UpdateResult) error
	PostComment(ctx context.Context, trigger domain.TriggerContext, results []domain.UpdateResult) error
}
