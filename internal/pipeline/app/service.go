package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
	"github.com/nathantilsley/release-pilot/internal/pipeline/ports"
)

const noChangesMessage = "Values already up to date."

// PipelineService implements ports.PipelineUseCase by orchestrating the full
// decision flow: detect affected services, derive image tags, rewrite chart
// values, and persist or report the result.
type PipelineService struct {
	fileChanges ports.FileChangesPort
	repoConfig  ports.RepoConfigPort
	rewriter    ports.ValuesRewriterPort
	deployRepo  ports.DeployRepoPort
	differ      ports.DiffPort
	reporter    ports.ReportingPort // optional: nil in CLI mode
	dryRun      bool                // compute and report, never write or commit
	logger      *slog.Logger

	detectedCounter  metric.Int64Counter
	persistedCounter metric.Int64Counter
	failureCounter   metric.Int64Counter
	tracer           trace.Tracer
}

// NewPipelineService creates a PipelineService wired with all driven ports.
// reporter may be nil when no check run or comment output is wanted (CLI
// mode). With dryRun set the service computes diffs and tags but never writes
// or commits, regardless of the trigger.
func NewPipelineService(
	fc ports.FileChangesPort,
	rc ports.RepoConfigPort,
	rw ports.ValuesRewriterPort,
	dr ports.DeployRepoPort,
	df ports.DiffPort,
	rp ports.ReportingPort,
	dryRun bool,
	logger *slog.Logger,
	meter metric.Meter,
	tracer trace.Tracer,
) *PipelineService {
	detected, _ := meter.Int64Counter("release_pilot.services_detected")
	persisted, _ := meter.Int64Counter("release_pilot.updates_persisted")
	failures, _ := meter.Int64Counter("release_pilot.update_failures")

	return &PipelineService{
		fileChanges:      fc,
		repoConfig:       rc,
		rewriter:         rw,
		deployRepo:       dr,
		differ:           df,
		reporter:         rp,
		dryRun:           dryRun,
		logger:           logger,
		detectedCounter:  detected,
		persistedCounter: persisted,
		failureCounter:   failures,
		tracer:           tracer,
	}
}

// Execute runs the pipeline for a trigger. Per-service failures do not abort
// the remaining services; they surface as StatusError results and a failed
// check run conclusion.
func (s *PipelineService) Execute(ctx context.Context, trigger domain.TriggerContext) ([]domain.UpdateResult, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.Execute", trace.WithAttributes(
		attribute.String("trigger.event", trigger.Event.String()),
		attribute.String("trigger.branch", trigger.Branch),
	))
	defer span.End()

	if err := trigger.Validate(); err != nil {
		return nil, fmt.Errorf("validating trigger: %w", err)
	}

	cfg, err := s.repoConfig.GetRepoConfig(ctx, trigger)
	if err != nil {
		return nil, fmt.Errorf("loading repo config: %w", err)
	}

	services, err := s.detectServices(ctx, trigger, cfg)
	if err != nil {
		return nil, err
	}

	if len(services) == 0 {
		s.logger.Info("no services affected, skipping run",
			"event", trigger.Event.String(),
			"sha", trigger.CommitSHA,
		)
		return nil, nil
	}

	s.detectedCounter.Add(ctx, int64(len(services)))
	s.logger.Info("services affected", "count", len(services), "services", strings.Join(services, ","))

	tags, err := trigger.Tags()
	if err != nil {
		return nil, fmt.Errorf("generating tags: %w", err)
	}
	primaryTag := tags[0]

	var checkRunID int64
	if s.reporter != nil {
		checkRunID, err = s.reporter.CreateInProgressCheck(ctx, trigger)
		if err != nil {
			return nil, fmt.Errorf("creating in-progress check: %w", err)
		}
	}

	persist := !s.dryRun && trigger.ShouldPersist(cfg.TrunkBranch)
	s.logger.Info("processing chart updates",
		"tag", primaryTag,
		"persist", persist,
		"dryRun", s.dryRun,
		"trunk", cfg.TrunkBranch,
	)

	results, changedPaths := s.updateServices(ctx, cfg, services, tags, persist)

	if persist && len(changedPaths) > 0 {
		message := commitMessage(results, primaryTag)
		if err := s.deployRepo.CommitAndPush(ctx, changedPaths, message); err != nil {
			s.failureCounter.Add(ctx, 1)
			s.markCommitFailure(results, err)
		} else {
			s.persistedCounter.Add(ctx, int64(len(changedPaths)))
			s.logger.Info("chart updates committed", "paths", len(changedPaths), "tag", primaryTag)
		}
	}

	s.report(ctx, trigger, checkRunID, results)

	return results, nil
}

// detectServices resolves the affected service set for the trigger. A manual
// build-all run skips the changed-file lookup entirely.
func (s *PipelineService) detectServices(
	ctx context.Context,
	trigger domain.TriggerContext,
	cfg domain.RepoConfig,
) ([]string, error) {
	if trigger.BuildAll {
		s.logger.Info("build-all requested, selecting every known service")
		return domain.DetectServices(nil, cfg.Rules, true), nil
	}

	files, err := s.fileChanges.ChangedFiles(ctx, trigger)
	if err != nil {
		return nil, fmt.Errorf("listing changed files: %w", err)
	}
	s.logger.Debug("changed files resolved", "count", len(files))

	return domain.DetectServices(files, cfg.Rules, false), nil
}

// updateServices rewrites the values file of each affected service, returning
// the per-service results and the repo-relative paths that actually changed.
func (s *PipelineService) updateServices(
	ctx context.Context,
	cfg domain.RepoConfig,
	services []string,
	tags []string,
	persist bool,
) ([]domain.UpdateResult, []string) {
	primaryTag := tags[0]
	var results []domain.UpdateResult
	var changedPaths []string

	for _, svc := range services {
		repository := cfg.Registry + "/" + svc
		result := domain.UpdateResult{
			Service:  svc,
			Tags:     tags,
			ImageRef: domain.ImageRef(cfg.Registry, svc, primaryTag),
		}

		valuesPath := cfg.ValuesPathFor(svc)
		doc, err := s.deployRepo.ReadValues(ctx, valuesPath)
		if err != nil {
			s.logger.Error("failed to read values file", "service", svc, "path", valuesPath, "error", err)
			result.Status = domain.StatusError
			result.Summary = err.Error()
			s.failureCounter.Add(ctx, 1)
			results = append(results, result)
			continue
		}

		updated, changed, err := s.rewriter.Rewrite(doc, repository, primaryTag)
		if err != nil {
			s.logger.Error("failed to rewrite values", "service", svc, "path", valuesPath, "error", err)
			result.Status = domain.StatusError
			result.Summary = err.Error()
			s.failureCounter.Add(ctx, 1)
			results = append(results, result)
			continue
		}

		if !changed {
			s.logger.Info("values unchanged", "service", svc, "tag", primaryTag)
			result.Status = domain.StatusUnchanged
			result.Summary = noChangesMessage
			results = append(results, result)
			continue
		}

		result.Status = domain.StatusUpdated
		result.Summary = fmt.Sprintf("Image set to %s.", result.ImageRef)
		result.Diff = s.differ.ComputeDiff(
			valuesPath+" (current)",
			valuesPath+" ("+primaryTag+")",
			doc, updated,
		)

		if persist {
			if err := s.deployRepo.WriteValues(ctx, valuesPath, updated); err != nil {
				s.logger.Error("failed to write values file", "service", svc, "path", valuesPath, "error", err)
				result.Status = domain.StatusError
				result.Summary = err.Error()
				s.failureCounter.Add(ctx, 1)
				results = append(results, result)
				continue
			}
			result.Persisted = true
			changedPaths = append(changedPaths, valuesPath)
		}

		results = append(results, result)
	}

	return results, changedPaths
}

// markCommitFailure downgrades persisted results after a failed commit so the
// check run reflects reality.
func (s *PipelineService) markCommitFailure(results []domain.UpdateResult, err error) {
	s.logger.Error("failed to commit chart updates", "error", err)
	for i := range results {
		if results[i].Persisted {
			results[i].Persisted = false
			results[i].Status = domain.StatusError
			results[i].Summary = fmt.Sprintf("commit failed: %s", err)
		}
	}
}

func (s *PipelineService) report(
	ctx context.Context,
	trigger domain.TriggerContext,
	checkRunID int64,
	results []domain.UpdateResult,
) {
	if s.reporter == nil {
		return
	}

	if err := s.reporter.UpdateCheckWithResults(ctx, trigger, checkRunID, results); err != nil {
		s.logger.Error("failed to update check run", "checkRunID", checkRunID, "error", err)
	}

	// Comments only make sense on pull requests, and only when there is
	// something to show.
	if trigger.Event == domain.EventPullRequest && hasReportableChanges(results) {
		if err := s.reporter.PostComment(ctx, trigger, results); err != nil {
			s.logger.Error("failed to post PR comment", "pr", trigger.PRNumber, "error", err)
		}
	}
}

// hasReportableChanges returns true if any result has changes or errors.
func hasReportableChanges(results []domain.UpdateResult) bool {
	for _, r := range results {
		if r.Status == domain.StatusUpdated || r.Status == domain.StatusError {
			return true
		}
	}
	return false
}

// commitMessage builds the trunk commit message for a set of persisted updates.
// The [skip ci] marker keeps the commit from re-triggering the pipeline.
func commitMessage(results []domain.UpdateResult, tag string) string {
	var services []string
	for _, r := range results {
		if r.Persisted {
			services = append(services, r.Service)
		}
	}
	return fmt.Sprintf("chore(release): set %s image tag to %s [skip ci]",
		strings.Join(services, ", "), tag)
}
