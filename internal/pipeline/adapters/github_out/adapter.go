// Package githubout handles GitHub output (check runs and PR comments).
package githubout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	gogithub "github.com/google/go-github/v68/github"

	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
)

const maxCheckRunTextLen = 65535

// Adapter implements ports.ReportingPort by posting results via the
// GitHub Checks API.
type Adapter struct {
	client  *gogithub.Client
	appName string
	appURL  string
	logger  *slog.Logger
}

// New creates a new GitHub reporting adapter.
func New(client *gogithub.Client, appName, appURL string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Adapter{client: client, appName: appName, appURL: appURL, logger: logger}
}

// CreateInProgressCheck creates a check run in "in_progress" status on the
// trigger's head commit.
func (a *Adapter) CreateInProgressCheck(ctx context.Context, trigger domain.TriggerContext) (int64, error) {
	a.logger.Info("creating in-progress check", "sha", trigger.CommitSHA)

	checkRun, _, err := a.client.Checks.CreateCheckRun(ctx, trigger.Owner, trigger.Repo, gogithub.CreateCheckRunOptions{
		Name:    a.appName,
		HeadSHA: trigger.CommitSHA,
		Status:  gogithub.Ptr("in_progress"),
		Output: &gogithub.CheckRunOutput{
			Title:   gogithub.Ptr("Build Plan"),
			Summary: gogithub.Ptr("Computing affected services..."),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("creating in-progress check: %w", err)
	}

	a.logger.Info("in-progress check created", "checkRunID", checkRun.GetID())
	return checkRun.GetID(), nil
}

// UpdateCheckWithResults updates an existing check run with final results.
func (a *Adapter) UpdateCheckWithResults(
	ctx context.Context,
	trigger domain.TriggerContext,
	checkRunID int64,
	results []domain.UpdateResult,
) error {
	a.logger.Info("updating check run with results", "checkRunID", checkRunID, "numResults", len(results))

	if len(results) == 0 {
		return errors.New("no results to update check run")
	}

	conclusion, summary, text := formatCheckRun(results)

	_, _, err := a.client.Checks.UpdateCheckRun(ctx, trigger.Owner, trigger.Repo, checkRunID, gogithub.UpdateCheckRunOptions{
		Name:       a.appName,
		Status:     gogithub.Ptr("completed"),
		Conclusion: gogithub.Ptr(conclusion),
		Output: &gogithub.CheckRunOutput{
			Title:   gogithub.Ptr("Build Plan"),
			Summary: gogithub.Ptr(summary),
			Text:    gogithub.Ptr(text),
		},
	})
	if err != nil {
		return fmt.Errorf("updating check run: %w", err)
	}

	a.logger.Info("check run updated successfully", "checkRunID", checkRunID)
	return nil
}

// PostComment posts a PR comment with the build plan and values diffs.
func (a *Adapter) PostComment(ctx context.Context, trigger domain.TriggerContext, results []domain.UpdateResult) error {
	if len(results) == 0 {
		return errors.New("no results to post comment")
	}

	a.logger.Info("posting PR comment", "pr", trigger.PRNumber, "numResults", len(results))

	commentMarker := fmt.Sprintf("<!-- %s -->", a.appName)

	// Delete old comments so each push replaces rather than accumulates
	a.deleteMatchingComments(ctx, trigger, commentMarker)

	commentBody := a.FormatPRComment(results)

	_, _, err := a.client.Issues.CreateComment(ctx, trigger.Owner, trigger.Repo, trigger.PRNumber, &gogithub.IssueComment{
		Body: gogithub.Ptr(commentBody),
	})
	if err != nil {
		return fmt.Errorf("creating PR comment: %w", err)
	}

	a.logger.Info("PR comment posted successfully", "pr", trigger.PRNumber)
	return nil
}

// deleteMatchingComments deletes comments containing the given marker.
func (a *Adapter) deleteMatchingComments(ctx context.Context, trigger domain.TriggerContext, marker string) {
	comments, _, err := a.client.Issues.ListComments(
		ctx,
		trigger.Owner,
		trigger.Repo,
		trigger.PRNumber,
		&gogithub.IssueListCommentsOptions{},
	)
	if err != nil {
		a.logger.Warn("failed to list comments, continuing anyway", "error", err)
		return
	}
	for _, comment := range comments {
		if strings.Contains(comment.GetBody(), marker) {
			a.logger.Info("deleting old comment", "commentID", comment.GetID())
			_, err := a.client.Issues.DeleteComment(ctx, trigger.Owner, trigger.Repo, comment.GetID())
			if err != nil {
				a.logger.Warn("failed to delete old comment", "commentID", comment.GetID(), "error", err)
			}
		}
	}
}

// formatCheckRun builds the conclusion, summary, and collapsible text for
// the check run.
func formatCheckRun(results []domain.UpdateResult) (conclusion, summary, text string) {
	unchanged, updated, errorCount := domain.CountByStatus(results)

	conclusion = "success"
	if errorCount > 0 {
		conclusion = "failure"
	}

	summary = fmt.Sprintf("%d service(s) affected: %d updated, %d already current, %d failed",
		len(results), updated, unchanged, errorCount)

	var sb strings.Builder
	writePlanTable(&sb, results)
	writeDiffDetails(&sb, results)
	text = truncateIfNeeded(sb.String())

	return conclusion, summary, text
}

func writePlanTable(sb *strings.Builder, results []domain.UpdateResult) {
	sb.WriteString("| Service | Image | Status |\n")
	sb.WriteString("|---------|-------|--------|\n")
	for _, r := range results {
		fmt.Fprintf(sb, "| `%s` | `%s` | %s |\n", r.Service, r.ImageRef, statusLabel(r))
	}
	sb.WriteString("\n")
}

func writeDiffDetails(sb *strings.Builder, results []domain.UpdateResult) {
	for _, r := range results {
		switch r.Status {
		case domain.StatusError:
			fmt.Fprintf(sb, "<details>\n<summary><b>%s</b> — Error details</summary>\n\n", r.Service)
			fmt.Fprintf(sb, "%s\n\n", r.Summary)
			sb.WriteString("</details>\n\n")
		case domain.StatusUpdated:
			fmt.Fprintf(sb, "<details>\n<summary><b>%s</b> — View values diff</summary>\n\n", r.Service)
			fmt.Fprintf(sb, "```diff\n%s\n```\n\n", r.Diff)
			sb.WriteString("</details>\n\n")
		case domain.StatusUnchanged:
			// Already shown in the table
		}
	}
}

func statusLabel(r domain.UpdateResult) string {
	switch r.Status {
	case domain.StatusError:
		return "❌ Error"
	case domain.StatusUpdated:
		if r.Persisted {
			return "📝 Updated (committed)"
		}
		return "📝 Update pending"
	case domain.StatusUnchanged:
		return "✅ Already current"
	default:
		return "Unknown"
	}
}

func truncateIfNeeded(text string) string {
	if len(text) > maxCheckRunTextLen {
		truncMsg := "\n\n... (output truncated)"
		return text[:maxCheckRunTextLen-len(truncMsg)] + truncMsg
	}
	return text
}

// FormatPRComment formats a PR comment body for the run's results.
// Exported for use in integration tests.
func (a *Adapter) FormatPRComment(results []domain.UpdateResult) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder

	// Hidden marker for identifying this comment (for deletion on updates)
	fmt.Fprintf(&sb, "<!-- %s -->\n", a.appName)

	sb.WriteString("## 🚀 Build Plan\n\n")

	_, updated, errorCount := domain.CountByStatus(results)
	switch {
	case errorCount > 0:
		fmt.Fprintf(&sb, "❌ **Status:** %d service(s) failed to update\n\n", errorCount)
	case updated > 0:
		fmt.Fprintf(&sb, "✅ **Status:** %d service(s) would be updated on merge\n\n", updated)
	default:
		sb.WriteString("✅ **Status:** All affected services already current\n\n")
	}

	writePlanTable(&sb, results)
	writeDiffDetails(&sb, results)

	sb.WriteString("---\n")
	if a.appURL != "" {
		fmt.Fprintf(&sb, "_Posted by [%s](%s)_\n", a.appName, a.appURL)
	} else {
		fmt.Fprintf(&sb, "_Posted by %s_\n", a.appName)
	}

	return sb.String()
}
