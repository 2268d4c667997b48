// Package githubin handles incoming GitHub webhook events.
package githubin

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v68/github"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
	"github.com/nathantilsley/release-pilot/internal/pipeline/ports"
)

const maxConcurrentWebhooks = 5

// WebhookHandler handles incoming GitHub webhook events.
type WebhookHandler struct {
	useCase       ports.PipelineUseCase
	webhookSecret []byte
	logger        *slog.Logger
	sem           chan struct{}
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(
	uc ports.PipelineUseCase,
	secret string,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		useCase:       uc,
		webhookSecret: []byte(secret),
		logger:        logger,
		sem:           make(chan struct{}, maxConcurrentWebhooks),
	}
}

// ServeHTTP validates the webhook signature, parses the event, and
// dispatches the pipeline use case in a goroutine (responds 202 immediately).
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := gogithub.ValidatePayload(r, h.webhookSecret)
	if err != nil {
		h.logger.Error("invalid webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := gogithub.ParseWebHook(gogithub.WebHookType(r), payload)
	if err != nil {
		h.logger.Error("failed to parse webhook", "error", err)
		http.Error(w, "failed to parse webhook", http.StatusBadRequest)
		return
	}

	var trigger domain.TriggerContext
	switch e := event.(type) {
	case *gogithub.PushEvent:
		trigger, err = triggerFromPush(e)
	case *gogithub.PullRequestEvent:
		trigger, err = triggerFromPullRequest(e)
	default:
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		// Event types we handle, but deliveries we deliberately skip
		// (branch deletions, ignored PR actions, tag pushes).
		h.logger.Debug("ignoring webhook delivery", "reason", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	h.logger.Info("processing trigger",
		"owner", trigger.Owner,
		"repo", trigger.Repo,
		"event", trigger.Event,
		"branch", trigger.Branch,
		"sha", trigger.CommitSHA,
	)

	// Dispatch asynchronously — GitHub has a 10s webhook timeout.
	// Embed the inbound request's span context as the remote parent so all
	// async spans share the same trace ID (single trace in Grafana/Jaeger).
	// Only the Go context is detached (avoiding cancellation); the trace continues.
	ctx := trace.ContextWithRemoteSpanContext(context.Background(),
		trace.SpanContextFromContext(r.Context()),
	)
	go func() {
		h.sem <- struct{}{}        // acquire worker slot
		defer func() { <-h.sem }() // release worker slot
		if _, err := h.useCase.Execute(ctx, trigger); err != nil {
			h.logger.Error("pipeline execution failed",
				"owner", trigger.Owner,
				"repo", trigger.Repo,
				"event", trigger.Event,
				"sha", trigger.CommitSHA,
				"error", err,
			)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

type skipError string

func (e skipError) Error() string { return string(e) }

func triggerFromPush(e *gogithub.PushEvent) (domain.TriggerContext, error) {
	if e.GetDeleted() {
		return domain.TriggerContext{}, skipError("branch deleted")
	}
	ref := e.GetRef()
	if !strings.HasPrefix(ref, "refs/heads/") {
		return domain.TriggerContext{}, skipError("not a branch push: " + ref)
	}
	return domain.TriggerContext{
		Owner:     e.GetRepo().GetOwner().GetLogin(),
		Repo:      e.GetRepo().GetName(),
		Event:     domain.EventPush,
		Branch:    strings.TrimPrefix(ref, "refs/heads/"),
		CommitSHA: e.GetAfter(),
		BeforeSHA: e.GetBefore(),
	}, nil
}

func triggerFromPullRequest(e *gogithub.PullRequestEvent) (domain.TriggerContext, error) {
	action := e.GetAction()
	if action != "opened" && action != "synchronize" && action != "reopened" {
		return domain.TriggerContext{}, skipError("pull request action " + action)
	}
	return domain.TriggerContext{
		Owner:     e.GetRepo().GetOwner().GetLogin(),
		Repo:      e.GetRepo().GetName(),
		Event:     domain.EventPullRequest,
		Branch:    e.GetPullRequest().GetHead().GetRef(),
		CommitSHA: e.GetPullRequest().GetHead().GetSHA(),
		PRNumber:  e.GetNumber(),
	}, nil
}
