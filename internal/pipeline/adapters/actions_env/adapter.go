// Package actionsenv builds a trigger context from the environment GitHub
// Actions provides to a job.
package actionsenv

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
)

// eventPayload is the subset of the webhook payload Actions writes to
// GITHUB_EVENT_PATH that the pipeline needs.
type eventPayload struct {
	Before      string `json:"before"`
	Number      int    `json:"number"`
	PullRequest struct {
		Head struct {
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
	Inputs struct {
		BuildAll string `json:"build_all"`
	} `json:"inputs"`
}

// FromEnviron builds a TriggerContext from the Actions environment. lookup is
// os.Getenv in production and injected in tests.
func FromEnviron(lookup func(string) string) (domain.TriggerContext, error) {
	event, err := domain.ParseEvent(lookup("GITHUB_EVENT_NAME"))
	if err != nil {
		return domain.TriggerContext{}, fmt.Errorf("reading GITHUB_EVENT_NAME: %w", err)
	}

	owner, repo, err := splitRepository(lookup("GITHUB_REPOSITORY"))
	if err != nil {
		return domain.TriggerContext{}, err
	}

	payload, err := readPayload(lookup("GITHUB_EVENT_PATH"))
	if err != nil {
		return domain.TriggerContext{}, err
	}

	trigger := domain.TriggerContext{
		Owner:     owner,
		Repo:      repo,
		Event:     event,
		CommitSHA: lookup("GITHUB_SHA"),
	}

	switch event {
	case domain.EventPullRequest:
		trigger.Branch = lookup("GITHUB_BASE_REF")
		trigger.PRNumber = payload.Number
		if trigger.PRNumber == 0 {
			trigger.PRNumber = prNumberFromRef(lookup("GITHUB_REF_NAME"))
		}
		// GITHUB_SHA is the synthetic merge commit on pull_request events;
		// the head sha is what the build will be tagged with.
		if payload.PullRequest.Head.SHA != "" {
			trigger.CommitSHA = payload.PullRequest.Head.SHA
		}
	case domain.EventManual:
		trigger.Branch = lookup("GITHUB_REF_NAME")
		trigger.BuildAll = strings.EqualFold(payload.Inputs.BuildAll, "true")
	default:
		trigger.Branch = lookup("GITHUB_REF_NAME")
		trigger.BeforeSHA = payload.Before
	}

	if err := trigger.Validate(); err != nil {
		return domain.TriggerContext{}, fmt.Errorf("incomplete actions environment: %w", err)
	}
	return trigger, nil
}

func splitRepository(full string) (owner, repo string, err error) {
	parts := strings.SplitN(full, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GITHUB_REPOSITORY %q", full)
	}
	return parts[0], parts[1], nil
}

// readPayload parses the event payload file. A missing path is tolerated;
// not every field is required for every event.
func readPayload(path string) (eventPayload, error) {
	var payload eventPayload
	if path == "" {
		return payload, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return payload, fmt.Errorf("reading event payload: %w", err)
	}
	if err := json.Unmarshal(content, &payload); err != nil {
		return payload, fmt.Errorf("parsing event payload: %w", err)
	}
	return payload, nil
}

// prNumberFromRef extracts the PR number from refs like "42/merge".
func prNumberFromRef(refName string) int {
	head, _, ok := strings.Cut(refName, "/")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return n
}
