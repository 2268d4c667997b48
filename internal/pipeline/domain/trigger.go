package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// LatestTag is always produced alongside the context-specific tag so the
// registry keeps a moving pointer at the most recent build.
const LatestTag = "latest"

// Event identifies how a pipeline run was triggered.
type Event int

const (
	EventPush        Event = iota // branch push
	EventPullRequest              // pull request opened/updated
	EventManual                   // manual dispatch
)

// String returns the string representation of the Event.
// Implements the Stringer interface.
func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[e]
}

var eventNames = [...]string{
	EventPush:        "push",
	EventPullRequest: "pull_request",
	EventManual:      "manual",
}

// ParseEvent maps a GitHub event name to an Event.
// "workflow_dispatch" is the Actions name for a manual run.
func ParseEvent(name string) (Event, error) {
	switch name {
	case "push":
		return EventPush, nil
	case "pull_request", "pull_request_target":
		return EventPullRequest, nil
	case "manual", "workflow_dispatch":
		return EventManual, nil
	default:
		return 0, fmt.Errorf("unsupported event %q", name)
	}
}

// TriggerContext carries the version-control context of a single pipeline run.
type TriggerContext struct {
	Owner     string
	Repo      string
	Event     Event
	Branch    string // branch pushed to, or the PR base branch
	CommitSHA string // head commit of the trigger
	BeforeSHA string // previous head for push events, used for comparisons
	PRNumber  int    // zero unless Event == EventPullRequest
	BuildAll  bool   // manual dispatch flag forcing every known service
}

// Validate checks that the context carries the fields its event requires.
func (t TriggerContext) Validate() error {
	if t.CommitSHA == "" {
		return errors.New("trigger context missing commit sha")
	}
	if t.Event == EventPullRequest && t.PRNumber <= 0 {
		return errors.New("pull request trigger missing PR number")
	}
	return nil
}

// Tags derives the image tags for this run. A push (or manual run) tags the
// image with the commit sha; a pull request tags it pr-<number>-<sha>. Both
// additionally carry the "latest" tag.
func (t TriggerContext) Tags() ([]string, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	var primary string
	switch t.Event {
	case EventPush, EventManual:
		primary = t.CommitSHA
	case EventPullRequest:
		primary = "pr-" + strconv.Itoa(t.PRNumber) + "-" + t.CommitSHA
	default:
		return nil, fmt.Errorf("no tag rule for event %q", t.Event)
	}

	return []string{primary, LatestTag}, nil
}

// PrimaryTag returns the context-specific tag (the first of Tags).
func (t TriggerContext) PrimaryTag() (string, error) {
	tags, err := t.Tags()
	if err != nil {
		return "", err
	}
	return tags[0], nil
}

// ShouldPersist reports whether chart updates from this run may be committed
// back to version control. Only trunk builds persist; pull requests always
// report a diff without mutating anything.
func (t TriggerContext) ShouldPersist(trunkBranch string) bool {
	switch t.Event {
	case EventPush, EventManual:
		return t.Branch == trunkBranch
	default:
		return false
	}
}

// ImageRef builds the full image reference for a service at a tag.
// Example: "123456789.dkr.ecr.eu-west-1.amazonaws.com/ui:abc123ef"
func ImageRef(registry, service, tag string) string {
	return registry + "/" + service + ":" + tag
}
