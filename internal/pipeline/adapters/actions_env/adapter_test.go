package actionsenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
)

func fakeEnv(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func writePayload(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFromEnviron_Push(t *testing.T) {
	payload := writePayload(t, `{"before": "0000aaaa"}`)

	trigger, err := FromEnviron(fakeEnv(map[string]string{
		"GITHUB_EVENT_NAME": "push",
		"GITHUB_REPOSITORY": "acme/retail-store",
		"GITHUB_REF_NAME":   "main",
		"GITHUB_SHA":        "abc123ef",
		"GITHUB_EVENT_PATH": payload,
	}))
	require.NoError(t, err)

	assert.Equal(t, domain.EventPush, trigger.Event)
	assert.Equal(t, "acme", trigger.Owner)
	assert.Equal(t, "retail-store", trigger.Repo)
	assert.Equal(t, "main", trigger.Branch)
	assert.Equal(t, "abc123ef", trigger.CommitSHA)
	assert.Equal(t, "0000aaaa", trigger.BeforeSHA)
}

func TestFromEnviron_PullRequest(t *testing.T) {
	payload := writePayload(t, `{"number": 42, "pull_request": {"head": {"sha": "headsha1"}}}`)

	trigger, err := FromEnviron(fakeEnv(map[string]string{
		"GITHUB_EVENT_NAME": "pull_request",
		"GITHUB_REPOSITORY": "acme/retail-store",
		"GITHUB_REF_NAME":   "42/merge",
		"GITHUB_BASE_REF":   "main",
		"GITHUB_SHA":        "mergesha",
		"GITHUB_EVENT_PATH": payload,
	}))
	require.NoError(t, err)

	assert.Equal(t, domain.EventPullRequest, trigger.Event)
	assert.Equal(t, 42, trigger.PRNumber)
	assert.Equal(t, "main", trigger.Branch)
	assert.Equal(t, "headsha1", trigger.CommitSHA, "must use the head sha, not the merge commit")

	tags, err := trigger.Tags()
	require.NoError(t, err)
	assert.Equal(t, "pr-42-headsha1", tags[0])
}

func TestFromEnviron_PullRequestNumberFromRef(t *testing.T) {
	payload := writePayload(t, `{"pull_request": {"head": {"sha": "headsha1"}}}`)

	trigger, err := FromEnviron(fakeEnv(map[string]string{
		"GITHUB_EVENT_NAME": "pull_request",
		"GITHUB_REPOSITORY": "acme/retail-store",
		"GITHUB_REF_NAME":   "17/merge",
		"GITHUB_BASE_REF":   "main",
		"GITHUB_SHA":        "mergesha",
		"GITHUB_EVENT_PATH": payload,
	}))
	require.NoError(t, err)
	assert.Equal(t, 17, trigger.PRNumber)
}

func TestFromEnviron_ManualDispatchBuildAll(t *testing.T) {
	payload := writePayload(t, `{"inputs": {"build_all": "true"}}`)

	trigger, err := FromEnviron(fakeEnv(map[string]string{
		"GITHUB_EVENT_NAME": "workflow_dispatch",
		"GITHUB_REPOSITORY": "acme/retail-store",
		"GITHUB_REF_NAME":   "main",
		"GITHUB_SHA":        "abc123",
		"GITHUB_EVENT_PATH": payload,
	}))
	require.NoError(t, err)

	assert.Equal(t, domain.EventManual, trigger.Event)
	assert.True(t, trigger.BuildAll)
}

func TestFromEnviron_Errors(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{
			name: "unsupported event",
			vars: map[string]string{
				"GITHUB_EVENT_NAME": "release",
				"GITHUB_REPOSITORY": "acme/retail-store",
				"GITHUB_SHA":        "abc",
			},
		},
		{
			name: "malformed repository",
			vars: map[string]string{
				"GITHUB_EVENT_NAME": "push",
				"GITHUB_REPOSITORY": "just-a-name",
				"GITHUB_SHA":        "abc",
			},
		},
		{
			name: "missing sha",
			vars: map[string]string{
				"GITHUB_EVENT_NAME": "push",
				"GITHUB_REPOSITORY": "acme/retail-store",
				"GITHUB_REF_NAME":   "main",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnviron(fakeEnv(tt.vars))
			assert.Error(t, err)
		})
	}
}
