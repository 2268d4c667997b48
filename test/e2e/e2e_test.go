// Package e2e exercises the whole webhook path: a signed GitHub delivery in,
// chart values committed to a deploy repo and results reported back out.
// GitHub's REST API is served by a local fake; git operations are real.
package e2e

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gogithub "github.com/google/go-github/v68/github"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	gitdeploy "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/git_deploy"
	ghfiles "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/gh_files"
	githubin "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/github_in"
	githubout "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/github_out"
	helmvalues "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/helm_values"
	linediff "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/line_diff"
	githubcfg "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/repo_cfg/github"
	"github.com/nathantilsley/release-pilot/internal/pipeline/app"
	"github.com/nathantilsley/release-pilot/internal/platform/gitrepo"
	"github.com/nathantilsley/release-pilot/internal/platform/logger"
)

const (
	webhookSecret = "e2e-secret"
	headSHA       = "deadbee12deadbee12deadbee12deadbee12dead"
	beforeSHA     = "c0ffee34c0ffee34c0ffee34c0ffee34c0ffee34"
)

const manifest = `registry: registry.example.com/retail
trunkBranch: main
chartRoot: helm
services:
  - name: ui
    paths:
      - src/ui/**
  - name: catalog
    paths:
      - src/catalog/**
`

const uiValues = `image:
  repository: registry.example.com/retail/ui
  tag: "0000000"
`

// fakeGitHub serves the subset of the GitHub REST API the pipeline touches
// and records the check runs and comments it receives.
type fakeGitHub struct {
	mu           sync.Mutex
	changedFiles []string
	checkRuns    []map[string]any
	comments     []string
	srv          *httptest.Server
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /repos/my-org/retail/contents/.release-pilot.yaml", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"type":     "file",
			"name":     ".release-pilot.yaml",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte(manifest)),
		})
	})

	mux.HandleFunc("GET /repos/my-org/retail/compare/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"files": f.fileList()})
	})

	mux.HandleFunc("GET /repos/my-org/retail/pulls/42/files", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, f.fileList())
	})

	mux.HandleFunc("POST /repos/my-org/retail/check-runs", func(w http.ResponseWriter, r *http.Request) {
		f.record(&f.checkRuns, r)
		writeJSON(w, map[string]any{"id": 1})
	})

	mux.HandleFunc("PATCH /repos/my-org/retail/check-runs/1", func(w http.ResponseWriter, r *http.Request) {
		f.record(&f.checkRuns, r)
		writeJSON(w, map[string]any{"id": 1})
	})

	mux.HandleFunc("GET /repos/my-org/retail/issues/42/comments", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []any{})
	})

	mux.HandleFunc("POST /repos/my-org/retail/issues/42/comments", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Body string `json:"body"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.comments = append(f.comments, body.Body)
		f.mu.Unlock()
		writeJSON(w, map[string]any{"id": 100})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGitHub) client(t *testing.T) *gogithub.Client {
	t.Helper()
	c := gogithub.NewClient(nil)
	base, err := url.Parse(f.srv.URL + "/")
	if err != nil {
		t.Fatalf("parsing fake github url: %v", err)
	}
	c.BaseURL = base
	return c
}

func (f *fakeGitHub) fileList() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	files := make([]map[string]any, 0, len(f.changedFiles))
	for _, name := range f.changedFiles {
		files = append(files, map[string]any{"filename": name})
	}
	return files
}

func (f *fakeGitHub) record(dst *[]map[string]any, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	*dst = append(*dst, body)
	f.mu.Unlock()
}

func (f *fakeGitHub) lastCheckRun() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.checkRuns) == 0 {
		return nil
	}
	return f.checkRuns[len(f.checkRuns)-1]
}

func (f *fakeGitHub) commentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.comments)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// setupPipelineServer wires the real adapter stack over the fake GitHub API
// and a local deploy repo clone, and exposes the webhook endpoint.
func setupPipelineServer(t *testing.T, gh *fakeGitHub, deployClone string) *httptest.Server {
	t.Helper()

	log := logger.New("error")
	client := gh.client(t)

	service := app.NewPipelineService(
		ghfiles.New(client, log),
		githubcfg.New(client, "registry.example.com/retail"),
		helmvalues.New(),
		gitdeploy.NewAdapter(gitrepo.Open(deployClone, log), log),
		linediff.New(),
		githubout.New(client, "release-pilot", "", log),
		false,
		log,
		noopmetric.NewMeterProvider().Meter("e2e"),
		nooptrace.NewTracerProvider().Tracer("e2e"),
	)

	handler := githubin.NewWebhookHandler(service, webhookSecret, log)

	mux := http.NewServeMux()
	mux.Handle("POST /webhook", handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupDeployRepo(t *testing.T) (upstream, clone string) {
	t.Helper()
	upstream = t.TempDir()
	runGit(t, upstream, "init")
	runGit(t, upstream, "config", "user.email", "test@example.com")
	runGit(t, upstream, "config", "user.name", "Test")
	runGit(t, upstream, "config", "receive.denyCurrentBranch", "updateInstead")

	valuesPath := filepath.Join(upstream, "helm", "ui", "values.yaml")
	if err := os.MkdirAll(filepath.Dir(valuesPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(valuesPath, []byte(uiValues), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	runGit(t, upstream, "add", ".")
	runGit(t, upstream, "commit", "-m", "seed")

	clone = filepath.Join(t.TempDir(), "deploy")
	runGit(t, "", "clone", upstream, clone)
	return upstream, clone
}

func sendWebhook(t *testing.T, serverURL, event string, payload map[string]any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(http.MethodPost, serverURL+"/webhook", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-Hub-Signature-256", sig)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("sending webhook: %v", err)
	}
	defer resp.Body.Close()
	return resp
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting: %s", msg)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestE2E_TrunkPushCommitsChartUpdate(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skipf("git not on PATH: %v", err)
	}

	gh := newFakeGitHub(t)
	gh.changedFiles = []string{"src/ui/main.go"}
	upstream, clone := setupDeployRepo(t)
	srv := setupPipelineServer(t, gh, clone)

	resp := sendWebhook(t, srv.URL, "push", map[string]any{
		"ref":    "refs/heads/main",
		"before": beforeSHA,
		"after":  headSHA,
		"repository": map[string]any{
			"name":  "retail",
			"owner": map[string]any{"login": "my-org"},
		},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("webhook status = %d, want 202", resp.StatusCode)
	}

	waitFor(t, func() bool {
		return strings.Contains(gitLog(t, upstream), "[skip ci]")
	}, "deploy commit should land upstream")

	content, err := os.ReadFile(filepath.Join(upstream, "helm", "ui", "values.yaml"))
	if err != nil {
		t.Fatalf("reading upstream values: %v", err)
	}
	if !strings.Contains(string(content), fmt.Sprintf("tag: %q", headSHA)) {
		t.Errorf("upstream values = %s, want head sha tag", content)
	}

	waitFor(t, func() bool {
		cr := gh.lastCheckRun()
		return cr != nil && cr["status"] == "completed"
	}, "check run should complete")

	if cr := gh.lastCheckRun(); cr["conclusion"] != "success" {
		t.Errorf("check run conclusion = %v, want success", cr["conclusion"])
	}
	if gh.commentCount() != 0 {
		t.Errorf("push run posted %d comments, want none", gh.commentCount())
	}
}

func TestE2E_PullRequestReportsWithoutCommit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skipf("git not on PATH: %v", err)
	}

	gh := newFakeGitHub(t)
	gh.changedFiles = []string{"src/ui/main.go", "src/catalog/store.go"}
	upstream, clone := setupDeployRepo(t)
	srv := setupPipelineServer(t, gh, clone)

	resp := sendWebhook(t, srv.URL, "pull_request", map[string]any{
		"action": "synchronize",
		"number": 42,
		"pull_request": map[string]any{
			"head": map[string]any{"ref": "feature", "sha": headSHA},
			"base": map[string]any{"ref": "main"},
		},
		"repository": map[string]any{
			"name":  "retail",
			"owner": map[string]any{"login": "my-org"},
		},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("webhook status = %d, want 202", resp.StatusCode)
	}

	waitFor(t, func() bool { return gh.commentCount() > 0 }, "PR comment should be posted")

	gh.mu.Lock()
	f := gh.comments[0]
	gh.mu.Unlock()
	prTag := fmt.Sprintf("pr-42-%s", headSHA)
	if !strings.Contains(f, prTag) {
		t.Errorf("comment missing PR tag %s:\n%s", prTag, f)
	}
	// catalog has no values file; its failure must not block ui
	if !strings.Contains(f, "`ui`") {
		t.Errorf("comment missing ui row:\n%s", f)
	}

	if log := gitLog(t, upstream); strings.Contains(log, "[skip ci]") {
		t.Errorf("PR event must not commit; upstream log:\n%s", log)
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\noutput: %s", args, err, out)
	}
}

func gitLog(t *testing.T, dir string) string {
	t.Helper()
	cmd := exec.Command("git", "log", "--format=%s")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git log failed: %v\noutput: %s", err, out)
	}
	return string(out)
}
