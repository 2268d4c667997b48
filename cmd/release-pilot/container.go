// Package main provides the release-pilot webhook server, which turns source
// repo pushes and pull requests into image tags and chart values updates.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	gogithub "github.com/google/go-github/v68/github"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	gitdeploy "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/git_deploy"
	ghfiles "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/gh_files"
	githubin "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/github_in"
	githubout "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/github_out"
	helmvalues "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/helm_values"
	linediff "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/line_diff"
	githubcfg "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/repo_cfg/github"
	"github.com/nathantilsley/release-pilot/internal/pipeline/app"
	"github.com/nathantilsley/release-pilot/internal/pipeline/ports"
	"github.com/nathantilsley/release-pilot/internal/platform/config"
	ghclient "github.com/nathantilsley/release-pilot/internal/platform/github"
	"github.com/nathantilsley/release-pilot/internal/platform/gitrepo"
	"github.com/nathantilsley/release-pilot/internal/platform/telemetry"
)

const appName = "release-pilot"

// Container holds all application dependencies.
type Container struct {
	Config          config.Config
	Logger          *slog.Logger
	GitHubClient    *gogithub.Client
	DeployRepo      *gitrepo.GitRepo
	PipelineService ports.PipelineUseCase
	WebhookHandler  *githubin.WebhookHandler
}

// NewContainer builds and wires all dependencies, including the deploy repo
// clone (blocks until the initial clone completes).
func NewContainer(ctx context.Context, cfg config.Config, log *slog.Logger, tel *telemetry.Telemetry) (*Container, error) {
	// Platform dependencies
	githubClient, err := ghclient.NewClient(cfg.GitHubAppID, cfg.GitHubInstallationID, cfg.GitHubPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("creating github client: %w", err)
	}

	deployRepo := gitrepo.New(cfg.DeployRepo, cfg.DeployLocalPath, cfg.DeploySyncInterval, log)
	if err := deployRepo.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting deploy repo: %w", err)
	}

	// Adapters
	repoCfg := githubcfg.New(githubClient, cfg.RegistryURL)
	fileChanges := ghfiles.New(githubClient, log)
	rewriter := helmvalues.New()
	deployAdapter := gitdeploy.NewAdapter(deployRepo, log)
	differ := linediff.New()
	reporter := githubout.New(githubClient, appName, "", log)

	// Domain service
	pipelineService := app.NewPipelineService(
		fileChanges,
		repoCfg,
		rewriter,
		deployAdapter,
		differ,
		reporter,
		cfg.DryRun,
		log,
		tel.Meter,
		tel.Tracer,
	)

	// Webhook handler, with server-side spans for each delivery
	webhookHandler := githubin.NewWebhookHandler(pipelineService, cfg.WebhookSecret, log)

	return &Container{
		Config:          cfg,
		Logger:          log,
		GitHubClient:    githubClient,
		DeployRepo:      deployRepo,
		PipelineService: pipelineService,
		WebhookHandler:  webhookHandler,
	}, nil
}

// Close stops background workers owned by the container.
func (c *Container) Close() {
	c.DeployRepo.Stop()
}

// InstrumentedWebhookHandler wraps the webhook handler with otelhttp so each
// delivery gets a server span that the async pipeline spans parent onto.
func (c *Container) InstrumentedWebhookHandler() http.Handler {
	return otelhttp.NewHandler(c.WebhookHandler, "webhook")
}
