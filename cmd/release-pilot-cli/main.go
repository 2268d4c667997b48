// Package main provides the release-pilot CLI for running the pipeline
// decision inside a CI job, driven by the GitHub Actions environment.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	actionsenv "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/actions_env"
	gitdeploy "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/git_deploy"
	gitfiles "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/git_files"
	helmvalues "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/helm_values"
	linediff "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/line_diff"
	fscfg "github.com/nathantilsley/release-pilot/internal/pipeline/adapters/repo_cfg/filesystem"
	"github.com/nathantilsley/release-pilot/internal/pipeline/app"
	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
	"github.com/nathantilsley/release-pilot/internal/platform/gitrepo"
	"github.com/nathantilsley/release-pilot/internal/platform/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "release-pilot-cli",
		Short:         "Compute affected services, image tags, and chart updates for the current CI run",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	return root
}

type runOptions struct {
	registry   string
	workdir    string
	deployPath string
	apply      bool
	logLevel   string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline decision for the trigger described by the GitHub Actions environment",
		Long: `Reads the trigger from GITHUB_EVENT_NAME, GITHUB_SHA, GITHUB_REF_NAME and the
event payload, detects affected services from the changed files, derives the
image tags the build must carry, and rewrites the chart values files.

Without --apply nothing is written; the computed updates and diffs are
printed. With --apply the rewrite is committed and pushed, but only for a
trunk push.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.registry, "registry", "", "image registry prefix (defaults to REGISTRY_URL)")
	cmd.Flags().StringVar(&opts.workdir, "workdir", ".", "source repo checkout to inspect")
	cmd.Flags().StringVar(&opts.deployPath, "deploy-path", "", "deploy repo checkout holding chart values (defaults to the workdir)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "write, commit, and push chart updates (trunk pushes only)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runPipeline(ctx context.Context, opts *runOptions) error {
	// Local overrides for development; absent in CI
	_ = godotenv.Load()

	log := logger.New(opts.logLevel)

	if opts.registry == "" {
		opts.registry = os.Getenv("REGISTRY_URL")
	}
	if opts.registry == "" {
		return fmt.Errorf("image registry required: set --registry or REGISTRY_URL")
	}
	if opts.deployPath == "" {
		opts.deployPath = opts.workdir
	}

	trigger, err := actionsenv.FromEnviron(os.Getenv)
	if err != nil {
		return fmt.Errorf("reading trigger from environment: %w", err)
	}

	fileChanges, err := gitfiles.New(opts.workdir)
	if err != nil {
		return fmt.Errorf("creating git file lister: %w", err)
	}

	repoCfg := fscfg.New(opts.workdir, opts.registry)
	deployAdapter := gitdeploy.NewAdapter(gitrepo.Open(opts.deployPath, log), log)

	service := app.NewPipelineService(
		fileChanges,
		repoCfg,
		helmvalues.New(),
		deployAdapter,
		linediff.New(),
		nil, // check runs and comments are the webhook server's job
		!opts.apply,
		log,
		noopmetric.NewMeterProvider().Meter("release-pilot-cli"),
		nooptrace.NewTracerProvider().Tracer("release-pilot-cli"),
	)

	results, err := service.Execute(ctx, trigger)
	if err != nil {
		return err
	}

	printResults(os.Stdout, trigger, results)

	if err := writeActionsOutput(results, trigger); err != nil {
		return fmt.Errorf("writing actions output: %w", err)
	}

	if domain.HasFailures(results) {
		return fmt.Errorf("pipeline completed with failures")
	}
	return nil
}

func printResults(w *os.File, trigger domain.TriggerContext, results []domain.UpdateResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No services affected.")
		return
	}

	fmt.Fprintf(w, "Trigger: %s on %s (%s)\n", trigger.Event, trigger.Branch, trigger.CommitSHA)
	if tags, err := trigger.Tags(); err == nil {
		fmt.Fprintf(w, "Tags: %s\n\n", strings.Join(tags, ", "))
	}

	for _, r := range results {
		fmt.Fprintf(w, "%s: %s\n", r.Service, r.Summary)
		if r.ImageRef != "" {
			fmt.Fprintf(w, "  image: %s\n", r.ImageRef)
		}
		if r.Diff != "" {
			fmt.Fprintf(w, "%s\n", indent(r.Diff, "  "))
		}
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

// writeActionsOutput appends the build plan to $GITHUB_OUTPUT so later
// workflow steps can fan out builds per service.
func writeActionsOutput(results []domain.UpdateResult, trigger domain.TriggerContext) error {
	outputPath := os.Getenv("GITHUB_OUTPUT")
	if outputPath == "" {
		return nil
	}

	services := make([]string, 0, len(results))
	for _, r := range results {
		if r.Status != domain.StatusError {
			services = append(services, r.Service)
		}
	}

	servicesJSON, err := json.Marshal(services)
	if err != nil {
		return fmt.Errorf("marshaling services: %w", err)
	}
	tags, err := trigger.Tags()
	if err != nil {
		return fmt.Errorf("generating tags: %w", err)
	}

	f, err := os.OpenFile(outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", outputPath, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "services=%s\n", servicesJSON)
	fmt.Fprintf(f, "tags=%s\n", strings.Join(tags, ","))
	fmt.Fprintf(f, "primary_tag=%s\n", tags[0])
	return nil
}
