package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccollicutt/waitlens/pkg/analyzer"
	"github.com/ccollicutt/waitlens/pkg/config"
	"github.com/ccollicutt/waitlens/pkg/output"
	"github.com/ccollicutt/waitlens/pkg/watch"
	"github.com/ccollicutt/waitlens/pkg/webhook"
)

// AnalyzeOptions holds command-line options for the analyze command.
type AnalyzeOptions struct {
	Output  string
	OutFile string
	Verbose bool
	Quiet   bool
	Watch   bool

	// Overrides for the analysis section of the config
	Metric      string
	Notion      string
	Transitions []string
	GlobalScale bool
	Workers     int
	MaxWait     time.Duration

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <config-file>",
		Short: "Aggregate waiting times per transition",
		Long: `Analyze an event log, and optionally a waiting-time reasons report, according
to the configuration file.

Reports, per directly-follows transition:
  - Naive waiting times (destination start minus source end)
  - The selected metric over the selected waiting-time notion
  - Shading intensity against a per-series or global scale
  - Causal breakdown of the reasons report

Flags override the analysis section of the config file.

Exit codes:
  0 - No issues detected
  1 - Issues detected (max_wait exceeded, components out of balance)
  2 - Configuration or runtime error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json|xlsx)")
	cmd.Flags().StringVar(&opts.OutFile, "out-file", "", "Write the report to a file instead of stdout")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Include naive statistics and reasons breakdowns")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run the analysis whenever an input file changes")

	cmd.Flags().StringVar(&opts.Metric, "metric", "", "Metric (min|max|stdev|median|mean|sum)")
	cmd.Flags().StringVar(&opts.Notion, "notion", "", "Reasons column to aggregate (wt_total|wt_simple|wt_contention|...)")
	cmd.Flags().StringArrayVar(&opts.Transitions, "transition", nil, `Analyze only "source -> destination" (can be repeated)`)
	cmd.Flags().BoolVar(&opts.GlobalScale, "global-scale", false, "Shade against the range of the whole reasons report")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Concurrent reconciliation workers (0 uses all CPUs)")
	cmd.Flags().DurationVar(&opts.MaxWait, "max-wait", 0, "Flag transitions whose metric exceeds this duration")

	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_issues", "When to fire webhook (on_issues|always|never)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *AnalyzeOptions) error {
	configPath := args[0]
	ctx := commandContext(cmd.Context())
	logger := Logger(ctx)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := applyAnalysisOverrides(cmd, cfg, opts); err != nil {
		return err
	}

	formatter, err := output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
	if err != nil {
		return err
	}
	if formatter.Name() == "xlsx" && opts.OutFile == "" {
		return fmt.Errorf("xlsx output requires --out-file")
	}

	in, report, err := analyzeOnce(ctx, cmd, configPath, cfg, opts, formatter, logger)
	if err != nil {
		return err
	}

	if !opts.Watch {
		if report.HasIssues() {
			return ErrIssuesFound
		}
		return nil
	}

	watcher, err := watch.New(in.watchPaths(cfg), watch.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("watching inputs: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %d file(s) for changes (Ctrl-C to stop)\n", len(watcher.Files()))

	err = watcher.Run(ctx, func(ctx context.Context, _ []string) error {
		_, _, err := analyzeOnce(ctx, cmd, configPath, cfg, opts, formatter, logger)
		return err
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// applyAnalysisOverrides copies explicitly set flags into cfg and validates
// the result again.
func applyAnalysisOverrides(cmd *cobra.Command, cfg *config.Config, opts *AnalyzeOptions) error {
	flags := cmd.Flags()
	changed := false

	if flags.Changed("metric") {
		cfg.Analysis.Metric = opts.Metric
		changed = true
	}
	if flags.Changed("notion") {
		cfg.Analysis.Notion = opts.Notion
		changed = true
	}
	if flags.Changed("transition") {
		cfg.Analysis.Transitions = opts.Transitions
		changed = true
	}
	if flags.Changed("global-scale") {
		cfg.Analysis.GlobalScale = opts.GlobalScale
		changed = true
	}
	if flags.Changed("workers") {
		cfg.Analysis.Workers = opts.Workers
		changed = true
	}
	if flags.Changed("max-wait") {
		cfg.Analysis.MaxWait = opts.MaxWait
		changed = true
	}

	if !changed {
		return nil
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// analyzeOnce loads the inputs, analyzes them, writes the report and sends
// webhooks.
func analyzeOnce(ctx context.Context, cmd *cobra.Command, configPath string, cfg *config.Config,
	opts *AnalyzeOptions, formatter output.Formatter, logger *zap.Logger) (*inputs, *output.Report, error) {
	in, err := loadInputs(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	a, err := analyzer.NewAnalyzer(
		analyzer.WithMetric(cfg.Analysis.MetricValue()),
		analyzer.WithColumn(cfg.Analysis.NotionValue()),
		analyzer.WithTransitionFilter(cfg.Analysis.TransitionKeys()),
		analyzer.WithGlobalScale(cfg.Analysis.GlobalScale),
		analyzer.WithWorkers(cfg.Analysis.Workers),
		analyzer.WithMaxWait(cfg.Analysis.MaxWait),
		analyzer.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating analyzer: %w", err)
	}

	result, err := a.Analyze(ctx, in.log, in.reasons)
	if err != nil {
		return nil, nil, fmt.Errorf("analysis failed: %w", err)
	}
	result.Metadata.Sources = in.files
	if cfg.Reasons != nil {
		result.Metadata.ReasonsFile = cfg.Reasons.Path
	}

	report := output.NewReport(result, configPath)
	if err := writeReport(ctx, cmd.OutOrStdout(), opts.OutFile, formatter, report); err != nil {
		return nil, nil, err
	}

	client := webhook.NewClient(webhook.WithLogger(logger))
	for _, res := range client.Notify(ctx, collectWebhooks(cfg, opts), report) {
		if res.Response.Success() {
			fmt.Fprintf(cmd.ErrOrStderr(), "Webhook %s: sent (%d, %s)\n", res.Name, res.Response.StatusCode, res.Response.Duration)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "Webhook %s: failed (%v)\n", res.Name, res.Response.Error)
		}
	}

	return in, report, nil
}

func writeReport(ctx context.Context, stdout io.Writer, path string, formatter output.Formatter, report *output.Report) error {
	if path == "" {
		if err := formatter.Format(ctx, report, stdout); err != nil {
			return fmt.Errorf("formatting output: %w", err)
		}
		return nil
	}

	f, err := os.Create(path) // #nosec G304 -- user-provided output path is expected
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := formatter.Format(ctx, report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("formatting output: %w", err)
	}
	return f.Close()
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *AnalyzeOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnIssues
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}
