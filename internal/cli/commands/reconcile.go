package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccollicutt/waitlens/pkg/config"
	"github.com/ccollicutt/waitlens/pkg/output"
	"github.com/ccollicutt/waitlens/pkg/reasons"
	"github.com/ccollicutt/waitlens/pkg/reconcile"
)

// ReconcileOptions holds command-line options for the reconcile command.
type ReconcileOptions struct {
	Format     string
	Out        string
	Workers    int
	NoProgress bool
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand() *cobra.Command {
	opts := &ReconcileOptions{}

	cmd := &cobra.Command{
		Use:   "reconcile <config-file>",
		Short: "Fill wt_simple in a reasons report from the event log",
		Long: `Resolve every reasons report row to its source and destination occurrences
in the event log and write the report back with the wt_simple column set to
destination start minus source end.

A row that cannot be resolved to exactly one source and one destination, or
whose destination starts before its source ends, fails the whole run and
nothing is written.

Example:
  waitlens reconcile config.yaml > reconciled.csv
  waitlens reconcile --format parquet --out reasons.parquet config.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "csv", "Output format (csv|parquet)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "Output file (default stdout; required for parquet)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Concurrent workers (0 uses the config value, then all CPUs)")
	cmd.Flags().BoolVar(&opts.NoProgress, "no-progress", false, "Do not draw a progress bar on stderr")

	return cmd
}

func runReconcile(cmd *cobra.Command, args []string, opts *ReconcileOptions) error {
	ctx := commandContext(cmd.Context())
	logger := Logger(ctx)

	var write func(io.Writer, *reasons.Report) error
	switch opts.Format {
	case "csv":
		write = reasons.WriteCSV
	case "parquet":
		if opts.Out == "" {
			return fmt.Errorf("parquet output requires --out")
		}
		write = output.WriteParquet
	default:
		return fmt.Errorf("unknown format %q (use csv or parquet)", opts.Format)
	}

	cfg, err := config.Load(ctx, args[0])
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Reasons == nil {
		return fmt.Errorf("config has no reasons section")
	}

	in, err := loadInputs(cfg, logger)
	if err != nil {
		return err
	}

	workers := opts.Workers
	if workers == 0 {
		workers = cfg.Analysis.Workers
	}
	recOpts := []reconcile.Option{reconcile.WithWorkers(workers), reconcile.WithLogger(logger)}

	var bar *progressbar.ProgressBar
	if !opts.NoProgress && in.reasons.Len() > 0 {
		bar = newProgressBar(cmd.ErrOrStderr(), in.reasons.Len(), "reconciling")
		recOpts = append(recOpts, reconcile.WithProgress(func(done, _ int) {
			_ = bar.Set(done)
		}))
	}

	start := time.Now()
	reconciled, err := reconcile.New(in.log, recOpts...).ReconcileReport(ctx, in.reasons)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	logger.Info("reasons report reconciled",
		zap.Int("rows", reconciled.Len()),
		zap.Duration("elapsed", time.Since(start)))

	if opts.Out == "" {
		return write(cmd.OutOrStdout(), reconciled)
	}

	f, err := os.Create(opts.Out) // #nosec G304 -- user-provided output path is expected
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := write(f, reconciled); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", opts.Out, err)
	}
	// The parquet writer closes its sink.
	if err := f.Close(); err != nil && opts.Format != "parquet" {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Reconciled %d rows into %s\n", reconciled.Len(), opts.Out)
	return nil
}

func newProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
