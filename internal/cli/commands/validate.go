package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/waitlens/pkg/config"
	"github.com/ccollicutt/waitlens/pkg/parser"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a WaitLens configuration file without running analysis.

Checks:
  - YAML syntax
  - Required fields and column mapping
  - Metric, notion and transition selections
  - Webhook settings
  - Event log file existence (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := commandContext(cmd.Context())
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	a := cfg.Analysis
	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Event log sources: %d pattern(s)\n", len(cfg.EventLog.Sources))
	fmt.Fprintf(w, "  Metric:            %s\n", a.MetricValue())
	fmt.Fprintf(w, "  Notion:            %s\n", a.NotionValue())
	if cfg.Reasons != nil {
		fmt.Fprintf(w, "  Reasons report:    %s\n", cfg.Reasons.Path)
	}
	if a.MaxWait > 0 {
		fmt.Fprintf(w, "  Max wait:          %s\n", a.MaxWait)
	}
	if keys := a.TransitionKeys(); len(keys) > 0 {
		fmt.Fprintf(w, "\nTransitions:\n")
		for i, key := range keys {
			fmt.Fprintf(w, "  %d. %s\n", i+1, key)
		}
	}

	files, err := parser.ExpandGlobs(cfg.EventLog.Sources)
	if err != nil {
		fmt.Fprintf(w, "\nWarning: Error expanding event log patterns: %v\n", err)
		return nil
	}

	// Unmatched patterns come back verbatim.
	var existing, missing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		} else {
			missing = append(missing, f)
		}
	}

	if len(existing) == 0 {
		fmt.Fprintf(w, "\nWarning: No files match event log patterns\n")
		return nil
	}
	fmt.Fprintf(w, "\nEvent log files matched: %d\n", len(existing))
	for _, f := range existing {
		fmt.Fprintf(w, "  - %s\n", f)
	}
	for _, f := range missing {
		fmt.Fprintf(w, "Warning: nothing matches %s\n", f)
	}

	return nil
}
