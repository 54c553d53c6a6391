package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/waitlens/pkg/config"
	"github.com/ccollicutt/waitlens/pkg/detector"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	ShowAll     bool
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <event-log>",
		Short: "Detect columns and timestamp layout of an event log",
		Long: `Analyze a CSV or XLSX event log to detect which columns hold timestamps, the
Go layout they use, and which headers map to case, activity, resource, start
and end.

Optionally generates a starter config file with --write-config.

Example:
  waitlens detect log.csv
  waitlens detect --sample 500 log.xlsx
  waitlens detect -w waitlens.yaml log.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", 100, "Number of rows to sample")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show every matching layout per column, not just the best")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	logFile := args[0]
	ctx := commandContext(cmd.Context())

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		return fmt.Errorf("event log not found: %s", logFile)
	}

	d := detector.New(detector.WithSampleSize(opts.SampleSize))
	result, err := d.DetectFromFile(ctx, logFile)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.WriteConfig != "" {
		if err := writeStarterConfig(result, logFile, opts.WriteConfig); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote starter config to: %s\n\n", opts.WriteConfig)
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(out, result, logFile, opts)
	case "text":
		return outputDetectText(out, result, logFile, opts)
	default:
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	fmt.Fprintln(w, "=== Event Log Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", logFile)
	fmt.Fprintf(w, "Rows sampled: %d\n", result.SampledRows)
	fmt.Fprintln(w)

	if !result.HasMatch() {
		fmt.Fprintln(w, "No timestamp column detected.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tip: The file may use an uncommon format.")
		fmt.Fprintln(w, "Set event_log.timestamp_layout to a Go layout matching your cells.")
		return nil
	}

	fmt.Fprintln(w, "Timestamp columns:")
	for _, c := range result.Columns {
		best := c.Best()
		fmt.Fprintf(w, "  %s: %s (%.1f%%, %d/%d cells)\n",
			c.Name, best.Format.Name, best.Confidence*100, best.MatchCount, result.SampledRows)
		fmt.Fprintf(w, "    sample %q parsed as %s\n", best.Sample, best.ParsedTime.Format("2006-01-02 15:04:05 MST"))
		if opts.ShowAll {
			for _, m := range c.Matches[1:] {
				fmt.Fprintf(w, "    also: %s (%.1f%%) layout %q\n", m.Format.Name, m.Confidence*100, m.Format.Layout)
			}
		}
	}
	fmt.Fprintln(w)

	if result.AmbiguityNote != "" {
		fmt.Fprintf(w, "Note: %s\n", result.AmbiguityNote)
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "--- Configuration snippet (copy to your config file) ---")
	fmt.Fprintln(w)
	snippet, err := yaml.Marshal(map[string]config.EventLogConfig{"event_log": starterEventLog(result, logFile)})
	if err != nil {
		return err
	}
	_, err = w.Write(snippet)
	return err
}

// JSONColumn is a detected timestamp column in JSON output.
type JSONColumn struct {
	Name    string      `json:"name"`
	Index   int         `json:"index"`
	Matches []JSONMatch `json:"matches"`
}

// JSONMatch represents a layout match in JSON output.
type JSONMatch struct {
	Name       string  `json:"name"`
	Layout     string  `json:"layout"`
	Confidence float64 `json:"confidence"`
	MatchCount int     `json:"match_count"`
	Sample     string  `json:"sample"`
	Ambiguous  bool    `json:"ambiguous,omitempty"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File          string       `json:"file"`
	SampledRows   int          `json:"sampled_rows"`
	Layout        string       `json:"layout"`
	Columns       []JSONColumn `json:"columns"`
	Suggested     any          `json:"suggested_columns"`
	AmbiguityNote string       `json:"ambiguity_note,omitempty"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	out := JSONOutput{
		File:          logFile,
		SampledRows:   result.SampledRows,
		Layout:        result.Layout(),
		Columns:       make([]JSONColumn, 0, len(result.Columns)),
		AmbiguityNote: result.AmbiguityNote,
		Suggested: map[string]string{
			"case":     result.Suggested.Case,
			"activity": result.Suggested.Activity,
			"resource": result.Suggested.Resource,
			"start":    result.Suggested.Start,
			"end":      result.Suggested.End,
		},
	}

	for _, c := range result.Columns {
		matches := c.Matches
		if !opts.ShowAll {
			matches = matches[:1]
		}
		jc := JSONColumn{Name: c.Name, Index: c.Index}
		for _, m := range matches {
			jc.Matches = append(jc.Matches, JSONMatch{
				Name:       m.Format.Name,
				Layout:     m.Format.Layout,
				Confidence: m.Confidence,
				MatchCount: m.MatchCount,
				Sample:     m.Sample,
				Ambiguous:  m.Format.Ambiguous,
			})
		}
		out.Columns = append(out.Columns, jc)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func starterEventLog(result *detector.DetectionResult, logFile string) config.EventLogConfig {
	absLogFile := logFile
	if abs, err := filepath.Abs(logFile); err == nil {
		absLogFile = abs
	}

	el := config.EventLogConfig{
		Sources: []string{absLogFile},
		Columns: result.Suggested,
	}
	if layout := result.Layout(); layout != "" {
		el.TimestampLayout = layout
	}
	return el
}

// writeStarterConfig generates a starter config file from the detection.
func writeStarterConfig(result *detector.DetectionResult, logFile, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}
	if !result.HasMatch() {
		return fmt.Errorf("cannot generate config: no timestamp column detected")
	}

	cfg := struct {
		EventLog config.EventLogConfig `yaml:"event_log"`
		Analysis config.AnalysisConfig `yaml:"analysis"`
	}{
		EventLog: starterEventLog(result, logFile),
		Analysis: config.AnalysisConfig{
			Metric: string(config.DefaultMetric),
		},
	}

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	header := fmt.Sprintf(`# WaitLens Configuration
# Generated by: waitlens detect
# Detected from: %s
#
# Add a reasons report to aggregate causal waiting times:
# reasons:
#   path: reasons.csv
#
# Flag slow transitions and notify:
# analysis:
#   max_wait: 1h
# webhooks:
#   - url: https://hooks.example.com/waitlens

`, filepath.Base(logFile))

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, append([]byte(header), body...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
