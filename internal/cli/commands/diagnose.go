package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/waitlens/pkg/config"
	"github.com/ccollicutt/waitlens/pkg/detector"
	"github.com/ccollicutt/waitlens/pkg/eventlog"
	"github.com/ccollicutt/waitlens/pkg/parser"
	"github.com/ccollicutt/waitlens/pkg/reasons"
	"github.com/ccollicutt/waitlens/pkg/reconcile"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
}

// Diagnostic statuses.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusError   = "error"
)

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <config-file>",
		Short: "Diagnose common configuration issues",
		Long: `Diagnose common configuration issues.

This command checks your configuration file for common problems:
- Config file syntax and structure
- Event log file existence, columns and timestamp layout
- Repeated activity/case/resource keys that need disambiguation
- Reasons report loading and reconciliation against the event log
- Webhook configuration

Example:
  waitlens diagnose config.yaml
  waitlens diagnose -v config.yaml  # verbose output`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(commandContext(cmd.Context()), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, w io.Writer, configPath string, opts *DiagnoseOptions) error {
	results := []DiagnosticResult{}

	result := checkConfigExists(configPath)
	results = append(results, result)
	if result.Status == StatusError {
		printDiagnostics(w, results, opts)
		return nil
	}

	cfg, result := checkConfigParseable(ctx, configPath)
	results = append(results, result)
	if result.Status == StatusError {
		printDiagnostics(w, results, opts)
		return nil
	}

	files, sourceResults := checkEventLogSources(cfg)
	results = append(results, sourceResults...)

	log, logResults := checkEventLog(ctx, cfg, files, opts)
	results = append(results, logResults...)

	results = append(results, checkReasons(ctx, cfg, log)...)
	results = append(results, checkWebhooks(cfg, opts)...)

	printDiagnostics(w, results, opts)
	return nil
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Use 'waitlens detect <event-log> --write-config config.yaml' to generate a starter config",
		}
		return result
	}
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = StatusError
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = StatusError
		result.Message = "Config file is empty"
		result.Suggests = []string{
			"Use 'waitlens detect <event-log> --write-config config.yaml' to generate a starter config",
		}
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Failed to parse config: %v", err)
		if strings.Contains(err.Error(), "yaml") {
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			}
		}
		return nil, result
	}

	result.Status = StatusOK
	result.Message = "Config file parsed successfully"
	result.Details = []string{
		fmt.Sprintf("Event log sources: %d", len(cfg.EventLog.Sources)),
		fmt.Sprintf("Metric: %s", cfg.Analysis.MetricValue()),
		fmt.Sprintf("Notion: %s", cfg.Analysis.NotionValue()),
	}
	if cfg.Reasons != nil {
		result.Details = append(result.Details, fmt.Sprintf("Reasons report: %s", cfg.Reasons.Path))
	}
	return cfg, result
}

func checkEventLogSources(cfg *config.Config) ([]string, []DiagnosticResult) {
	results := []DiagnosticResult{}
	var files []string

	for _, source := range cfg.EventLog.Sources {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Event Log Source: %s", source),
		}

		if strings.ContainsAny(source, "*?[") {
			matches, err := filepath.Glob(source)
			switch {
			case err != nil:
				result.Status = StatusError
				result.Message = fmt.Sprintf("Invalid glob pattern: %v", err)
			case len(matches) == 0:
				result.Status = StatusWarning
				result.Message = "Glob pattern matches no files"
				result.Suggests = []string{
					"Check if the event log files exist at this path",
					"Verify the glob pattern syntax",
				}
			default:
				result.Status = StatusOK
				result.Message = fmt.Sprintf("Matches %d file(s)", len(matches))
				result.Details = append(result.Details, matches...)
				files = append(files, matches...)
			}
			results = append(results, result)
			continue
		}

		info, err := os.Stat(source)
		switch {
		case os.IsNotExist(err):
			result.Status = StatusError
			result.Message = "File does not exist"
			result.Suggests = []string{"Check if the event log path is correct"}
		case err != nil:
			result.Status = StatusError
			result.Message = fmt.Sprintf("Cannot access file: %v", err)
			result.Suggests = []string{"Check file permissions"}
		case info.IsDir():
			inside, err := parser.ExpandGlobs([]string{source})
			switch {
			case err != nil:
				result.Status = StatusError
				result.Message = fmt.Sprintf("Cannot read directory: %v", err)
			case len(inside) == 0:
				result.Status = StatusWarning
				result.Message = "Directory holds no CSV or XLSX files"
			default:
				result.Status = StatusOK
				result.Message = fmt.Sprintf("Directory with %d event log file(s)", len(inside))
				result.Details = append(result.Details, inside...)
				files = append(files, inside...)
			}
		case info.Size() == 0:
			result.Status = StatusWarning
			result.Message = "File is empty (0 bytes)"
		default:
			result.Status = StatusOK
			result.Message = fmt.Sprintf("File exists (%d bytes)", info.Size())
			files = append(files, source)
		}
		results = append(results, result)
	}

	if len(files) == 0 {
		results = append(results, DiagnosticResult{
			Check:    "Event Log Files Summary",
			Status:   StatusError,
			Message:  "No accessible event log files found",
			Suggests: []string{"Ensure at least one event log file exists and is readable"},
		})
	}

	return files, results
}

// checkEventLog tests columns and timestamps on the first file, then loads
// every file to look for repeated lookup keys.
func checkEventLog(ctx context.Context, cfg *config.Config, files []string, opts *DiagnoseOptions) (*eventlog.Log, []DiagnosticResult) {
	if len(files) == 0 {
		return nil, nil
	}

	results := []DiagnosticResult{}
	first := files[0]
	cols := cfg.EventLog.Columns

	columnResult := DiagnosticResult{Check: fmt.Sprintf("Columns: %s", filepath.Base(first))}
	table, err := parser.ReadFile(first, parser.Format(cfg.EventLog.Format))
	if err != nil {
		columnResult.Status = StatusError
		columnResult.Message = fmt.Sprintf("Cannot read file: %v", err)
		return nil, append(results, columnResult)
	}

	if _, err := table.RequireColumns(cols.Case, cols.Activity, cols.End); err != nil {
		columnResult.Status = StatusError
		columnResult.Message = err.Error()
		columnResult.Details = []string{"Header: " + strings.Join(table.Header, ", ")}
		columnResult.Suggests = []string{"Set event_log.columns to match the header"}
		if res, _ := detector.New().DetectTable(ctx, table); res != nil {
			s := res.Suggested
			columnResult.Suggests = append(columnResult.Suggests, fmt.Sprintf(
				"Suggested columns: case=%q activity=%q resource=%q start=%q end=%q",
				s.Case, s.Activity, s.Resource, s.Start, s.End))
		}
		return nil, append(results, columnResult)
	}
	columnResult.Status = StatusOK
	columnResult.Message = fmt.Sprintf("%d rows, required columns present", table.Len())
	var missing []string
	if cols.Resource != "" && table.Column(cols.Resource) < 0 {
		missing = append(missing, fmt.Sprintf("resource column %q absent; resources will be empty", cols.Resource))
	}
	if cols.Start != "" && table.Column(cols.Start) < 0 {
		missing = append(missing, fmt.Sprintf("start column %q absent; starts fall back to end timestamps", cols.Start))
	}
	if len(missing) > 0 {
		columnResult.Status = StatusWarning
		columnResult.Details = missing
	}
	results = append(results, columnResult)

	results = append(results, checkTimestampLayout(ctx, cfg, table, opts))

	log, err := eventlog.Load(files, parser.Format(cfg.EventLog.Format), cols, cfg.EventLog.TimestampLayout)
	loadResult := DiagnosticResult{Check: "Event Log"}
	if err != nil {
		loadResult.Status = StatusError
		loadResult.Message = fmt.Sprintf("Failed to load: %v", err)
		return nil, append(results, loadResult)
	}
	loadResult.Status = StatusOK
	loadResult.Message = fmt.Sprintf("%d occurrences in %d traces, %d activities",
		log.Len(), log.TraceCount(), len(log.Activities()))
	results = append(results, loadResult)

	dupResult := DiagnosticResult{Check: "Repeated Occurrences"}
	dups := log.DuplicateKeys()
	if len(dups) == 0 {
		dupResult.Status = StatusOK
		dupResult.Message = "Every case/activity/resource key occurs once"
	} else {
		dupResult.Status = StatusWarning
		dupResult.Message = fmt.Sprintf("%d key(s) occur more than once; reconciliation will disambiguate by time", len(dups))
		keys := make([]string, 0, len(dups))
		for k := range dups {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		limit := len(keys)
		if !opts.Verbose && limit > 5 {
			limit = 5
		}
		for _, k := range keys[:limit] {
			dupResult.Details = append(dupResult.Details, fmt.Sprintf("%s (%d times)", k, dups[k]))
		}
	}
	results = append(results, dupResult)

	return log, results
}

func checkTimestampLayout(ctx context.Context, cfg *config.Config, table *parser.Table, opts *DiagnoseOptions) DiagnosticResult {
	result := DiagnosticResult{Check: "Timestamp Layout"}
	layout := cfg.EventLog.TimestampLayout
	endIdx := table.Column(cfg.EventLog.Columns.End)

	rows := table.Rows
	if len(rows) > 10 {
		rows = rows[:10]
	}

	matched, total := 0, 0
	var sampleFail string
	for _, row := range rows {
		cell := strings.TrimSpace(row[endIdx])
		if cell == "" {
			continue
		}
		total++
		if _, err := time.Parse(layout, cell); err == nil {
			matched++
		} else if sampleFail == "" {
			sampleFail = cell
		}
	}

	switch {
	case total == 0:
		result.Status = StatusWarning
		result.Message = "No timestamp cells to test"
	case matched == total:
		result.Status = StatusOK
		result.Message = fmt.Sprintf("Layout %q matches %d/%d sample cells", layout, matched, total)
	default:
		// Fallback layouts may still parse the cells.
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Layout %q matches only %d/%d sample cells", layout, matched, total)
		result.Details = []string{"Sample cell that didn't match: " + truncate(sampleFail, 80)}
		if res, _ := detector.New(detector.WithSampleSize(10)).DetectTable(ctx, table); res != nil {
			if suggested := res.Layout(); suggested != "" && suggested != layout {
				result.Suggests = append(result.Suggests, fmt.Sprintf("Suggested layout: %q", suggested))
			}
		}
	}

	if opts.Verbose {
		result.Details = append(result.Details, fmt.Sprintf("End column: %s", cfg.EventLog.Columns.End))
	}
	return result
}

// checkReasons loads the reasons report and reconciles it against log.
func checkReasons(ctx context.Context, cfg *config.Config, log *eventlog.Log) []DiagnosticResult {
	if cfg.Reasons == nil {
		return nil
	}

	results := []DiagnosticResult{}
	loadResult := DiagnosticResult{Check: fmt.Sprintf("Reasons Report: %s", cfg.Reasons.Path)}

	report, err := reasons.Load(cfg.Reasons.Path, parser.Format(cfg.Reasons.Format), cfg.Reasons.TimestampLayout)
	if err != nil {
		loadResult.Status = StatusError
		loadResult.Message = fmt.Sprintf("Failed to load: %v", err)
		if errors.Is(err, parser.ErrMissingColumn) {
			loadResult.Suggests = []string{
				"The report needs source_activity, destination_activity, case_id and end_time columns",
			}
		}
		return append(results, loadResult)
	}
	loadResult.Status = StatusOK
	loadResult.Message = fmt.Sprintf("%d rows, %d transitions", report.Len(), len(report.Keys()))
	results = append(results, loadResult)

	if log == nil {
		return results
	}

	recResult := DiagnosticResult{Check: "Reconciliation"}
	if _, err := reconcile.New(log, reconcile.WithWorkers(cfg.Analysis.Workers)).Reconcile(ctx, report.Rows); err != nil {
		recResult.Status = StatusError
		recResult.Message = err.Error()
		var contract *reconcile.ContractError
		if errors.As(err, &contract) {
			switch {
			case errors.Is(err, reconcile.ErrNoCandidate):
				recResult.Suggests = []string{"Check that the reasons report was computed from this event log"}
			case errors.Is(err, reconcile.ErrAmbiguous):
				recResult.Suggests = []string{"Source occurrences repeat with the same end time; add resources to tell them apart"}
			case errors.Is(err, reconcile.ErrNegativeWait):
				recResult.Suggests = []string{"Destination starts before source ends; check timestamps and time zones"}
			}
		}
		return append(results, recResult)
	}
	recResult.Status = StatusOK
	recResult.Message = fmt.Sprintf("All %d rows resolve to a source and destination", report.Len())
	return append(results, recResult)
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Fprintln(w, "=== WaitLens Configuration Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case StatusOK:
			icon = "PASS"
			okCount++
		case StatusWarning:
			icon = "WARN"
			warnCount++
		case StatusError:
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != StatusOK {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	switch {
	case errCount > 0:
		fmt.Fprintln(w, "\nFix the errors above before running analysis.")
	case warnCount > 0:
		fmt.Fprintln(w, "\nConfiguration is usable but has warnings.")
	default:
		fmt.Fprintln(w, "\nConfiguration looks good!")
	}
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  StatusOK,
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check: fmt.Sprintf("Webhook: %s", name),
		}

		issues := []string{}
		warnings := []string{}

		if wh.URL == "" {
			issues = append(issues, "Missing url")
		} else {
			u, err := url.Parse(wh.URL)
			switch {
			case err != nil:
				issues = append(issues, fmt.Sprintf("Invalid URL: %v", err))
			case u.Scheme != "http" && u.Scheme != "https":
				issues = append(issues, fmt.Sprintf("URL scheme must be http or https, got %q", u.Scheme))
			case u.Host == "":
				issues = append(issues, "URL must have a host")
			}
		}

		switch wh.Trigger {
		case "", config.WebhookTriggerOnIssues, config.WebhookTriggerAlways, config.WebhookTriggerNever:
		default:
			issues = append(issues, fmt.Sprintf("Invalid trigger %q (use on_issues, always, or never)", wh.Trigger))
		}

		if strings.HasPrefix(wh.Token, "$") {
			warnings = append(warnings, fmt.Sprintf("Token appears to be an unresolved env var: %s", wh.Token))
		}

		switch {
		case len(issues) > 0:
			result.Status = StatusError
			result.Message = fmt.Sprintf("%d configuration issue(s)", len(issues))
			result.Details = issues
		case len(warnings) > 0:
			result.Status = StatusWarning
			result.Message = fmt.Sprintf("%d warning(s)", len(warnings))
			result.Details = warnings
		default:
			result.Status = StatusOK
			result.Message = fmt.Sprintf("Trigger: %s", wh.Trigger)
			if opts.Verbose {
				result.Details = []string{
					fmt.Sprintf("URL: %s", wh.URL),
					fmt.Sprintf("Timeout: %s", wh.Timeout),
				}
				if wh.Token != "" {
					result.Details = append(result.Details, "Token: configured")
				}
			}
		}

		results = append(results, result)
	}

	if opts.Verbose {
		for _, wh := range cfg.Webhooks {
			if wh.URL == "" {
				continue
			}
			name := wh.Name
			if name == "" {
				name = wh.URL
			}

			result := checkWebhookConnectivity(wh)
			result.Check = fmt.Sprintf("Webhook Connectivity: %s", name)
			results = append(results, result)
		}
	}

	return results
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}
	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = StatusOK
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may require POST method (will work during actual webhook send)",
			"Check authentication if using a token",
		}
	}

	return result
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
