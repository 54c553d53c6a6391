package test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ccollicutt/waitlens/internal/cli"
	"github.com/ccollicutt/waitlens/internal/cli/commands"
	"github.com/ccollicutt/waitlens/pkg/analyzer"
	"github.com/ccollicutt/waitlens/pkg/config"
	"github.com/ccollicutt/waitlens/pkg/detector"
	"github.com/ccollicutt/waitlens/pkg/eventlog"
	"github.com/ccollicutt/waitlens/pkg/parser"
	"github.com/ccollicutt/waitlens/pkg/reasons"
	"github.com/ccollicutt/waitlens/pkg/reconcile"
	"github.com/ccollicutt/waitlens/pkg/transition"
	"github.com/ccollicutt/waitlens/pkg/webhook"
)

const (
	loanConfig  = "testdata/configs/loan_application.yaml"
	loanLog     = "testdata/logs/loan_application.csv"
	loanReasons = "testdata/reasons/loan_application.csv"
)

var (
	registerToCheck = transition.Key{Source: "Register application", Destination: "Check credit"}
	checkToApprove  = transition.Key{Source: "Check credit", Destination: "Approve"}
	approveToNotify = transition.Key{Source: "Approve", Destination: "Notify applicant"}
	checkToCheck    = transition.Key{Source: "Check credit", Destination: "Check credit"}
	checkToReject   = transition.Key{Source: "Check credit", Destination: "Reject"}
)

// atRoot runs the test from the repository root, where config paths resolve.
func atRoot(t *testing.T) {
	t.Helper()
	t.Chdir(projectRoot())
	for _, path := range []string{loanConfig, loanLog, loanReasons} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("required fixture missing: %s", path)
		}
	}
}

func loadLoan(t *testing.T) (*config.Config, *eventlog.Log, *reasons.Report) {
	t.Helper()
	atRoot(t)

	cfg, err := config.Load(context.Background(), loanConfig)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	files, err := parser.ExpandGlobs(cfg.EventLog.Sources)
	if err != nil {
		t.Fatalf("expanding sources: %v", err)
	}
	log, err := eventlog.Load(files, "", cfg.EventLog.Columns, cfg.EventLog.TimestampLayout)
	if err != nil {
		t.Fatalf("loading event log: %v", err)
	}
	report, err := reasons.Load(cfg.Reasons.Path, "", cfg.Reasons.TimestampLayout)
	if err != nil {
		t.Fatalf("loading reasons report: %v", err)
	}
	return cfg, log, report
}

func TestE2E_LoanApplication_NaiveTransitions(t *testing.T) {
	_, log, _ := loadLoan(t)

	if log.Len() != 16 || log.TraceCount() != 4 {
		t.Fatalf("got %d occurrences in %d traces, want 16 in 4", log.Len(), log.TraceCount())
	}

	set := transition.Extract(log)
	want := []transition.Key{registerToCheck, checkToApprove, approveToNotify, checkToCheck, checkToReject}
	got := set.Keys()
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key %d = %s, want %s", i, got[i], want[i])
		}
	}

	if n := set.Frequency(registerToCheck); n != 4 {
		t.Errorf("frequency of %s = %d, want 4", registerToCheck, n)
	}
	waits := set.WaitingTimes(checkToApprove)
	wantWaits := []float64{1200, 3600, 3600}
	for i, w := range wantWaits {
		if waits[i] != w {
			t.Errorf("waiting times of %s = %v, want %v", checkToApprove, waits, wantWaits)
			break
		}
	}
}

func TestE2E_LoanApplication_Reconcile(t *testing.T) {
	_, log, report := loadLoan(t)

	merged, err := reconcile.New(log, reconcile.WithWorkers(3)).ReconcileReport(context.Background(), report)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if report.Reconciled() {
		t.Error("input report was modified")
	}
	if !merged.Reconciled() {
		t.Fatal("reconciled report has rows without wt_simple")
	}

	// The fixture's totals equal the event log gaps, so each row must agree.
	for i, row := range merged.Rows {
		if math.Abs(row.Simple-row.Total) > 1e-6 {
			t.Errorf("row %d (%s %s): wt_simple %v, wt_total %v", i, row.CaseID, row.Key(), row.Simple, row.Total)
		}
	}
}

func TestE2E_LoanApplication_Analyze(t *testing.T) {
	cfg, log, report := loadLoan(t)

	a, err := analyzer.NewAnalyzer(
		analyzer.WithMetric(cfg.Analysis.MetricValue()),
		analyzer.WithColumn(cfg.Analysis.NotionValue()),
		analyzer.WithMaxWait(cfg.Analysis.MaxWait),
	)
	if err != nil {
		t.Fatalf("creating analyzer: %v", err)
	}

	result, err := a.Analyze(context.Background(), log, report)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	want := map[transition.Key]float64{
		registerToCheck: 825,
		checkToApprove:  2800,
		approveToNotify: 600,
		checkToCheck:    600,
		checkToReject:   600,
	}
	if len(result.Values) != len(want) {
		t.Fatalf("got %d values, want %d", len(result.Values), len(want))
	}
	for _, v := range result.Values {
		if math.Abs(v.Value-want[v.Key]) > 1e-9 {
			t.Errorf("%s: mean wt_total = %v, want %v", v.Key, v.Value, want[v.Key])
		}
		if v.Intensity < 0 || v.Intensity > 1 {
			t.Errorf("%s: intensity %v outside [0, 1]", v.Key, v.Intensity)
		}
	}

	if len(result.Issues) != 1 {
		t.Fatalf("got %d issues, want 1: %+v", len(result.Issues), result.Issues)
	}
	issue := result.Issues[0]
	if issue.Type != analyzer.IssueTypeWaitExceeded || issue.Transition != checkToApprove {
		t.Errorf("unexpected issue %+v", issue)
	}
}

func TestE2E_LoanApplication_Detect(t *testing.T) {
	atRoot(t)

	result, err := detector.New().DetectFromFile(context.Background(), loanLog)
	if err != nil {
		t.Fatalf("detection failed: %v", err)
	}
	if layout := result.Layout(); layout != "2006-01-02 15:04:05" {
		t.Errorf("layout = %q", layout)
	}
	if result.Suggested != eventlog.DefaultColumns() {
		t.Errorf("suggested columns = %+v, want the XES defaults", result.Suggested)
	}
}

// runCLI executes the root command the way main does, minus os.Exit.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := cli.NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := cli.Run(context.Background(), root)
	return stdout.String(), stderr.String(), err
}

func TestE2E_CLI_AnalyzeJSON(t *testing.T) {
	atRoot(t)

	stdout, _, err := runCLI(t, "analyze", "-o", "json", loanConfig)
	if !errors.Is(err, commands.ErrIssuesFound) {
		t.Fatalf("expected issues exit, got %v", err)
	}

	var got struct {
		Summary struct {
			Transitions int `json:"transitions"`
			ReasonsRows int `json:"reasons_rows"`
			TotalIssues int `json:"total_issues"`
		} `json:"summary"`
		Breakdowns []json.RawMessage `json:"breakdowns"`
		Metadata   struct {
			Sources     []string `json:"sources"`
			ReasonsFile string   `json:"reasons_file"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if got.Summary.Transitions != 5 || got.Summary.ReasonsRows != 12 || got.Summary.TotalIssues != 1 {
		t.Errorf("unexpected summary %+v", got.Summary)
	}
	if len(got.Breakdowns) != 5 {
		t.Errorf("got %d breakdowns, want 5", len(got.Breakdowns))
	}
	if len(got.Metadata.Sources) != 1 || got.Metadata.ReasonsFile != loanReasons {
		t.Errorf("unexpected metadata %+v", got.Metadata)
	}
}

func TestE2E_CLI_AnalyzeSimpleNotion(t *testing.T) {
	atRoot(t)

	stdout, _, err := runCLI(t, "analyze", "-q", "--notion", "wt_simple", "--metric", "max", "--max-wait", "0s", loanConfig)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if !strings.Contains(stdout, "0 total issues") {
		t.Errorf("unexpected quiet output %q", stdout)
	}
}

func TestE2E_CLI_ReconcileWritesReport(t *testing.T) {
	atRoot(t)
	out := filepath.Join(t.TempDir(), "reconciled.csv")

	_, stderr, err := runCLI(t, "reconcile", "--no-progress", "--out", out, loanConfig)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !strings.Contains(stderr, "Reconciled 12 rows") {
		t.Errorf("unexpected stderr %q", stderr)
	}

	report, err := reasons.Load(out, "", "")
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if report.Len() != 12 || !report.Reconciled() {
		t.Errorf("got %d rows, reconciled=%v", report.Len(), report.Reconciled())
	}
}

func TestE2E_CLI_Diagnose(t *testing.T) {
	atRoot(t)

	stdout, _, err := runCLI(t, "diagnose", loanConfig)
	if err != nil {
		t.Fatalf("diagnose failed: %v", err)
	}
	for _, want := range []string{"[PASS] Reconciliation", "[WARN] Repeated Occurrences", "0 errors"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in:\n%s", want, stdout)
		}
	}
}

func TestE2E_CLI_LogsToStderr(t *testing.T) {
	atRoot(t)

	stdout, stderr, err := runCLI(t, "--log-level", "info", "--log-format", "json", "analyze", "-o", "json", loanConfig)
	if !errors.Is(err, commands.ErrIssuesFound) {
		t.Fatalf("expected issues exit, got %v", err)
	}
	if !json.Valid([]byte(stdout)) {
		t.Error("log lines leaked into the JSON report")
	}
	if !strings.Contains(stderr, `"msg":"analysis complete"`) {
		t.Errorf("expected structured log line on stderr, got %q", stderr)
	}
}

func TestE2E_Webhook_ConfigFile(t *testing.T) {
	atRoot(t)

	var (
		mu       sync.Mutex
		payloads []webhook.Payload
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p webhook.Payload
		if err := json.Unmarshal(body, &p); err != nil {
			t.Errorf("invalid payload: %v", err)
		}
		mu.Lock()
		payloads = append(payloads, p)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	base, err := os.ReadFile(loanConfig)
	if err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(t.TempDir(), "with-webhooks.yaml")
	hooks := "\nwebhooks:\n" +
		"  - name: ops\n    url: " + server.URL + "/ops\n    trigger: on_issues\n" +
		"  - name: silent\n    url: " + server.URL + "/silent\n    trigger: never\n"
	if err := os.WriteFile(cfgPath, append(base, hooks...), 0644); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := runCLI(t, "analyze", "-q", cfgPath)
	if !errors.Is(err, commands.ErrIssuesFound) {
		t.Fatalf("expected issues exit, got %v", err)
	}
	if !strings.Contains(stderr, "Webhook ops: sent (202") {
		t.Errorf("unexpected stderr %q", stderr)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(payloads) != 1 {
		t.Fatalf("got %d webhook calls, want 1", len(payloads))
	}
	p := payloads[0]
	if p.Event != webhook.EventAnalysisCompleted || p.RunID == "" {
		t.Errorf("unexpected envelope %q/%q", p.Event, p.RunID)
	}
	if len(p.Issues) != 1 || p.Issues[0].Transition != checkToApprove {
		t.Errorf("unexpected issues %+v", p.Issues)
	}
}
