package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

const testEventLog = `case:concept:name,concept:name,org:resource,start_timestamp,time:timestamp
c1,A,alice,2024-01-15 10:00:00,2024-01-15 10:00:10
c1,B,bob,2024-01-15 10:00:40,2024-01-15 10:01:00
c2,A,alice,2024-01-15 11:00:00,2024-01-15 11:00:10
c2,B,bob,2024-01-15 11:01:10,2024-01-15 11:02:00
`

const testReasons = `case_id,source_activity,destination_activity,source_resource,destination_resource,start_time,end_time,wt_total,wt_contention,wt_batching,wt_prioritization,wt_unavailability,wt_extraneous
c1,A,B,alice,bob,2024-01-15 10:00:10,2024-01-15 10:00:10,30,30,0,0,0,0
c2,A,B,alice,bob,2024-01-15 11:00:10,2024-01-15 11:00:10,60,0,60,0,0,0
`

// fixture is a temporary directory holding an event log, a reasons report
// and configs pointing at them.
type fixture struct {
	dir     string
	log     string
	reasons string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:     dir,
		log:     filepath.Join(dir, "log.csv"),
		reasons: filepath.Join(dir, "reasons.csv"),
	}
	writeFile(t, f.log, testEventLog)
	writeFile(t, f.reasons, testReasons)
	return f
}

// config writes a config file and returns its path. withReasons adds the
// reasons section; extra is appended verbatim.
func (f *fixture) config(t *testing.T, withReasons bool, extra string) string {
	t.Helper()
	body := fmt.Sprintf(`event_log:
  sources:
    - %s
  timestamp_layout: "2006-01-02 15:04:05"
`, f.log)
	if withReasons {
		body += fmt.Sprintf("reasons:\n  path: %s\n", f.reasons)
	}
	body += extra

	file, err := os.CreateTemp(f.dir, "config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create config: %v", err)
	}
	defer file.Close()
	if _, err := file.WriteString(body); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return file.Name()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// execute runs cmd with args and returns what it wrote to stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
