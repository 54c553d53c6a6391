package commands

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	f := newFixture(t)
	configPath := f.config(t, true, `analysis:
  metric: median
  max_wait: 1h
  transitions:
    - "A -> B"
`)

	stdout, _, err := execute(t, NewValidateCommand(), configPath)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	for _, want := range []string{
		"Configuration valid!",
		"Metric:            median",
		"Reasons report:",
		"Max wait:          1h0m0s",
		"1. A -> B",
		"Event log files matched: 1",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected output to contain %q:\n%s", want, stdout)
		}
	}
}

func TestValidate_NoMatchingFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	writeFile(t, path, "event_log:\n  sources:\n    - /nonexistent/*.csv\n")

	stdout, _, err := execute(t, NewValidateCommand(), path)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(stdout, "No files match event log patterns") {
		t.Errorf("expected warning:\n%s", stdout)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"no sources", "event_log:\n  sources: []\n", "at least one event log source"},
		{"bad metric", "event_log:\n  sources: [a.csv]\nanalysis:\n  metric: p95\n", "metric"},
		{"simple without reasons", "event_log:\n  sources: [a.csv]\nanalysis:\n  notion: wt_simple\n", "requires a reasons report"},
		{"bad transition", "event_log:\n  sources: [a.csv]\nanalysis:\n  transitions: [\"A to B\"]\n", "invalid transition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.yaml")
			writeFile(t, path, tt.body)

			_, _, err := execute(t, NewValidateCommand(), path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	Version, Commit = "1.2.3", "abc123"
	defer func() { Version, Commit = oldVersion, oldCommit }()

	stdout, _, err := execute(t, NewVersionCommand(), "--short")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if stdout != "waitlens 1.2.3\n" {
		t.Errorf("short version output = %q", stdout)
	}

	stdout, _, err = execute(t, NewVersionCommand())
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(stdout, "waitlens 1.2.3\n") || !strings.Contains(stdout, "commit: abc123") {
		t.Errorf("version output = %q", stdout)
	}
}
