package parser

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("case,activity\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestExpandGlobs(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "march.csv", "january.csv", "february.xlsx", "notes.txt")
	in := func(name string) string { return filepath.Join(dir, name) }

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name:     "plain path",
			patterns: []string{in("march.csv")},
			want:     []string{in("march.csv")},
		},
		{
			name:     "pattern results are sorted",
			patterns: []string{in("*.csv")},
			want:     []string{in("january.csv"), in("march.csv")},
		},
		{
			name:     "several patterns merge in sorted order",
			patterns: []string{in("*.xlsx"), in("*.csv")},
			want:     []string{in("february.xlsx"), in("january.csv"), in("march.csv")},
		},
		{
			name:     "overlapping patterns are deduplicated",
			patterns: []string{in("march.csv"), in("*.csv"), in("m*")},
			want:     []string{in("january.csv"), in("march.csv")},
		},
		{
			name:     "unmatched pattern is kept for the loader to report",
			patterns: []string{in("*.parquet")},
			want:     []string{in("*.parquet")},
		},
		{
			name:     "directory contributes its tabular files",
			patterns: []string{dir},
			want:     []string{in("february.xlsx"), in("january.csv"), in("march.csv"), in("notes.txt")},
		},
		{
			name:     "no patterns",
			patterns: nil,
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandGlobs(tt.patterns)
			if err != nil {
				t.Fatalf("ExpandGlobs() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandGlobs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpandGlobs_SkipsExcelLockFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "events.xlsx", "~$events.xlsx")

	got, err := ExpandGlobs([]string{filepath.Join(dir, "*.xlsx")})
	if err != nil {
		t.Fatalf("ExpandGlobs() error = %v", err)
	}
	want := []string{filepath.Join(dir, "events.xlsx")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandGlobs() = %v, want %v", got, want)
	}
}

func TestExpandGlobs_InvalidPattern(t *testing.T) {
	if _, err := ExpandGlobs([]string{"logs/[unclosed"}); err == nil {
		t.Error("expected error for malformed pattern")
	}
}
