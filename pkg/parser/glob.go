package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// excelLockPrefix marks the owner files Excel leaves next to open workbooks.
const excelLockPrefix = "~$"

// ExpandGlobs resolves event log sources to input files. A source may be a
// file, a glob pattern or a directory; a directory contributes the CSV and
// XLSX files directly inside it. Excel lock files are ignored. A source that
// matches nothing is kept verbatim so loading reports it by name.
//
// The result is sorted and deduplicated, so concatenated logs keep a stable
// row order across runs.
func ExpandGlobs(patterns []string) ([]string, error) {
	files := make(map[string]struct{})
	add := func(path string) {
		if !strings.HasPrefix(filepath.Base(path), excelLockPrefix) {
			files[path] = struct{}{}
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			files[pattern] = struct{}{}
			continue
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || !info.IsDir() {
				add(match)
				continue
			}
			inside, err := tabularFiles(match)
			if err != nil {
				return nil, err
			}
			for _, f := range inside {
				add(f)
			}
		}
	}

	result := make([]string, 0, len(files))
	for f := range files {
		result = append(result, f)
	}
	sort.Strings(result)
	return result, nil
}

// tabularFiles lists the files in dir whose extension DetectFormat accepts.
func tabularFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := DetectFormat(e.Name()); err == nil {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
