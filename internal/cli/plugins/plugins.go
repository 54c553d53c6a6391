// Package plugins provides exec-based plugin support for waitlens.
// Plugins are separate binaries named waitlens-<command> that are discovered
// and executed when an unknown command is invoked, as kubectl and git do.
package plugins

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Prefix is prepended to a command name to form the plugin binary name.
const Prefix = "waitlens-"

// EnvPluginPath lists extra plugin directories, separated like PATH.
const EnvPluginPath = "WAITLENS_PLUGIN_PATH"

// KnownPlugins lists plugins that have official implementations available.
var KnownPlugins = map[string]string{
	"dashboard": "Serves the transition heatmap of an analysis as a local web page.",
}

// ErrPluginNotFound is returned when no plugin binary can be located.
var ErrPluginNotFound = errors.New("plugin not found")

// Finder locates plugin binaries.
type Finder struct {
	// Dirs are searched in order before PATH.
	Dirs []string

	// SkipPath disables the PATH lookup.
	SkipPath bool
}

// DefaultFinder searches, in order, the directory of the running binary,
// WAITLENS_PLUGIN_PATH, ~/.waitlens/plugins/ and PATH.
func DefaultFinder() *Finder {
	f := &Finder{}
	if execPath, err := os.Executable(); err == nil {
		f.Dirs = append(f.Dirs, filepath.Dir(execPath))
	}
	if extra := os.Getenv(EnvPluginPath); extra != "" {
		f.Dirs = append(f.Dirs, filepath.SplitList(extra)...)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		f.Dirs = append(f.Dirs, filepath.Join(homeDir, ".waitlens", "plugins"))
	}
	return f
}

// Find returns the full path of the waitlens-<command> binary.
func (f *Finder) Find(command string) (string, error) {
	pluginName := Prefix + command

	for _, dir := range f.Dirs {
		candidate := filepath.Join(dir, pluginName)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	if !f.SkipPath {
		if path, err := exec.LookPath(pluginName); err == nil {
			return path, nil
		}
	}

	return "", ErrPluginNotFound
}

// FindPlugin searches the default locations for a plugin binary.
func FindPlugin(command string) (string, error) {
	return DefaultFinder().Find(command)
}

// Execute runs a plugin with the given arguments, connected to the current
// stdio, and returns the plugin's exit code.
func Execute(pluginPath string, args []string) int {
	cmd := exec.Command(pluginPath, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing plugin: %v\n", err)
		return 1
	}

	return 0
}

// FormatNotFoundError returns a helpful error message when a plugin is not found.
func FormatNotFoundError(command string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "unknown command %q for \"waitlens\"\n", command)

	if info, ok := KnownPlugins[command]; ok {
		fmt.Fprintf(&sb, "\n%q is available as a plugin.\n", command)
		sb.WriteString(info)
		sb.WriteString("\n\nInstall the plugin binary as one of:\n")
	} else {
		sb.WriteString("\nIf this is a plugin, install the binary as one of:\n")
	}

	fmt.Fprintf(&sb, "  - %s%s in the same directory as waitlens\n", Prefix, command)
	fmt.Fprintf(&sb, "  - a directory listed in %s\n", EnvPluginPath)
	fmt.Fprintf(&sb, "  - ~/.waitlens/plugins/%s%s\n", Prefix, command)
	fmt.Fprintf(&sb, "  - %s%s anywhere in your PATH\n", Prefix, command)

	sb.WriteString("\nRun 'waitlens --help' for usage.")

	return sb.String()
}

// isExecutable reports whether path is a regular file with an execute bit set.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode()&0111 != 0
}
