// Package config provides configuration loading and validation for WaitLens.
package config

import (
	"time"

	"github.com/ccollicutt/waitlens/pkg/eventlog"
	"github.com/ccollicutt/waitlens/pkg/reasons"
	"github.com/ccollicutt/waitlens/pkg/stats"
	"github.com/ccollicutt/waitlens/pkg/transition"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	EventLog EventLogConfig  `yaml:"event_log"`
	Reasons  *ReasonsConfig  `yaml:"reasons,omitempty"`
	Analysis AnalysisConfig  `yaml:"analysis"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// EventLogConfig describes where the event log lives and how to read it.
type EventLogConfig struct {
	// Sources are file paths or glob patterns, read in order.
	Sources []string `yaml:"sources"`

	// Format is csv or xlsx. Empty infers it from each file's extension.
	Format string `yaml:"format,omitempty"`

	// TimestampLayout is the Go time layout tried first for timestamp cells.
	// See https://pkg.go.dev/time#pkg-constants for format.
	TimestampLayout string `yaml:"timestamp_layout,omitempty"`

	// Columns maps logical fields to header names.
	Columns eventlog.Columns `yaml:"columns"`
}

// ReasonsConfig describes the external reasons report.
type ReasonsConfig struct {
	Path            string `yaml:"path"`
	Format          string `yaml:"format,omitempty"`
	TimestampLayout string `yaml:"timestamp_layout,omitempty"`
}

// AnalysisConfig selects what is aggregated.
type AnalysisConfig struct {
	// Metric is one of min, max, stdev, median, mean, sum.
	Metric string `yaml:"metric,omitempty"`

	// Notion is the reasons report column aggregated per transition.
	Notion string `yaml:"notion,omitempty"`

	// GlobalScale shades every transition against the whole report's range
	// instead of the series' own range.
	GlobalScale bool `yaml:"global_scale,omitempty"`

	// Workers bounds concurrent reconciliation. 0 uses GOMAXPROCS.
	Workers int `yaml:"workers,omitempty"`

	// Transitions restricts the analysis to "source -> destination" pairs.
	Transitions []string `yaml:"transitions,omitempty"`

	// MaxWait flags transitions whose metric exceeds it. 0 disables flagging.
	MaxWait time.Duration `yaml:"max_wait,omitempty"`

	// parsed values (populated during validation)
	metric      stats.Metric
	notion      reasons.Column
	transitions []transition.Key
}

// MetricValue returns the validated metric.
func (a *AnalysisConfig) MetricValue() stats.Metric {
	return a.metric
}

// NotionValue returns the validated notion column.
func (a *AnalysisConfig) NotionValue() reasons.Column {
	return a.notion
}

// TransitionKeys returns the validated transition filter.
func (a *AnalysisConfig) TransitionKeys() []transition.Key {
	return a.transitions
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnIssues fires only when the analysis reports issues (default).
	WebhookTriggerOnIssues WebhookTrigger = "on_issues"
	// WebhookTriggerAlways fires after every analysis.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending analysis results.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_issues" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}
