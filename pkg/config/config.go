package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/waitlens/pkg/parser"
	"github.com/ccollicutt/waitlens/pkg/reasons"
	"github.com/ccollicutt/waitlens/pkg/stats"
	"github.com/ccollicutt/waitlens/pkg/transition"
)

// Load reads and validates a configuration file.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks a configuration for errors, fills defaults and parses the
// analysis selections.
func Validate(cfg *Config) error {
	if err := validateEventLog(&cfg.EventLog); err != nil {
		return fmt.Errorf("event_log: %w", err)
	}

	if cfg.Reasons != nil {
		if err := validateReasons(cfg.Reasons, cfg.EventLog.TimestampLayout); err != nil {
			return fmt.Errorf("reasons: %w", err)
		}
	}

	if err := validateAnalysis(&cfg.Analysis, cfg.Reasons != nil); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateEventLog(el *EventLogConfig) error {
	if len(el.Sources) == 0 {
		return errors.New("sources: at least one event log source is required")
	}

	if err := validateFormat(el.Format); err != nil {
		return err
	}

	cols := &el.Columns
	switch {
	case cols.Case == "":
		return errors.New("columns.case is required")
	case cols.Activity == "":
		return errors.New("columns.activity is required")
	case cols.End == "":
		return errors.New("columns.end is required")
	}

	return nil
}

func validateReasons(rc *ReasonsConfig, fallbackLayout string) error {
	if rc.Path == "" {
		return errors.New("path is required")
	}
	if err := validateFormat(rc.Format); err != nil {
		return err
	}
	if rc.TimestampLayout == "" {
		rc.TimestampLayout = fallbackLayout
	}
	return nil
}

func validateFormat(format string) error {
	switch parser.Format(format) {
	case "", parser.FormatCSV, parser.FormatXLSX:
		return nil
	default:
		return fmt.Errorf("invalid format %q (must be csv or xlsx)", format)
	}
}

func validateAnalysis(a *AnalysisConfig, haveReasons bool) error {
	if a.Metric == "" {
		a.Metric = string(DefaultMetric)
	}
	metric, err := stats.ParseMetric(a.Metric)
	if err != nil {
		return fmt.Errorf("metric: %w", err)
	}
	a.metric = metric

	if a.Notion == "" {
		a.Notion = string(DefaultNotion)
	}
	notion, err := reasons.ParseColumn(a.Notion)
	if err != nil {
		return fmt.Errorf("notion: %w", err)
	}
	if notion == reasons.ColumnSimple && !haveReasons {
		return errors.New("notion wt_simple requires a reasons report")
	}
	a.notion = notion

	if a.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", a.Workers)
	}

	if a.MaxWait < 0 {
		return fmt.Errorf("max_wait must be >= 0, got %s", a.MaxWait)
	}

	keys, err := ParseTransitions(a.Transitions)
	if err != nil {
		return fmt.Errorf("transitions: %w", err)
	}
	a.transitions = keys

	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	// Validate URL format
	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	wh.Token = expandEnvVar(wh.Token)

	if wh.Trigger != "" {
		switch wh.Trigger {
		case WebhookTriggerOnIssues, WebhookTriggerAlways, WebhookTriggerNever:
		default:
			return fmt.Errorf("invalid trigger %q (must be on_issues, always, or never)", wh.Trigger)
		}
	} else {
		wh.Trigger = WebhookTriggerOnIssues
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands a token given as ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}

	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}

	return s
}

// ParseTransitions parses "source -> destination" strings, as accepted on the
// command line.
func ParseTransitions(raw []string) ([]transition.Key, error) {
	keys := make([]transition.Key, 0, len(raw))
	for _, r := range raw {
		key, ok := transition.ParseKey(r)
		if !ok || key.Source == "" || key.Destination == "" {
			return nil, fmt.Errorf("invalid transition %q (use %q)", r, "source"+transition.Separator+"destination")
		}
		keys = append(keys, key)
	}
	return keys, nil
}
