package config

import (
	"os"
	"strings"
	"time"

	"github.com/ccollicutt/waitlens/pkg/eventlog"
	"github.com/ccollicutt/waitlens/pkg/reasons"
	"github.com/ccollicutt/waitlens/pkg/stats"
)

// Default values for configuration.
const (
	DefaultMetric          = stats.MetricMean
	DefaultNotion          = reasons.ColumnTotal
	DefaultWebhookTimeout  = 10 * time.Second
	DefaultTimestampLayout = "2006-01-02 15:04:05"
)

// Environment variable names.
const (
	EnvEventLog        = "WAITLENS_EVENT_LOG"
	EnvReasons         = "WAITLENS_REASONS"
	EnvTimestampLayout = "WAITLENS_TIMESTAMP_LAYOUT"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		EventLog: EventLogConfig{
			Sources:         []string{},
			TimestampLayout: DefaultTimestampLayout,
			Columns:         eventlog.DefaultColumns(),
		},
		Analysis: AnalysisConfig{
			Metric: string(DefaultMetric),
			Notion: string(DefaultNotion),
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if sources := os.Getenv(EnvEventLog); sources != "" {
		c.EventLog.Sources = splitList(sources)
	}

	if path := os.Getenv(EnvReasons); path != "" {
		if c.Reasons == nil {
			c.Reasons = &ReasonsConfig{}
		}
		c.Reasons.Path = path
	}

	if layout := os.Getenv(EnvTimestampLayout); layout != "" {
		c.EventLog.TimestampLayout = layout
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
