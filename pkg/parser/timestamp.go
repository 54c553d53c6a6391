package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// fallbackLayouts are tried after the configured layout.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000000-07:00",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// TimestampParser parses timestamp cells using a preferred layout with
// RFC3339-style fallbacks.
type TimestampParser struct {
	layout      string
	excelSerial bool
}

// NewTimestampParser creates a parser. An empty layout uses the fallbacks only.
func NewTimestampParser(layout string) *TimestampParser {
	return &TimestampParser{layout: layout}
}

// WithExcelSerial enables numeric Excel serial dates (days since 1899-12-30).
func (p *TimestampParser) WithExcelSerial() *TimestampParser {
	return &TimestampParser{layout: p.layout, excelSerial: true}
}

// Layout returns the preferred layout.
func (p *TimestampParser) Layout() string {
	return p.layout
}

// Parse converts a cell value to a time.
func (p *TimestampParser) Parse(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if p.layout != "" {
		if ts, err := time.Parse(p.layout, value); err == nil {
			return ts, nil
		}
	}

	for _, layout := range fallbackLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}

	if p.excelSerial {
		if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 1 {
			epoch := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
			return epoch.Add(time.Duration(serial * 24 * float64(time.Hour))).Round(time.Millisecond), nil
		}
	}

	return time.Time{}, fmt.Errorf("parsing timestamp %q: no matching layout", value)
}
