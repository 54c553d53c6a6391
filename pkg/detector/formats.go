package detector

import "regexp"

// LayoutExcelSerial marks numeric Excel serial dates, which have no Go layout.
const LayoutExcelSerial = "EXCEL_SERIAL"

// TimestampFormat is a known shape of timestamp cells.
type TimestampFormat struct {
	Name       string         // Human-readable name
	Pattern    *regexp.Regexp // Compiled full-cell match
	PatternStr string
	Layout     string   // Go time layout, or LayoutExcelSerial
	Examples   []string // Example cells
	Ambiguous  bool     // True if day and month order cannot be told apart
}

// DefaultFormats returns the built-in cell formats, most specific first.
func DefaultFormats() []*TimestampFormat {
	formats := []*TimestampFormat{
		{
			Name:       "RFC 3339 with fractional seconds",
			PatternStr: `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d+(Z|[+-]\d{2}:\d{2})$`,
			Layout:     "2006-01-02T15:04:05.999999999Z07:00",
			Examples:   []string{"2024-01-15T10:30:00.123Z", "2024-01-15T10:30:00.5+01:00"},
		},
		{
			Name:       "RFC 3339",
			PatternStr: `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(Z|[+-]\d{2}:\d{2})$`,
			Layout:     "2006-01-02T15:04:05Z07:00",
			Examples:   []string{"2024-01-15T10:30:00Z", "2024-01-15T10:30:00-05:00"},
		},
		{
			Name:       "ISO 8601 with milliseconds",
			PatternStr: `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}$`,
			Layout:     "2006-01-02T15:04:05.000",
			Examples:   []string{"2024-01-15T10:30:00.123"},
		},
		{
			Name:       "ISO 8601",
			PatternStr: `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}$`,
			Layout:     "2006-01-02T15:04:05",
			Examples:   []string{"2024-01-15T10:30:00"},
		},
		// pandas writes this for tz-aware columns
		{
			Name:       "Datetime with microseconds and offset",
			PatternStr: `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{6}[+-]\d{2}:\d{2}$`,
			Layout:     "2006-01-02 15:04:05.000000-07:00",
			Examples:   []string{"2024-01-15 10:30:00.123456+00:00"},
		},
		{
			Name:       "Datetime with offset",
			PatternStr: `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}[+-]\d{2}:\d{2}$`,
			Layout:     "2006-01-02 15:04:05-07:00",
			Examples:   []string{"2024-01-15 10:30:00+00:00"},
		},
		{
			Name:       "Datetime with milliseconds",
			PatternStr: `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}$`,
			Layout:     "2006-01-02 15:04:05.000",
			Examples:   []string{"2024-01-15 10:30:00.123"},
		},
		{
			Name:       "Datetime (space-separated)",
			PatternStr: `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`,
			Layout:     "2006-01-02 15:04:05",
			Examples:   []string{"2024-01-15 10:30:00"},
		},
		{
			Name:       "Datetime without seconds",
			PatternStr: `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}$`,
			Layout:     "2006-01-02 15:04",
			Examples:   []string{"2024-01-15 10:30"},
		},
		{
			Name:       "Date",
			PatternStr: `^\d{4}-\d{2}-\d{2}$`,
			Layout:     "2006-01-02",
			Examples:   []string{"2024-01-15"},
		},
		{
			Name:       "US date format (MM/DD/YYYY)",
			PatternStr: `^\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2}$`,
			Layout:     "01/02/2006 15:04:05",
			Examples:   []string{"01/15/2024 10:30:00"},
			Ambiguous:  true,
		},
		{
			Name:       "European date format (DD/MM/YYYY)",
			PatternStr: `^\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2}$`,
			Layout:     "02/01/2006 15:04:05",
			Examples:   []string{"15/01/2024 10:30:00"},
			Ambiguous:  true,
		},
		{
			Name:       "Dotted European date",
			PatternStr: `^\d{2}\.\d{2}\.\d{4} \d{2}:\d{2}$`,
			Layout:     "02.01.2006 15:04",
			Examples:   []string{"15.01.2024 10:30"},
		},
		{
			Name:       "Excel serial date",
			PatternStr: `^\d{5}(\.\d+)?$`,
			Layout:     LayoutExcelSerial,
			Examples:   []string{"45306.4375"},
		},
	}

	for _, f := range formats {
		f.Pattern = regexp.MustCompile(f.PatternStr)
	}

	return formats
}
