package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ccollicutt/waitlens/pkg/config"
	"github.com/ccollicutt/waitlens/pkg/eventlog"
	"github.com/ccollicutt/waitlens/pkg/parser"
	"github.com/ccollicutt/waitlens/pkg/reasons"
)

// Exit codes shared by every command.
const (
	ExitOK     = 0
	ExitIssues = 1
	ExitError  = 2
)

// ErrIssuesFound is returned by analyze when the report lists issues. It maps
// to ExitIssues and is not printed as an error.
var ErrIssuesFound = errors.New("issues found")

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrIssuesFound):
		return ExitIssues
	default:
		return ExitError
	}
}

type loggerKey struct{}

// WithLogger attaches the command logger to ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger attached by WithLogger, or a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
			return logger
		}
	}
	return zap.NewNop()
}

func commandContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// inputs holds what a config points at, loaded from disk.
type inputs struct {
	files   []string
	log     *eventlog.Log
	reasons *reasons.Report
}

// watchPaths lists every input file, reasons report included.
func (in *inputs) watchPaths(cfg *config.Config) []string {
	paths := append([]string(nil), in.files...)
	if cfg.Reasons != nil {
		paths = append(paths, cfg.Reasons.Path)
	}
	return paths
}

// loadInputs expands the event log sources and reads the log and the optional
// reasons report.
func loadInputs(cfg *config.Config, logger *zap.Logger) (*inputs, error) {
	files, err := parser.ExpandGlobs(cfg.EventLog.Sources)
	if err != nil {
		return nil, fmt.Errorf("expanding event log sources: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no event log files matched patterns: %v", cfg.EventLog.Sources)
	}

	log, err := eventlog.Load(files, parser.Format(cfg.EventLog.Format), cfg.EventLog.Columns, cfg.EventLog.TimestampLayout)
	if err != nil {
		return nil, fmt.Errorf("loading event log: %w", err)
	}
	logger.Debug("event log loaded",
		zap.Strings("files", files),
		zap.Int("occurrences", log.Len()),
		zap.Int("traces", log.TraceCount()))

	in := &inputs{files: files, log: log}

	if cfg.Reasons != nil {
		report, err := reasons.Load(cfg.Reasons.Path, parser.Format(cfg.Reasons.Format), cfg.Reasons.TimestampLayout)
		if err != nil {
			return nil, fmt.Errorf("loading reasons report: %w", err)
		}
		logger.Debug("reasons report loaded",
			zap.String("file", cfg.Reasons.Path),
			zap.Int("rows", report.Len()))
		in.reasons = report
	}

	return in, nil
}
