package analyzer

import (
	"context"
)

// Check inspects a completed analysis and reports issues.
type Check interface {
	// Name returns the check's identifier.
	Name() string

	// Evaluate returns the issues found in result. It must not modify result.
	Evaluate(ctx context.Context, result *AnalysisResult) ([]Issue, error)
}
