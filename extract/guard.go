package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tbxark/intakeagent/types"
)

// FailbackExtractor tries extractors in order and returns the first non-empty result.
type FailbackExtractor struct {
	extractors []Extractor
}

func NewFailbackExtractor(extractors ...Extractor) *FailbackExtractor {
	return &FailbackExtractor{extractors: extractors}
}

func (f *FailbackExtractor) Extract(ctx context.Context, req *types.ToolRequest) (Result, error) {
	var lastErr error
	succeeded := false
	for _, e := range f.extractors {
		res, err := e.Extract(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		succeeded = true
		if len(res) > 0 {
			return res, nil
		}
	}
	if succeeded || lastErr == nil {
		return Result{}, nil
	}
	return nil, fmt.Errorf("all extractors failed: %w", lastErr)
}

// Guard wraps an extractor so that callers always get a usable result:
// out-of-scope and empty values are dropped and failures become an empty result.
type Guard struct {
	inner  Extractor
	logger *slog.Logger
}

func NewGuard(inner Extractor, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{inner: inner, logger: logger}
}

func (g *Guard) Extract(ctx context.Context, req *types.ToolRequest) (res Result) {
	res = Result{}
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("extraction panicked", "panic", r)
			res = Result{}
		}
	}()
	raw, err := g.inner.Extract(ctx, req)
	if err != nil {
		g.logger.Warn("extraction failed, continuing with empty result", "error", err)
		return res
	}
	scope := make(map[string]bool, len(req.Scope))
	for _, f := range req.Scope {
		scope[f.Name] = true
	}
	for name, value := range raw {
		if !scope[name] {
			g.logger.Debug("dropping out-of-scope field", "field", name)
			continue
		}
		if v := strings.TrimSpace(value); v != "" {
			res[name] = v
		}
	}
	return res
}
