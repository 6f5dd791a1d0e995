// Package observability bridges the shared logging and metrics
// infrastructure into the shapes the review pipeline consumes.
package observability

import (
	"context"

	llmhttp "github.com/reviewpilot/reviewpilot/internal/adapter/llm/http"
	"github.com/reviewpilot/reviewpilot/internal/usecase/review"
)

// ReviewLogger adapts llmhttp.Logger to review.Logger, so the
// orchestrator logs through the same structured logger as the LLM HTTP
// clients.
type ReviewLogger struct {
	logger llmhttp.Logger
}

// NewReviewLogger wraps an llmhttp.Logger for the review pipeline.
func NewReviewLogger(logger llmhttp.Logger) review.Logger {
	return &ReviewLogger{logger: logger}
}

func (l *ReviewLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	l.logger.LogInfo(ctx, message, fields)
}

func (l *ReviewLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	l.logger.LogWarning(ctx, message, fields)
}

func (l *ReviewLogger) LogError(ctx context.Context, message string, fields map[string]interface{}) {
	l.logger.LogError(ctx, message, fields)
}
