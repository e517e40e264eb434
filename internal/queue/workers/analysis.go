package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/promptlab/promptlab/internal/analyzer"
	"github.com/promptlab/promptlab/internal/cache"
	"github.com/promptlab/promptlab/internal/queue"
)

type AnalysisWorker struct {
	analyzer *analyzer.Analyzer
	cache    *cache.Cache
}

func NewAnalysisWorker(a *analyzer.Analyzer, c *cache.Cache) *AnalysisWorker {
	return &AnalysisWorker{analyzer: a, cache: c}
}

func (w *AnalysisWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.AnalysisRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	versionID, err := uuid.Parse(payload.VersionID)
	if err != nil {
		return fmt.Errorf("parse version ID: %w", err)
	}

	slog.Info("running analysis", "version_id", versionID)

	results, err := w.analyzer.AnalyzeVersion(ctx, versionID)
	if err != nil {
		return fmt.Errorf("analyze version: %w", err)
	}

	if w.cache != nil {
		if err := w.cache.InvalidateVersion(ctx, versionID); err != nil {
			slog.Warn("failed to invalidate summary cache", "version_id", versionID, "error", err)
		}
	}

	slog.Info("analysis complete", "version_id", versionID, "dimensions", len(results))
	return nil
}
