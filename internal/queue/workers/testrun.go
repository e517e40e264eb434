package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/promptlab/promptlab/internal/cache"
	"github.com/promptlab/promptlab/internal/queue"
	"github.com/promptlab/promptlab/internal/tester"
)

type TestRunWorker struct {
	tester *tester.Tester
	cache  *cache.Cache
}

func NewTestRunWorker(t *tester.Tester, c *cache.Cache) *TestRunWorker {
	return &TestRunWorker{tester: t, cache: c}
}

func (w *TestRunWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.TestsRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	versionID, err := uuid.Parse(payload.VersionID)
	if err != nil {
		return fmt.Errorf("parse version ID: %w", err)
	}

	slog.Info("running test suite", "version_id", versionID)

	results, err := w.tester.RunAllTests(ctx, versionID)
	if err != nil {
		return fmt.Errorf("run tests: %w", err)
	}

	if w.cache != nil {
		if err := w.cache.InvalidateVersion(ctx, versionID); err != nil {
			slog.Warn("failed to invalidate summary cache", "version_id", versionID, "error", err)
		}
	}

	slog.Info("test suite complete", "version_id", versionID, "tests", len(results))
	return nil
}
