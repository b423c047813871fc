package usecase

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/interfaces"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/utils/logging"
)

// recalculateProgress recomputes and persists the rollup counters of one framework
func recalculateProgress(ctx context.Context, repo interfaces.Repository, frameworkID int64) (model.Progress, error) {
	controls, err := repo.FrameworkControl().ListByFramework(ctx, frameworkID, "")
	if err != nil {
		return model.Progress{}, goerr.Wrap(err, "failed to list framework controls",
			goerr.V(FrameworkIDKey, frameworkID))
	}

	progress := model.ComputeProgress(controls)
	if err := repo.Framework().UpdateProgress(ctx, frameworkID, progress); err != nil {
		return model.Progress{}, goerr.Wrap(err, "failed to update framework progress",
			goerr.V(FrameworkIDKey, frameworkID))
	}

	logging.From(ctx).Debug("framework progress recalculated",
		slog.Int64("framework_id", frameworkID),
		slog.Int("total", progress.TotalControls),
		slog.Float64("completion", progress.CompletionPercentage),
	)
	return progress, nil
}

// recalculateAll recalculates each framework in the given order, skipping nil and repeated IDs
func recalculateAll(ctx context.Context, repo interfaces.Repository, frameworkIDs ...*int64) error {
	seen := make(map[int64]struct{}, len(frameworkIDs))
	for _, id := range frameworkIDs {
		if id == nil {
			continue
		}
		if _, ok := seen[*id]; ok {
			continue
		}
		seen[*id] = struct{}{}

		if _, err := recalculateProgress(ctx, repo, *id); err != nil {
			return err
		}
	}
	return nil
}
