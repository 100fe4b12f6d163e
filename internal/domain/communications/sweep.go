package communications

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type SweepResult struct {
	Activated   int64 `json:"activated"`
	Deactivated int64 `json:"deactivated"`
}

// Sweep moves communications to their target state at now. Rows already in
// the target state are untouched, so repeated or overlapping runs are safe.
func Sweep(ctx context.Context, store Store, now time.Time, log *zap.Logger) (SweepResult, error) {
	var res SweepResult

	off, err := store.Deactivate(ctx, now)
	if err != nil {
		return res, err
	}
	res.Deactivated = off

	on, err := store.Activate(ctx, now)
	if err != nil {
		return res, err
	}
	res.Activated = on

	if log != nil && (on > 0 || off > 0) {
		log.Info("communications sweep",
			zap.Int64("activated", on),
			zap.Int64("deactivated", off),
		)
	}
	return res, nil
}
