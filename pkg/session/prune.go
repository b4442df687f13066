package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultPruneInterval is how often expired sessions are swept by a
// long-running relay.
const DefaultPruneInterval = 10 * time.Minute

// Pruner is implemented by stores that keep expired sessions until asked to
// drop them. Redis expires keys on its own and does not implement it.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}

// PruneEvery sweeps storer every interval until ctx is done. It returns at
// once when storer is not a Pruner.
func PruneEvery(ctx context.Context, storer Storer, interval time.Duration, logger *zap.Logger) {
	pruner, ok := storer.(Pruner)
	if !ok {
		return
	}
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pruner.Prune(ctx)
			if err != nil {
				logger.Warn("failed to prune sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("pruned expired sessions", zap.Int64("count", n))
			}
		}
	}
}
