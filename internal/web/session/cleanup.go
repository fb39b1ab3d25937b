package session

import (
	"context"
	"time"

	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
)

type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

func StartCleanup(ctx context.Context, store ExpiredDeleter, log *logger.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = constants.SessionCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := store.DeleteExpired(ctx)
			if err != nil {
				log.Errorf("session cleanup failed: %v", err)
				continue
			}
			if deleted > 0 {
				log.Infof("session cleanup: deleted %d expired sessions", deleted)
			}
		}
	}
}
