package worker

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-trader/src/services"
)

// Run takes a snapshot of every configured account on each interval tick
// until the context is canceled.
func Run(ctx context.Context, snapshots *services.SnapshotService, interval time.Duration) {
	if interval <= 0 {
		log.Info("snapshot worker disabled")
		return
	}

	log.Infof("snapshot worker running every %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("snapshot worker stopped")
			return
		case <-ticker.C:
			takeAll(ctx, snapshots)
		}
	}
}

func takeAll(ctx context.Context, snapshots *services.SnapshotService) {
	for _, name := range snapshots.AccountNames() {
		snapshot, err := snapshots.TakeSnapshot(ctx, name)
		if err != nil {
			log.Errorf("snapshot worker: failed to snapshot %s: %v", name, err)
			continue
		}

		log.Debugf("snapshot worker: %s cash=%.2f equity=%.2f", name, snapshot.Cash, snapshot.Equity)
	}
}
