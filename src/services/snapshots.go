package services

import (
	"context"
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/jiaming2012/webhook-trader/src/alpaca"
	"github.com/jiaming2012/webhook-trader/src/eventpubsub"
	"github.com/jiaming2012/webhook-trader/src/models"
)

// Twelve snapshots per account are kept on the default listing, matching an
// hourly snapshot worker over half a trading day.
const snapshotsPerAccount = 12

type SnapshotService struct {
	store   models.OrderStore
	brokers map[string]alpaca.Broker
}

func NewSnapshotService(store models.OrderStore, brokers map[string]alpaca.Broker) *SnapshotService {
	return &SnapshotService{
		store:   store,
		brokers: brokers,
	}
}

// TakeSnapshot reads the account from the broker and persists a snapshot.
func (s *SnapshotService) TakeSnapshot(ctx context.Context, name string) (*models.AccountSnapshot, error) {
	broker, found := s.brokers[name]
	if !found {
		return nil, models.NewWebError(404, "account not found", nil)
	}

	account, err := broker.GetAccount(ctx)
	if err != nil {
		return nil, models.NewWebError(502, "failed to fetch account", err)
	}

	snapshot := &models.AccountSnapshot{
		AccountID: account.ID,
		Name:      name,
		Cash:      account.Cash,
		Equity:    account.Equity,
	}

	if err := s.store.SaveSnapshot(snapshot); err != nil {
		return nil, models.NewWebError(500, "failed to save snapshot", err)
	}

	eventpubsub.Publish(eventpubsub.SnapshotCreatedEvent, snapshot)

	return snapshot, nil
}

// ListSnapshots returns the most recent snapshots across all accounts, newest
// first. A limit of 0 defaults to 12 per configured account.
func (s *SnapshotService) ListSnapshots(limit int) ([]*models.AccountSnapshot, error) {
	if limit <= 0 {
		limit = snapshotsPerAccount * len(s.brokers)
	}

	return s.store.ListSnapshots("", limit)
}

func (s *SnapshotService) ListAccountSnapshots(name string, limit int) ([]*models.AccountSnapshot, error) {
	if limit <= 0 {
		limit = snapshotsPerAccount
	}

	return s.store.ListSnapshots(name, limit)
}

func (s *SnapshotService) AccountNames() []string {
	names := make([]string, 0, len(s.brokers))
	for name := range s.brokers {
		names = append(names, name)
	}

	return names
}

type EquityStats struct {
	Samples     int     `json:"samples"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"std_dev"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// ComputeEquityStats summarizes equity over a snapshot history. Snapshots are
// expected newest first, as returned by the store.
func ComputeEquityStats(snapshots []*models.AccountSnapshot) (*EquityStats, error) {
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("ComputeEquityStats: no snapshots")
	}

	// oldest first for the drawdown walk
	equity := make([]float64, len(snapshots))
	for i, snap := range snapshots {
		equity[len(snapshots)-1-i] = snap.Equity
	}

	mean, err := stats.Mean(equity)
	if err != nil {
		return nil, fmt.Errorf("ComputeEquityStats: failed to calculate mean: %v", err)
	}

	stdDev, err := stats.StandardDeviation(equity)
	if err != nil {
		return nil, fmt.Errorf("ComputeEquityStats: failed to calculate the standard deviation: %v", err)
	}

	min, err := stats.Min(equity)
	if err != nil {
		return nil, fmt.Errorf("ComputeEquityStats: failed to calculate min: %v", err)
	}

	max, err := stats.Max(equity)
	if err != nil {
		return nil, fmt.Errorf("ComputeEquityStats: failed to calculate max: %v", err)
	}

	var peak, maxDrawdown float64
	for _, v := range equity {
		if v > peak {
			peak = v
		}

		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	return &EquityStats{
		Samples:     len(equity),
		Mean:        mean,
		StdDev:      stdDev,
		Min:         min,
		Max:         max,
		MaxDrawdown: maxDrawdown,
	}, nil
}
