package models

import (
	"sync"
	"time"
)

// MockStore is an in-memory OrderStore used by tests.
type MockStore struct {
	mu        sync.Mutex
	nextID    uint
	Orders    []*Order
	Snapshots []*AccountSnapshot
}

func NewMockStore() *MockStore {
	return &MockStore{nextID: 1}
}

func (s *MockStore) Ping() error {
	return nil
}

func (s *MockStore) SaveOrder(order *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order.ID = s.nextID
	order.CreatedAt = time.Now().UTC()
	s.nextID++
	s.Orders = append(s.Orders, order)
	return nil
}

func (s *MockStore) UpdateOrder(order *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, o := range s.Orders {
		if o.ID == order.ID {
			s.Orders[i] = order
			return nil
		}
	}

	return nil
}

func (s *MockStore) ListOrders(filter OrderFilter) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Order
	for i := len(s.Orders) - 1; i >= 0; i-- {
		o := s.Orders[i]
		if filter.Ticker != "" && o.Ticker != filter.Ticker {
			continue
		}
		if filter.Nickname != "" && o.Nickname != filter.Nickname {
			continue
		}
		out = append(out, o)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}

	return out, nil
}

func (s *MockStore) SaveSnapshot(snapshot *AccountSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	snapshot.ID = s.nextID
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	s.Snapshots = append(s.Snapshots, snapshot)
	return nil
}

func (s *MockStore) ListSnapshots(name string, limit int) ([]*AccountSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*AccountSnapshot
	for i := len(s.Snapshots) - 1; i >= 0; i-- {
		snap := s.Snapshots[i]
		if name != "" && snap.Name != name {
			continue
		}
		out = append(out, snap)
		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out, nil
}
