package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/failcast/internal/predict"
)

// MemoryStore keeps batches for the lifetime of the process
type MemoryStore struct {
	mu      sync.RWMutex
	batches []*predict.Batch
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SaveBatch(_ context.Context, b *predict.Batch) error {
	cp := *b
	cp.Predictions = append([]predict.Prediction(nil), b.Predictions...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, &cp)
	return nil
}

func (m *MemoryStore) LatestBatchID(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.batches) == 0 {
		return "", ErrNoBatches
	}
	return m.batches[len(m.batches)-1].ID, nil
}

func (m *MemoryStore) Predictions(ctx context.Context, q Query) ([]predict.Prediction, error) {
	id := q.BatchID
	if id == "" {
		var err error
		if id, err = m.LatestBatchID(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.batches {
		if b.ID == id {
			return predict.Filter{Day: q.Day, Line: q.Line}.Apply(b.Predictions), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
}

func (m *MemoryStore) Close() error {
	return nil
}
