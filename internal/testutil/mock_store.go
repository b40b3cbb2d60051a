// Package testutil provides shared test utilities for chanharvest.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oceanobs/chanharvest/internal/store"
	"github.com/oceanobs/chanharvest/pkg/types"
)

// Compile-time interface satisfaction check.
var _ store.Store = (*MockStore)(nil)

// MockStore is an in-memory Store implementation for testing. Optional
// error hooks let tests inject failures per operation.
type MockStore struct {
	mu         sync.Mutex
	watermarks map[string]types.Watermark
	reports    []types.RunReport
	locks      map[string]time.Time

	// GetErr / AdvanceErr, when set, are returned by the matching method.
	GetErr     error
	AdvanceErr error

	advanceCount atomic.Int64
}

func wmKey(channelID string, qcLevel int) string {
	return fmt.Sprintf("%s#%d", channelID, qcLevel)
}

// NewMockStore creates a new in-memory mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		watermarks: make(map[string]types.Watermark),
		locks:      make(map[string]time.Time),
	}
}

func (m *MockStore) GetWatermark(_ context.Context, channelID string, qcLevel int) (*types.Watermark, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	wm, ok := m.watermarks[wmKey(channelID, qcLevel)]
	if !ok {
		return nil, nil
	}
	return &wm, nil
}

func (m *MockStore) AdvanceWatermark(_ context.Context, channelID string, qcLevel int, coveredThrough time.Time) error {
	if m.AdvanceErr != nil {
		return m.AdvanceErr
	}
	m.advanceCount.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	key := wmKey(channelID, qcLevel)
	if cur, ok := m.watermarks[key]; ok && !coveredThrough.After(cur.CoveredThrough) {
		return nil
	}
	m.watermarks[key] = types.Watermark{
		ChannelID:      channelID,
		QCLevel:        qcLevel,
		CoveredThrough: coveredThrough,
		UpdatedAt:      time.Now().UTC(),
	}
	return nil
}

func (m *MockStore) ListWatermarks(_ context.Context, qcLevel int) ([]types.Watermark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []types.Watermark
	for _, wm := range m.watermarks {
		if wm.QCLevel == qcLevel {
			result = append(result, wm)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ChannelID < result[j].ChannelID })
	return result, nil
}

// AdvanceCount returns how many times AdvanceWatermark has been called.
func (m *MockStore) AdvanceCount() int64 {
	return m.advanceCount.Load()
}

// SetWatermark seeds a watermark directly, bypassing monotonicity.
func (m *MockStore) SetWatermark(wm types.Watermark) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watermarks[wmKey(wm.ChannelID, wm.QCLevel)] = wm
}

func (m *MockStore) PutRunReport(_ context.Context, report types.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return nil
}

func (m *MockStore) ListRunReports(_ context.Context, limit int) ([]types.RunReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]types.RunReport, len(m.reports))
	copy(result, m.reports)
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.After(result[j].StartedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockStore) AcquireLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, held := m.locks[key]; held && time.Now().Before(exp) {
		return false, nil
	}
	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockStore) ReleaseLock(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return nil
}

func (m *MockStore) Start(context.Context) error { return nil }
func (m *MockStore) Stop(context.Context) error  { return nil }
func (m *MockStore) Ping(context.Context) error  { return nil }
