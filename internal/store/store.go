// Package store defines the progress-persistence backend interface.
package store

import (
	"context"
	"time"

	"github.com/oceanobs/chanharvest/pkg/types"
)

// Store persists watermarks and run reports and provides cross-host run
// locks. Concurrent writers are disallowed by design: exclusion is enforced
// by the run guard and the run lock, not by locking inside the store.
type Store interface {
	// GetWatermark returns the watermark for (channel, qc level), or nil
	// when the channel has never been harvested.
	GetWatermark(ctx context.Context, channelID string, qcLevel int) (*types.Watermark, error)

	// AdvanceWatermark moves the watermark forward. Calling it with a
	// timestamp at or before the stored value is a no-op; watermarks
	// never regress.
	AdvanceWatermark(ctx context.Context, channelID string, qcLevel int, coveredThrough time.Time) error

	// ListWatermarks returns all watermarks for a QC level.
	ListWatermarks(ctx context.Context, qcLevel int) ([]types.Watermark, error)

	// Run report history
	PutRunReport(ctx context.Context, report types.RunReport) error
	ListRunReports(ctx context.Context, limit int) ([]types.RunReport, error)

	// Cross-host run locking. AcquireLock returns false without error when
	// the lock is already held and unexpired.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error

	// Lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) error
}
