package store

import (
	"context"

	"github.com/nhle/trackit/internal/model"
)

// Store persists scan state per mailbox account. Load returns the default
// empty state when nothing was persisted yet. Save must be atomic: either
// the whole state (watermark, seen set, match cache) is written or nothing
// is.
type Store interface {
	Load(ctx context.Context, accountID string) (model.ScanState, error)
	Save(ctx context.Context, accountID string, state model.ScanState) error
	Close() error
}
