package sync

import (
	"context"
	"time"
)

// Status is a read-only snapshot of the backup state.
type Status struct {
	LastSync        *time.Time
	TotalRemote     int
	TotalDownloaded int
	// Pending is TotalRemote minus TotalDownloaded. It is an approximation:
	// keys deleted remotely stay tracked, so it can be stale or negative.
	Pending   int
	LocalRoot string
	Stats     Stats
}

// TestConnection reports whether the source answers a minimal listing call.
// Errors are logged, not returned.
func (e *Engine) TestConnection(ctx context.Context) bool {
	e.log.Info().Str("prefix", e.prefix).Msg("testing storage connection")
	if err := Ping(ctx, e.src); err != nil {
		e.log.Error().Err(err).Msg("storage connection failed")
		return false
	}
	e.log.Info().Msg("storage connection successful")
	return true
}

// Status combines the persisted manifest with a fresh remote listing.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	m := e.store.Load()
	objects, err := ListAll(ctx, e.src, e.opts.PageSize)
	if err != nil {
		return nil, err
	}
	return &Status{
		LastSync:        m.LastSyncDate,
		TotalRemote:     len(objects),
		TotalDownloaded: m.Len(),
		Pending:         len(objects) - m.Len(),
		LocalRoot:       e.root,
		Stats:           m.Stats,
	}, nil
}
