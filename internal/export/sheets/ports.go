// Package sheets exports spending snapshots to a spreadsheet.
package sheets

import (
	"context"
	"time"

	"banklink/internal/core"
)

// Snapshot is one exported summary row.
type Snapshot struct {
	TakenAt  time.Time
	Provider core.Provider
	Summary  core.Summary
}

// SnapshotWriter appends snapshot rows and returns a reference to the row.
type SnapshotWriter interface {
	Append(ctx context.Context, s Snapshot) (rowRef string, err error)
}

// Row renders the snapshot as spreadsheet cells:
// date, daily, weekly, monthly, count, provider.
func (s Snapshot) Row() []any {
	return []any{
		s.TakenAt.Format(time.DateOnly),
		s.Summary.Daily.StringFixed(2),
		s.Summary.Weekly.StringFixed(2),
		s.Summary.Monthly.StringFixed(2),
		s.Summary.Count,
		s.Provider.String(),
	}
}
