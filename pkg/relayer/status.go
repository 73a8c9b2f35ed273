package relayer

import (
	"context"
	"time"

	"github.com/Illuminfti/ika-tensei-relay/pkg/db"
)

// Snapshot is a point-in-time view of the relay, served by the status API.
type Snapshot struct {
	Statuses     map[db.Status]int `json:"statuses"`
	QueueDepth   int               `json:"queue_depth"`
	OriginCursor int64             `json:"origin_cursor"`
	UptimeSecs   int64             `json:"uptime_seconds"`
}

// Snapshot reports current workflow counts, queue depth and the origin
// cursor position.
func (e *Engine) Snapshot(ctx context.Context) (*Snapshot, error) {
	counts, err := e.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Statuses:     counts,
		QueueDepth:   e.queue.Depth(),
		OriginCursor: e.source.Cursor(),
		UptimeSecs:   int64(time.Since(e.startedAt).Seconds()),
	}, nil
}
