package domain

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// QueueEntry is a track's placement in the queue, associating resolved
// metadata with who requested it and when.
type QueueEntry struct {
	Metadata    TrackMetadata
	RequesterID snowflake.ID
	EnqueuedAt  time.Time
}

// NewQueueEntry creates a QueueEntry with the current time as EnqueuedAt.
func NewQueueEntry(metadata TrackMetadata, requesterID snowflake.ID) QueueEntry {
	return QueueEntry{
		Metadata:    metadata,
		RequesterID: requesterID,
		EnqueuedAt:  time.Now().UTC(),
	}
}
