// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into an audit file.
package queue

import "time"

// ActivityRecordedEvent is published after the ledger commits an entry.  It
// carries enough for downstream consumers to log or notify without
// querying the database.
type ActivityRecordedEvent struct {
    EntryID    uint64    `json:"entry_id"`
    UserID     uint64    `json:"user_id"`
    Username   string    `json:"username"`
    House      string    `json:"house"`
    Kind       string    `json:"kind"`
    Quantity   int64     `json:"quantity"`
    Multiplier int64     `json:"multiplier"`
    Points     int64     `json:"points"`
    Source     string    `json:"source"`
    PeakName   string    `json:"peak_name,omitempty"`
    RecordedAt time.Time `json:"recorded_at"`
}
