// Package stats derives aggregate user statistics from the Vaultwarden user
// list and caches the result for a configurable window.
package stats

import (
	"fmt"
	"time"
)

// ActiveWindow is how recently a user must have been active to count as active.
const ActiveWindow = 30 * 24 * time.Hour

// ItemsByType is the per-type vault item breakdown.
type ItemsByType struct {
	Logins     int
	Notes      int
	Cards      int
	Identities int
}

// Snapshot is one computed set of statistics.
// Optional fields are nil when the upstream schema does not expose them.
type Snapshot struct {
	TotalUsers  int
	ActiveUsers int
	TotalItems  *int
	ItemsByType *ItemsByType
	FetchedAt   time.Time
}

// Warning describes a per-record value that could not be used.
type Warning struct {
	Index  int    // Position of the record in the user list
	ID     string // Record identifier, if one was present
	Field  string // Field that failed to parse
	Value  string // Offending raw value
	Reason string // Why it was rejected
}

func (w Warning) String() string {
	return fmt.Sprintf("record %d (%s): %s=%q: %s", w.Index, w.ID, w.Field, w.Value, w.Reason)
}
