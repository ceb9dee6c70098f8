// Package records persists computed estimates as an append-only history.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/slabquote/internal/estimate"
)

// DefaultListLimit is how many records the history endpoint returns.
const DefaultListLimit = 50

// ErrNotFound is returned by Get when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// Record is one persisted estimate.
type Record struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	ClientName *string         `json:"client_name"`
	Params     json.RawMessage `json:"params"`
	Estimate   estimate.Result `json:"estimate"`
}

// NewRecord stamps a result with a fresh id and creation time. Params is the
// input object as the caller submitted it.
func NewRecord(clientName *string, params json.RawMessage, result estimate.Result) Record {
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	return Record{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
		ClientName: clientName,
		Params:     params,
		Estimate:   result,
	}
}

// Store is an ordered, append-only collection of records. Implementations
// never modify or delete a record once appended.
type Store interface {
	// Append adds rec as the newest record.
	Append(ctx context.Context, rec Record) error

	// ListRecent returns up to n records, newest first.
	ListRecent(ctx context.Context, n int) ([]Record, error)

	// Get returns the record with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Close releases any resources held by the store.
	Close() error
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
