// Package cache keeps successful resource reads in Redis so repeated reads
// of the same document or attachment can be answered locally or revalidated
// with If-None-Match.
package cache

import "time"

// Entry is a stored read of one resource.
type Entry struct {
	Body        []byte    `json:"body"`
	ETag        string    `json:"etag,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	StoredAt    time.Time `json:"stored_at"`
	FreshUntil  time.Time `json:"fresh_until"`
}

// State classifies the result of a lookup.
type State int

const (
	// Miss means nothing usable is stored under the key.
	Miss State = iota
	// Stale means the entry may only be used after the service confirms its ETag.
	Stale
	// Fresh means the entry can be served without contacting the service.
	Fresh
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	}
	return "miss"
}

// stateAt reports the entry's state at now. An entry without an ETag cannot
// be revalidated, so once it goes past FreshUntil it is a miss.
func (e *Entry) stateAt(now time.Time) State {
	switch {
	case e == nil:
		return Miss
	case now.Before(e.FreshUntil):
		return Fresh
	case e.ETag != "":
		return Stale
	}
	return Miss
}
