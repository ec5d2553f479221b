// Package usage provides usage event types and pure aggregation functions.
// Events are immutable once constructed; nothing here performs I/O.
package usage

import "time"

// PartitionUnknown is the storage partition for events with no customer id
// (unauthenticated analytics-only calls).
const PartitionUnknown = "unknown"

// Detail carries the fixed-shape operation metadata, plus one free-form map
// for anything the named fields do not cover.
type Detail struct {
	Filename     string            `json:"filename,omitempty"`
	InputFormat  string            `json:"input_format,omitempty"`
	OutputFormat string            `json:"output_format,omitempty"`
	Language     string            `json:"language,omitempty"`
	Timestamps   bool              `json:"timestamps,omitempty"`
	Region       string            `json:"region,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Event represents one completed operation attempt (immutable value type).
// Exactly one Event is created per attempt, success or failure.
// Identity fields are all optional - a fully anonymous event is valid.
type Event struct {
	ID        string
	Timestamp time.Time

	// Caller identity. Any or all may be empty.
	CustomerID   string
	TeamID       string
	Organization string

	// What ran.
	Operation string // e.g. "transcode_wav_to_mp3"
	Kind      string // e.g. "audio_transcode"

	// Usage dimensions.
	InputBytes  int64
	OutputBytes int64
	DurationMs  int64

	// Outcome.
	StatusCode int
	Success    bool
	Error      string

	// Request provenance. KeyDigest is the hashed credential - the raw API
	// key never reaches an Event.
	KeyDigest string
	IPAddress string
	UserAgent string

	Detail Detail

	// Cost is nil until the event has been priced.
	Cost *float64
}

// TotalBytes returns combined input and output volume.
func (e Event) TotalBytes() int64 {
	return e.InputBytes + e.OutputBytes
}

// Partition returns the storage partition key for this event: the customer
// id when present, otherwise the shared unknown bucket.
func (e Event) Partition() string {
	if e.CustomerID == "" {
		return PartitionUnknown
	}
	return e.CustomerID
}

// CostValue returns the priced cost, or 0 for an unpriced event.
func (e Event) CostValue() float64 {
	if e.Cost == nil {
		return 0
	}
	return *e.Cost
}

// Priced returns a copy of the event with its cost set. The receiver is
// unchanged - events are never updated in place.
func (e Event) Priced(cost float64) Event {
	e.Cost = &cost
	return e
}
