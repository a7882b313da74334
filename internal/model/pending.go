package model

import (
	"strings"
	"time"
)

// ProcessedMarkerPrefix stamps the enrichment marker of a pending row that
// has reached a terminal outcome, so later passes skip it.
const ProcessedMarkerPrefix = "PROCESSED_"

// PendingRecord is a staging row awaiting enrichment. PlaceID doubles as
// the completion marker: NULL means pending, a real place id or a
// PROCESSED_ stamp means done.
type PendingRecord struct {
	ID         string    `json:"id"`
	CustomerID *string   `json:"customer_id"`
	Name       *string   `json:"name"`
	PlaceID    *string   `json:"place_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Customer is the joined reference record; nil when no customer could
	// be resolved by id or name.
	Customer *Customer `json:"customer_data,omitempty"`
}

// Pending reports whether the record still needs enrichment.
func (r PendingRecord) Pending() bool {
	return r.PlaceID == nil || *r.PlaceID == ""
}

// Processed reports whether the record carries a terminal-outcome stamp
// rather than a real place id.
func (r PendingRecord) Processed() bool {
	return r.PlaceID != nil && strings.HasPrefix(*r.PlaceID, ProcessedMarkerPrefix)
}
