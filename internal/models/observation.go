// Package models defines the data types exchanged between the local store,
// the sync services and the Synkronus API client.
package models

import (
	"encoding/json"
	"time"
)

// Geolocation is an optional capture-time location snapshot. Once set on an
// observation it is never modified.
type Geolocation struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// Observation is the central entity: one collected form instance.
//
// ObservationID is immutable after creation and doubles as the identifier
// exchanged with the server. Data is opaque to the store; it is persisted as
// text and never inspected.
type Observation struct {
	ObservationID string
	FormType      string
	FormVersion   string
	Data          json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time

	// SyncedAt is nil until the observation has been pushed at least once.
	SyncedAt *time.Time

	// Deleted is a soft-delete tombstone; rows are never physically removed
	// by normal sync, so deletions propagate like any other change.
	Deleted bool

	Geolocation *Geolocation
	Author      string
	DeviceID    string
}

// Pending reports whether the observation has local changes the server has
// not seen: never synced, or edited after the last sync.
func (o *Observation) Pending() bool {
	return o.SyncedAt == nil || o.UpdatedAt.After(*o.SyncedAt)
}
