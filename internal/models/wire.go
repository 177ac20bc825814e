package models

import (
	"encoding/json"
	"time"
)

// SyncRecord is the wire form of an observation as the Synkronus API speaks
// it, on both pull and push.
type SyncRecord struct {
	ObservationID string          `json:"observation_id"`
	FormType      string          `json:"form_type"`
	FormVersion   string          `json:"form_version,omitempty"`
	Data          json.RawMessage `json:"data"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Deleted       bool            `json:"deleted"`
	Geolocation   *Geolocation    `json:"geolocation,omitempty"`
	Author        string          `json:"author,omitempty"`
	DeviceID      string          `json:"device_id,omitempty"`
}

// ToObservation converts a wire record into the local entity. SyncedAt is
// left nil; the store decides sync status when applying server changes.
func (r *SyncRecord) ToObservation() *Observation {
	return &Observation{
		ObservationID: r.ObservationID,
		FormType:      r.FormType,
		FormVersion:   r.FormVersion,
		Data:          r.Data,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Deleted:       r.Deleted,
		Geolocation:   r.Geolocation,
		Author:        r.Author,
		DeviceID:      r.DeviceID,
	}
}

// RecordFromObservation converts a local observation into its wire form.
func RecordFromObservation(o *Observation) *SyncRecord {
	return &SyncRecord{
		ObservationID: o.ObservationID,
		FormType:      o.FormType,
		FormVersion:   o.FormVersion,
		Data:          o.Data,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		Deleted:       o.Deleted,
		Geolocation:   o.Geolocation,
		Author:        o.Author,
		DeviceID:      o.DeviceID,
	}
}

// PullRequest asks for changes the client has not seen yet. Since is a
// server-assigned version cursor, not a timestamp.
type PullRequest struct {
	ClientID     string `json:"client_id"`
	SinceVersion int64  `json:"since_version"`
	Limit        int    `json:"limit"`
}

type PullResponse struct {
	Records []*SyncRecord `json:"records"`
	Version int64         `json:"version"`
}

type PushRequest struct {
	ClientID string        `json:"client_id"`
	Records  []*SyncRecord `json:"records"`
}

type PushResponse struct {
	AcceptedVersion int64 `json:"accepted_version"`
}

// ManifestFile is one downloadable entry of the app bundle.
type ManifestFile struct {
	Path string `json:"path"`
	Hash string `json:"hash,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Manifest describes the current app bundle: forms plus assets.
type Manifest struct {
	Version int64          `json:"version"`
	Files   []ManifestFile `json:"files"`
}

// Credentials is a cached username/password pair used for auto-relogin.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPair is the server's answer to login and refresh.
type TokenPair struct {
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}
