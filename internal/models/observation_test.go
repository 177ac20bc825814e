package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObservation_Pending(t *testing.T) {
	now := time.Now().UTC()
	earlier := now.Add(-time.Minute)
	later := now.Add(time.Minute)

	tests := []struct {
		name     string
		syncedAt *time.Time
		want     bool
	}{
		{"never synced", nil, true},
		{"edited after sync", &earlier, true},
		{"synced after edit", &later, false},
		{"synced exactly at edit", &now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Observation{UpdatedAt: now, SyncedAt: tt.syncedAt}
			require.Equal(t, tt.want, o.Pending())
		})
	}
}

func TestSyncRecord_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	o := &Observation{
		ObservationID: "obs-1",
		FormType:      "water_survey",
		FormVersion:   "3",
		Data:          json.RawMessage(`{"x":1}`),
		CreatedAt:     now.Add(-time.Hour),
		UpdatedAt:     now,
		Deleted:       true,
		Geolocation:   &Geolocation{Latitude: 1.5, Longitude: 2.5, CapturedAt: now},
		Author:        "enumerator-7",
		DeviceID:      "formulus-abc",
	}

	back := RecordFromObservation(o).ToObservation()

	require.Nil(t, back.SyncedAt, "wire form never carries sync status")
	back.SyncedAt = o.SyncedAt
	require.Equal(t, o, back)
}
