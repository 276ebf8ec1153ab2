package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleStatusRoundTrip(t *testing.T) {
	for _, st := range []ScheduleStatus{Behind, Ahead, OnTime, NoData} {
		parsed, ok := ParseScheduleStatus(st.String())
		require.True(t, ok, st.String())
		assert.Equal(t, st, parsed)
	}

	assert.Equal(t, "BEHIND", Behind.String())
	assert.Equal(t, "AHEAD", Ahead.String())
	assert.Equal(t, "ON TIME", OnTime.String())
	assert.Equal(t, "NO DATA", NoData.String())
}

func TestParseScheduleStatusUnknown(t *testing.T) {
	for _, s := range []string{"", "behind", "ONTIME", "LATE"} {
		st, ok := ParseScheduleStatus(s)
		assert.False(t, ok, s)
		assert.Equal(t, NoData, st)
	}
}

func TestScheduleStatusText(t *testing.T) {
	var st ScheduleStatus
	require.NoError(t, st.UnmarshalText([]byte("ON TIME")))
	assert.Equal(t, OnTime, st)

	assert.Error(t, st.UnmarshalText([]byte("SOON")))

	b, err := json.Marshal(struct {
		S ScheduleStatus `json:"s"`
	}{Behind})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"BEHIND"}`, string(b))

	assert.Equal(t, "NO DATA", ScheduleStatus(99).String())
}

func TestNewSnapshotDefaults(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := RouteStatusRecord{
		RouteRunID:      "9",
		CurrentRoute:    "A1",
		CurrentLocation: "Main St",
		RouteNumber:     10,
		BusLatitude:     "38.9",
		BusLongitude:    "-77.0",
	}

	s := NewSnapshot(r, at)
	assert.Equal(t, Snapshot{
		Time:      at,
		Bus:       "A1",
		Route:     10,
		Location:  "Main St",
		Lat:       "38.9",
		Lon:       "-77.0",
		Status:    "NO DATA",
		Deviation: "",
		DiffMins:  0,
	}, s)
}

func TestNewSnapshotCarriesOptionalFields(t *testing.T) {
	dev := "5 min"
	mins := int64(-5)
	r := RouteStatusRecord{
		CurrentRoute:        "A1",
		ScheduleStatus:      Behind,
		ScheduleDeviation:   &dev,
		ScheduleDiffMinutes: &mins,
	}

	s := NewSnapshot(r, time.Time{})
	assert.Equal(t, "BEHIND", s.Status)
	assert.Equal(t, "5 min", s.Deviation)
	assert.Equal(t, int64(-5), s.DiffMins)
}
