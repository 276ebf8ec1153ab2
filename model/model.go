package model

import (
	"fmt"
	"time"
)

// ScheduleStatus is the feed's schedule-adherence indicator.
// NoData is the zero value and the fallback for absent or unrecognized text.
type ScheduleStatus int

const (
	NoData ScheduleStatus = iota
	Behind
	Ahead
	OnTime
)

var statusText = map[ScheduleStatus]string{
	NoData: "NO DATA",
	Behind: "BEHIND",
	Ahead:  "AHEAD",
	OnTime: "ON TIME",
}

// ParseScheduleStatus maps the feed's text form to a status.
// ok is false when the text is not one of the four known values.
func ParseScheduleStatus(s string) (status ScheduleStatus, ok bool) {
	for st, text := range statusText {
		if text == s {
			return st, true
		}
	}
	return NoData, false
}

func (s ScheduleStatus) String() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	return statusText[NoData]
}

func (s ScheduleStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is strict; lenient feed decoding goes through RouteStatusRecord.
func (s *ScheduleStatus) UnmarshalText(b []byte) error {
	st, ok := ParseScheduleStatus(string(b))
	if !ok {
		return fmt.Errorf("unknown schedule status %q", string(b))
	}
	*s = st
	return nil
}

// RouteStatusRecord is one bus/route observation from a single feed pull.
type RouteStatusRecord struct {
	RouteRunID          string         `json:"routerun"`
	CurrentRoute        string         `json:"current_route"`
	TimeStamp           string         `json:"time_stamp"`
	CurrentLocation     string         `json:"current_location"`
	RouteNumber         int64          `json:"routenumber"`
	BusLatitude         string         `json:"bus_lat"`
	BusLongitude        string         `json:"bus_lon"`
	ScheduleStatus      ScheduleStatus `json:"gtfs_stop_sequence_status"`
	ScheduleDeviation   *string        `json:"gtfs_stop_sequence_deviation,omitempty"`
	ScheduleDiffMinutes *int64         `json:"gtfs_stop_sequence_sched_difference_mins,omitempty"`

	// UnrecognizedStatus holds the raw status text when the feed sent a value
	// outside the known set. ScheduleStatus is NoData in that case.
	UnrecognizedStatus string `json:"-"`
}

// Snapshot is the normalized row stored in the snapshots table.
type Snapshot struct {
	Time      time.Time
	Bus       string
	Route     int64
	Location  string
	Lat       string
	Lon       string
	Status    string
	Deviation string
	DiffMins  int64
}

// NewSnapshot maps a record to its row, substituting defaults for absent fields.
func NewSnapshot(r RouteStatusRecord, at time.Time) Snapshot {
	s := Snapshot{
		Time:     at,
		Bus:      r.CurrentRoute,
		Route:    r.RouteNumber,
		Location: r.CurrentLocation,
		Lat:      r.BusLatitude,
		Lon:      r.BusLongitude,
		Status:   r.ScheduleStatus.String(),
	}
	if r.ScheduleDeviation != nil {
		s.Deviation = *r.ScheduleDeviation
	}
	if r.ScheduleDiffMinutes != nil {
		s.DiffMins = *r.ScheduleDiffMinutes
	}
	return s
}

// Summary holds the diagnostic counts for one run.
type Summary struct {
	TotalCount          int
	BehindCount         int
	AheadCount          int
	OnTimeCount         int
	NoDataCount         int
	UnrecognizedCount   int
	MissingMinutesCount int
	TotalMinutesBehind  int64
}

// QueryStat is a generic map used for returning report rows.
type QueryStat map[string]interface{}
