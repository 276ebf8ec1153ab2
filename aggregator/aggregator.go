package aggregator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/metrotime/metrotime/model"
)

// ErrMissingMinutes is returned by Summarize under MissingMinutesFail when a
// behind-schedule record carries no minutes difference.
var ErrMissingMinutes = errors.New("behind record has no schedule difference")

// MissingMinutesPolicy decides how Summarize treats a Behind record without
// a minutes difference.
type MissingMinutesPolicy int

const (
	MissingMinutesFail MissingMinutesPolicy = iota
	MissingMinutesSkip
)

func (p MissingMinutesPolicy) String() string {
	switch p {
	case MissingMinutesSkip:
		return "skip"
	default:
		return "fail"
	}
}

// ParseMissingMinutesPolicy accepts "fail" or "skip". Empty means fail.
func ParseMissingMinutesPolicy(s string) (MissingMinutesPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return MissingMinutesFail, nil
	case "skip":
		return MissingMinutesSkip, nil
	}
	return MissingMinutesFail, fmt.Errorf("unknown missing-minutes policy %q", s)
}

// ParseError reports a structurally invalid feed payload.
// Index is -1 when the payload as a whole could not be read as an array.
type ParseError struct {
	Index int
	Err   error
}

func (e *ParseError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid feed payload: %v", e.Err)
	}
	return fmt.Sprintf("invalid feed record %d: %v", e.Index, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Transformer defines the interface for turning a feed body into records and counts.
type Transformer interface {
	ParseRoutes(body string) ([]model.RouteStatusRecord, error)
	Summarize(records []model.RouteStatusRecord) (model.Summary, error)
}

// RouteAggregator implements the Transformer interface.
type RouteAggregator struct {
	policy   MissingMinutesPolicy
	validate *validator.Validate
}

func NewRouteAggregator(policy MissingMinutesPolicy) *RouteAggregator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RouteAggregator{policy: policy, validate: v}
}

// wireRoute mirrors one feed element. Pointers tell absent or null apart from
// zero values so required fields can be enforced.
type wireRoute struct {
	RouteRun        *string `json:"routerun" validate:"required"`
	CurrentRoute    *string `json:"current_route" validate:"required"`
	TimeStamp       *string `json:"time_stamp" validate:"required"`
	CurrentLocation *string `json:"current_location" validate:"required"`
	RouteNumber     *int64  `json:"routenumber" validate:"required"`
	BusLat          *string `json:"bus_lat" validate:"required"`
	BusLon          *string `json:"bus_lon" validate:"required"`
	Status          *string `json:"gtfs_stop_sequence_status"`
	Deviation       *string `json:"gtfs_stop_sequence_deviation"`
	DiffMins        *int64  `json:"gtfs_stop_sequence_sched_difference_mins"`
}

// ParseRoutes decodes the feed body into records, preserving order and length.
// Any malformed element fails the whole parse.
func (a *RouteAggregator) ParseRoutes(body string) ([]model.RouteStatusRecord, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(body), &elements); err != nil {
		return nil, &ParseError{Index: -1, Err: err}
	}
	if elements == nil {
		return nil, &ParseError{Index: -1, Err: errors.New("expected a JSON array, got null")}
	}

	records := make([]model.RouteStatusRecord, 0, len(elements))
	for i, raw := range elements {
		var w wireRoute
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, &ParseError{Index: i, Err: err}
		}
		if err := a.validate.Struct(w); err != nil {
			return nil, &ParseError{Index: i, Err: missingFieldsError(err)}
		}

		record := model.RouteStatusRecord{
			RouteRunID:          *w.RouteRun,
			CurrentRoute:        *w.CurrentRoute,
			TimeStamp:           *w.TimeStamp,
			CurrentLocation:     *w.CurrentLocation,
			RouteNumber:         *w.RouteNumber,
			BusLatitude:         *w.BusLat,
			BusLongitude:        *w.BusLon,
			ScheduleDeviation:   w.Deviation,
			ScheduleDiffMinutes: w.DiffMins,
		}

		if w.Status != nil {
			status, ok := model.ParseScheduleStatus(*w.Status)
			if !ok {
				log.Warn().
					Str("route_run", record.RouteRunID).
					Str("bus", record.CurrentRoute).
					Str("status", *w.Status).
					Msg("Unrecognized schedule status, recording as NO DATA")
				record.UnrecognizedStatus = *w.Status
			}
			record.ScheduleStatus = status
		}

		records = append(records, record)
	}

	return records, nil
}

func missingFieldsError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fmt.Errorf("missing required field(s): %s", strings.Join(fields, ", "))
}

// Summarize computes the diagnostic counts for a run. TotalMinutesBehind is the
// negated sum of minute differences over Behind records, so it is positive
// when routes run late.
func (a *RouteAggregator) Summarize(records []model.RouteStatusRecord) (model.Summary, error) {
	summary := model.Summary{TotalCount: len(records)}

	var behindSum int64
	for _, r := range records {
		if r.UnrecognizedStatus != "" {
			summary.UnrecognizedCount++
		}

		switch r.ScheduleStatus {
		case model.Behind:
			summary.BehindCount++
			if r.ScheduleDiffMinutes == nil {
				if a.policy == MissingMinutesFail {
					return summary, fmt.Errorf("%w: route run %s, bus %s", ErrMissingMinutes, r.RouteRunID, r.CurrentRoute)
				}
				summary.MissingMinutesCount++
				continue
			}
			behindSum += *r.ScheduleDiffMinutes
		case model.Ahead:
			summary.AheadCount++
		case model.OnTime:
			summary.OnTimeCount++
		default:
			// NoData, or a value outside the enum
			summary.NoDataCount++
		}
	}

	summary.TotalMinutesBehind = -behindSum
	return summary, nil
}
