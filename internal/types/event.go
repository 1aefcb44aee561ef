package types

import (
	"fmt"
	"time"
)

// RawEvent is a single event-log row as read from its source, before any
// field has been validated. Row is the 1-based line in the source file
// (the header is row 1) or the position in the caller's slice.
type RawEvent struct {
	Row     int
	Station string
	Line    string
	Day     string
	Failure string
	Shift   string
}

// Event is a validated station/day observation. Day is always truncated to
// UTC midnight.
type Event struct {
	Station string    `json:"station"`
	Line    string    `json:"line"`
	Day     time.Time `json:"day"`
	Failed  bool      `json:"failed"`
	Shift   string    `json:"shift,omitempty"`
}

// FailureFlag returns the event's failure indicator as 0 or 1.
func (e Event) FailureFlag() int {
	if e.Failed {
		return 1
	}
	return 0
}

// FeatureRecord is an Event with the rolling failure statistics derived from
// that station's own history. DaysSinceLastFailure is nil until the station
// has failed at least once.
type FeatureRecord struct {
	Event
	Failures7d                    int  `json:"failures_7d"`
	Failures30d                   int  `json:"failures_30d"`
	DaysSinceLastFailure          *int `json:"days_since_last_failure"`
	ConsecutiveDaysWithoutFailure int  `json:"consecutive_days_without_failure"`
	FailedYesterday               int  `json:"failed_yesterday"`
}

// MalformedInputError reports an event-log row that could not be accepted.
type MalformedInputError struct {
	Row     int
	Station string
	Day     string
	Field   string
	Reason  string
}

func (e *MalformedInputError) Error() string {
	loc := fmt.Sprintf("row %d", e.Row)
	if e.Station != "" || e.Day != "" {
		loc = fmt.Sprintf("%s (station %q, day %q)", loc, e.Station, e.Day)
	}
	return fmt.Sprintf("malformed input at %s: field %s: %s", loc, e.Field, e.Reason)
}
