package features

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/failcast/internal/types"
)

// DefaultDayLayout is the ISO-8601 calendar date.
const DefaultDayLayout = "2006-01-02"

// Layouts tried after the configured one. Timestamps are accepted and
// truncated to their calendar day.
var fallbackDayLayouts = []string{
	DefaultDayLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseEvents validates raw event-log rows and converts them to Events. The
// first row that fails validation is returned as a *types.MalformedInputError;
// nothing is coerced or skipped.
func ParseEvents(raw []types.RawEvent, dayLayout string) ([]types.Event, error) {
	events := make([]types.Event, 0, len(raw))
	for i, r := range raw {
		ev, err := ParseEvent(r, dayLayout)
		if err != nil {
			if me, ok := err.(*types.MalformedInputError); ok && me.Row == 0 {
				me.Row = i + 1
			}
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// ParseEvent validates a single raw row.
func ParseEvent(r types.RawEvent, dayLayout string) (types.Event, error) {
	station := strings.TrimSpace(r.Station)
	dayText := strings.TrimSpace(r.Day)

	malformed := func(field, reason string) error {
		return &types.MalformedInputError{
			Row:     r.Row,
			Station: station,
			Day:     dayText,
			Field:   field,
			Reason:  reason,
		}
	}

	if station == "" {
		return types.Event{}, malformed("station", "missing station identifier")
	}
	if dayText == "" {
		return types.Event{}, malformed("day", "missing day")
	}

	day, ok := ParseDay(dayText, dayLayout)
	if !ok {
		return types.Event{}, malformed("day", "unparsable day")
	}

	failed, err := ParseFailureFlag(r.Failure)
	if err != nil {
		return types.Event{}, malformed("failure", err.Error())
	}

	return types.Event{
		Station: station,
		Line:    strings.TrimSpace(r.Line),
		Day:     day,
		Failed:  failed,
		Shift:   strings.TrimSpace(r.Shift),
	}, nil
}

// ParseDay parses s with layout first and then the fallback layouts, and
// returns the calendar day at UTC midnight.
func ParseDay(s, layout string) (time.Time, bool) {
	layouts := fallbackDayLayouts
	if layout != "" {
		layouts = append([]string{layout}, fallbackDayLayouts...)
	}
	for _, l := range layouts {
		t, err := time.Parse(l, s)
		if err == nil {
			return Day(t), true
		}
	}
	return time.Time{}, false
}

// Day truncates t to midnight UTC of its own calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseFailureFlag accepts 0/1 in the spellings pandas and spreadsheets
// produce (0, 1, 0.0, 1.0, true, false). Anything else is rejected.
func ParseFailureFlag(s string) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "":
		return false, errors.New("missing failure flag")
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return false, fmt.Errorf("failure flag %q is not binary", s)
	}
	switch f {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("failure flag %q is not binary", s)
}
