package features

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/chrissnell/failcast/internal/types"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func series(station string, start time.Time, flags ...int) []types.Event {
	events := make([]types.Event, len(flags))
	for i, f := range flags {
		events[i] = types.Event{
			Station: station,
			Line:    "L1",
			Day:     start.AddDate(0, 0, i),
			Failed:  f == 1,
		}
	}
	return events
}

func intPtr(v int) *int { return &v }

func daysSince(recs []types.FeatureRecord) []*int {
	out := make([]*int, len(recs))
	for i, r := range recs {
		out[i] = r.DaysSinceLastFailure
	}
	return out
}

func TestDeriveScenario(t *testing.T) {
	d := &Deriver{}
	recs, err := d.Derive(series("A", day0, 0, 0, 1, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var consecutive, yesterday []int
	for _, r := range recs {
		consecutive = append(consecutive, r.ConsecutiveDaysWithoutFailure)
		yesterday = append(yesterday, r.FailedYesterday)
	}

	if want := []int{1, 2, 0, 1, 2}; !reflect.DeepEqual(consecutive, want) {
		t.Errorf("consecutive days without failure: expected %v, got %v", want, consecutive)
	}
	if want := []int{0, 0, 0, 1, 0}; !reflect.DeepEqual(yesterday, want) {
		t.Errorf("failed yesterday: expected %v, got %v", want, yesterday)
	}
	if want := []*int{nil, nil, intPtr(0), intPtr(1), intPtr(2)}; !reflect.DeepEqual(daysSince(recs), want) {
		t.Errorf("days since last failure: unexpected values %v", daysSince(recs))
	}
}

func TestDeriveBaseCases(t *testing.T) {
	tests := []struct {
		name   string
		events []types.Event
		want   types.FeatureRecord
	}{
		{
			name:   "single row without failure",
			events: series("S", day0, 0),
			want:   types.FeatureRecord{ConsecutiveDaysWithoutFailure: 1},
		},
		{
			name:   "single row with failure",
			events: series("S", day0, 1),
			want:   types.FeatureRecord{DaysSinceLastFailure: intPtr(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := (&Deriver{}).Derive(tt.events)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(recs) != 1 {
				t.Fatalf("expected 1 record, got %d", len(recs))
			}
			got := recs[0]
			tt.want.Event = got.Event
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestDeriveEmpty(t *testing.T) {
	recs, err := (&Deriver{}).Derive(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("expected empty non-nil output, got %v", recs)
	}
}

func TestDeriveRollingWindowsArePositional(t *testing.T) {
	flags := make([]int, 40)
	for i := range flags {
		if i%3 == 0 {
			flags[i] = 1
		}
	}
	events := series("A", day0, flags...)
	// Gaps: every row after the 10th is spread three days apart. Windows
	// must still cover rows, not days.
	for i := 10; i < len(events); i++ {
		events[i].Day = day0.AddDate(0, 0, 10+(i-10)*3)
	}

	recs, err := (&Deriver{}).Derive(events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, r := range recs {
		want7, want30 := 0, 0
		for j := i - 1; j >= 0 && j >= i-ShortWindow; j-- {
			want7 += flags[j]
		}
		for j := i - 1; j >= 0 && j >= i-LongWindow; j-- {
			want30 += flags[j]
		}
		if r.Failures7d != want7 {
			t.Errorf("row %d: failures_7d expected %d, got %d", i, want7, r.Failures7d)
		}
		if r.Failures30d != want30 {
			t.Errorf("row %d: failures_30d expected %d, got %d", i, want30, r.Failures30d)
		}
	}
}

func TestDeriveDaysSinceUsesCalendarDays(t *testing.T) {
	events := []types.Event{
		{Station: "A", Day: day0, Failed: true},
		{Station: "A", Day: day0.AddDate(0, 0, 4)},
		{Station: "A", Day: day0.AddDate(0, 0, 9)},
	}
	recs, err := (&Deriver{}).Derive(events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []*int{intPtr(0), intPtr(4), intPtr(9)}; !reflect.DeepEqual(daysSince(recs), want) {
		t.Errorf("unexpected days since last failure %v", daysSince(recs))
	}
	if recs[2].ConsecutiveDaysWithoutFailure != 2 {
		t.Errorf("consecutive count must follow rows, expected 2, got %d", recs[2].ConsecutiveDaysWithoutFailure)
	}
}

func TestDeriveSortsAndIsolatesStations(t *testing.T) {
	a := series("A", day0, 1, 1, 0, 1)
	b := series("B", day0, 0, 0, 0, 0)

	// Interleave, reversed in time.
	var mixed []types.Event
	for i := len(a) - 1; i >= 0; i-- {
		mixed = append(mixed, b[i], a[i])
	}

	recs, err := (&Deriver{}).Derive(mixed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	onlyB, err := (&Deriver{}).Derive(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(recs) != 8 {
		t.Fatalf("expected 8 records, got %d", len(recs))
	}
	for i := 0; i < 4; i++ {
		if recs[i].Station != "A" || !recs[i].Day.Equal(a[i].Day) {
			t.Errorf("row %d: expected A on %s, got %s on %s", i, a[i].Day, recs[i].Station, recs[i].Day)
		}
	}
	if !reflect.DeepEqual(recs[4:], onlyB) {
		t.Errorf("station B leaked state from A:\n got %+v\nwant %+v", recs[4:], onlyB)
	}
	for _, r := range recs[4:] {
		if r.DaysSinceLastFailure != nil || r.Failures7d != 0 || r.FailedYesterday != 0 {
			t.Errorf("station B row on %s has failure state: %+v", r.Day, r)
		}
	}
}

func TestDeriveConcurrentMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var events []types.Event
	for _, s := range []string{"S1", "S2", "S3", "S4", "S5", "S6"} {
		flags := make([]int, 50)
		for i := range flags {
			flags[i] = rng.Intn(2)
		}
		events = append(events, series(s, day0, flags...)...)
	}
	rng.Shuffle(len(events), func(i, j int) { events[i], events[j] = events[j], events[i] })

	seq, err := (&Deriver{}).Derive(events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	par, err := NewDeriver(4).Derive(events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(seq, par) {
		t.Error("concurrent derivation differs from sequential derivation")
	}
}

func TestDeriveIsIdempotent(t *testing.T) {
	events := append(series("A", day0, 0, 1, 0, 0, 1), series("B", day0, 1, 0)...)
	first, err := (&Deriver{}).Derive(events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again := make([]types.Event, len(first))
	for i, r := range first {
		again[i] = r.Event
	}
	second, err := (&Deriver{}).Derive(again)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("re-deriving from output events changed derived values")
	}
}

func TestDeriveRejectsMalformedEvents(t *testing.T) {
	tests := []struct {
		name  string
		event types.Event
		field string
	}{
		{name: "missing station", event: types.Event{Day: day0}, field: "station"},
		{name: "missing day", event: types.Event{Station: "A"}, field: "day"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := append(series("A", day0, 0), tt.event)
			_, err := (&Deriver{}).Derive(events)

			var me *types.MalformedInputError
			if !errors.As(err, &me) {
				t.Fatalf("expected MalformedInputError, got %v", err)
			}
			if me.Row != 2 || me.Field != tt.field {
				t.Errorf("expected row 2 field %s, got row %d field %s", tt.field, me.Row, me.Field)
			}
		})
	}
}
