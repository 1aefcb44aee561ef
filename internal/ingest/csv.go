// Package ingest reads station event logs from CSV.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/chrissnell/failcast/internal/types"
	"github.com/chrissnell/failcast/pkg/config"
)

// CSVReader maps CSV columns onto event fields using configurable header
// aliases. Station, day and failure columns are required; line and shift
// are optional.
type CSVReader struct {
	columns   config.ColumnsData
	delimiter rune
}

// NewCSVReader creates a reader from the input configuration. Empty alias
// lists fall back to the defaults.
func NewCSVReader(in config.InputData) *CSVReader {
	cols := in.Columns
	if len(cols.Station) == 0 {
		cols.Station = config.DefaultStationColumns
	}
	if len(cols.Line) == 0 {
		cols.Line = config.DefaultLineColumns
	}
	if len(cols.Day) == 0 {
		cols.Day = config.DefaultDayColumns
	}
	if len(cols.Failure) == 0 {
		cols.Failure = config.DefaultFailureColumns
	}
	if len(cols.Shift) == 0 {
		cols.Shift = config.DefaultShiftColumns
	}

	delim := ','
	if r, _ := utf8.DecodeRuneInString(in.Delimiter); r != utf8.RuneError {
		delim = r
	}

	return &CSVReader{columns: cols, delimiter: delim}
}

type columnIndex struct {
	station, line, day, failure, shift int
}

// Read parses the whole stream. A header without a required column is
// reported as a *types.MalformedInputError on row 1. Rows are not validated
// here beyond CSV syntax; see features.ParseEvents.
func (c *CSVReader) Read(r io.Reader) ([]types.RawEvent, error) {
	reader := csv.NewReader(r)
	reader.Comma = c.delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []types.RawEvent{}, nil
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	idx, err := c.mapHeader(header)
	if err != nil {
		return nil, err
	}

	var events []types.RawEvent
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		if blank(record) {
			continue
		}

		line, _ := reader.FieldPos(0)
		events = append(events, types.RawEvent{
			Row:     line,
			Station: field(record, idx.station),
			Line:    field(record, idx.line),
			Day:     field(record, idx.day),
			Failure: field(record, idx.failure),
			Shift:   field(record, idx.shift),
		})
	}

	if events == nil {
		events = []types.RawEvent{}
	}
	return events, nil
}

func (c *CSVReader) mapHeader(header []string) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	names := make([]string, 0, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := positions[name]; !dup {
			positions[name] = i
			names = append(names, name)
		}
	}

	find := func(aliases []string) int {
		for _, a := range aliases {
			if i, ok := positions[strings.ToLower(a)]; ok {
				return i
			}
		}
		return -1
	}

	idx := columnIndex{
		station: find(c.columns.Station),
		line:    find(c.columns.Line),
		day:     find(c.columns.Day),
		failure: find(c.columns.Failure),
		shift:   find(c.columns.Shift),
	}

	required := []struct {
		field   string
		pos     int
		aliases []string
	}{
		{"station", idx.station, c.columns.Station},
		{"day", idx.day, c.columns.Day},
		{"failure", idx.failure, c.columns.Failure},
	}
	for _, r := range required {
		if r.pos < 0 {
			reason := fmt.Sprintf("missing required column (accepted headers: %s)", strings.Join(r.aliases, ", "))
			if guess := closestHeader(names, r.aliases); guess != "" {
				reason += fmt.Sprintf("; did you mean %q?", guess)
			}
			return idx, &types.MalformedInputError{
				Row:    1,
				Field:  r.field,
				Reason: reason,
			}
		}
	}

	return idx, nil
}

// Header names within this edit distance of an alias are offered as a
// likely misspelling.
const maxSuggestDistance = 2

func closestHeader(headers, aliases []string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, h := range headers {
		for _, a := range aliases {
			if d := levenshtein.ComputeDistance(h, strings.ToLower(a)); d < bestDist {
				best, bestDist = h, d
			}
		}
	}
	return best
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
