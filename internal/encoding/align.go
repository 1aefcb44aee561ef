package encoding

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// Alignment describes how a frame was fitted to a required schema.
type Alignment struct {
	// Missing lists required columns absent from the frame; they were
	// zero-filled.
	Missing []string
	// Dropped lists frame columns the schema does not know about.
	Dropped []string
}

// Align returns a matrix whose columns are exactly required, in order.
// Required columns the frame lacks are filled with zeros, which is what a
// one-hot column for an unseen category would hold. Columns not in required
// are discarded.
func Align(f *Frame, required []string) (*mat.Dense, Alignment, error) {
	var a Alignment

	if f.Rows() == 0 {
		return nil, a, ErrEmptyFrame
	}
	if len(required) == 0 {
		return nil, a, errors.New("required schema has no columns")
	}

	index := make(map[string]int, len(f.Columns))
	for i, c := range f.Columns {
		index[c] = i
	}

	rows := f.Rows()
	out := mat.NewDense(rows, len(required), nil)
	wanted := make(map[string]struct{}, len(required))

	for j, name := range required {
		wanted[name] = struct{}{}
		src, ok := index[name]
		if !ok {
			a.Missing = append(a.Missing, name)
			continue
		}
		out.SetCol(j, mat.Col(nil, src, f.Data))
	}

	for _, c := range f.Columns {
		if _, ok := wanted[c]; !ok {
			a.Dropped = append(a.Dropped, c)
		}
	}

	return out, a, nil
}
