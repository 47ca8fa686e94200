// Package series cleans raw bars from a data source into a validated Series.
package series

import (
	"fmt"
	"math"
	"sort"

	"PriceLens/internal/model"
)

// Result is a validated series plus what was removed to produce it.
type Result struct {
	Series model.Series
	// Dropped counts malformed rows: non-finite prices, negative volume or a missing date.
	Dropped int
	// Duplicates counts rows removed because an earlier row had the same date.
	Duplicates int
}

// Validate drops malformed rows, sorts by date and removes duplicate dates keeping the first
// occurrence. It returns model.ErrEmptySeries when nothing usable remains.
// The input slice is not modified.
func Validate(raw []model.Bar) (Result, error) {
	if len(raw) == 0 {
		return Result{}, fmt.Errorf("%w: no rows returned", model.ErrEmptySeries)
	}

	var res Result
	clean := make(model.Series, 0, len(raw))
	for _, b := range raw {
		if !wellFormed(b) {
			res.Dropped++
			continue
		}
		b.Date = model.DateOf(b.Date.Time)
		clean = append(clean, b)
	}
	if len(clean) == 0 {
		return res, fmt.Errorf("%w: all %d rows malformed", model.ErrEmptySeries, res.Dropped)
	}

	// Stable so the first occurrence of a duplicated date stays ahead of later ones.
	sort.SliceStable(clean, func(i, j int) bool { return clean[i].Date.Before(clean[j].Date) })

	out := clean[:1]
	for _, b := range clean[1:] {
		if b.Date.Equal(out[len(out)-1].Date) {
			res.Duplicates++
			continue
		}
		out = append(out, b)
	}
	res.Series = out
	return res, nil
}

func wellFormed(b model.Bar) bool {
	if b.Date.IsZero() || b.Volume < 0 {
		return false
	}
	for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return false
		}
	}
	return true
}
