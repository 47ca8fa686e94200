package series

import (
	"math"
	"testing"
	"time"

	"PriceLens/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(day int, c float64, v int64) model.Bar {
	return model.Bar{
		Date:   model.NewDate(2024, time.January, day),
		Open:   c - 1,
		High:   c + 1,
		Low:    c - 2,
		Close:  c,
		Volume: v,
	}
}

func TestValidate_Empty(t *testing.T) {
	_, err := Validate(nil)
	assert.ErrorIs(t, err, model.ErrEmptySeries)

	_, err = Validate([]model.Bar{})
	assert.ErrorIs(t, err, model.ErrEmptySeries)
}

func TestValidate_DropsMalformedRows(t *testing.T) {
	nan := bar(3, 10, 100)
	nan.High = math.NaN()
	inf := bar(4, 10, 100)
	inf.Close = math.Inf(1)
	negVol := bar(5, 10, -1)
	noDate := bar(6, 10, 100)
	noDate.Date = model.Date{}

	res, err := Validate([]model.Bar{bar(2, 10, 100), nan, inf, negVol, noDate, bar(8, 11, 0)})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Dropped)
	require.Len(t, res.Series, 2)
	assert.Equal(t, "2024-01-02", res.Series[0].Date.String())
	assert.Equal(t, "2024-01-08", res.Series[1].Date.String())
}

func TestValidate_AllMalformedIsEmptySeries(t *testing.T) {
	a := bar(2, 10, 100)
	a.Open = math.NaN()
	b := bar(3, 10, -5)

	res, err := Validate([]model.Bar{a, b})
	assert.ErrorIs(t, err, model.ErrEmptySeries)
	assert.Equal(t, 2, res.Dropped)
}

func TestValidate_SortsAndKeepsFirstDuplicate(t *testing.T) {
	first := bar(3, 20, 300)
	dup := bar(3, 99, 999)
	raw := []model.Bar{bar(5, 50, 500), first, bar(2, 10, 100), dup}
	orig := append([]model.Bar(nil), raw...)

	res, err := Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Duplicates)
	require.Len(t, res.Series, 3)
	assert.Equal(t, 10.0, res.Series[0].Close)
	assert.Equal(t, 20.0, res.Series[1].Close, "first occurrence of a duplicate date must win")
	assert.Equal(t, 50.0, res.Series[2].Close)

	for i := 1; i < len(res.Series); i++ {
		assert.True(t, res.Series[i-1].Date.Before(res.Series[i].Date))
	}
	assert.Equal(t, orig, raw, "input must not be mutated")
}

func TestValidate_NormalisesTimeOfDay(t *testing.T) {
	a := bar(2, 10, 1)
	a.Date = model.Date{Time: time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)}
	b := bar(2, 11, 1)
	b.Date = model.Date{Time: time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)}

	res, err := Validate([]model.Bar{a, b})
	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, model.NewDate(2024, time.January, 2), res.Series[0].Date)
}
