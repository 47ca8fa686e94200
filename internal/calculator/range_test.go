package calculator

import (
	"testing"

	"PriceLens/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseRange(t *testing.T) {
	bars := []model.Bar{{Close: 12}, {Close: 9.5}, {Close: 15}, {Close: 11}}
	high, low, err := CloseRange(bars)
	require.NoError(t, err)
	assert.Equal(t, 15.0, high)
	assert.Equal(t, 9.5, low)

	_, _, err = CloseRange(nil)
	assert.Error(t, err)
}

func TestChangePercent(t *testing.T) {
	pct, err := ChangePercent(50, 55)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, pct, 1e-12)

	pct, err = ChangePercent(50, 40)
	require.NoError(t, err)
	assert.InDelta(t, -20.0, pct, 1e-12)

	_, err = ChangePercent(0, 10)
	assert.Error(t, err)
}
