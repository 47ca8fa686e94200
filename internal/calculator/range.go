package calculator

import (
	"errors"
	"math"

	"PriceLens/internal/model"
)

// CloseRange scans the bars and returns the highest and lowest close.
func CloseRange(bars []model.Bar) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := range bars {
		if bars[i].Close > high {
			high = bars[i].Close
		}
		if bars[i].Close < low {
			low = bars[i].Close
		}
	}
	return high, low, nil
}

// ChangePercent returns the percentage move from first to last.
func ChangePercent(first, last float64) (float64, error) {
	if first == 0 {
		return 0, errors.New("first value must be non-zero")
	}
	return (last - first) / first * 100, nil
}
