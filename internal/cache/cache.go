// Package cache stores raw fetched bars keyed by symbol and range.
package cache

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"PriceLens/internal/model"
)

// Store is a bar cache. Get reports ok=false on a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]model.Bar, bool, error)
	Set(ctx context.Context, key string, bars []model.Bar, ttl time.Duration) error
	Close() error
}

// DefaultPrefix namespaces bar keys when no prefix is configured.
const DefaultPrefix = "pricelens:bars"

// Key builds the cache key for a symbol and range.
func Key(prefix, source, symbol string, r model.DateRange) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + ":" + source + ":" + symbol + ":" + r.Start.String() + ":" + r.End.String()
}

// wireBar is the stored form of a bar. Raw bars may hold NaN prices, which
// encoding/json rejects, so non-finite values are stored as null.
type wireBar struct {
	Date   model.Date `json:"date"`
	Open   *float64   `json:"open"`
	High   *float64   `json:"high"`
	Low    *float64   `json:"low"`
	Close  *float64   `json:"close"`
	Volume int64      `json:"volume"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func encodeBars(bars []model.Bar) ([]byte, error) {
	wire := make([]wireBar, len(bars))
	for i, b := range bars {
		wire[i] = wireBar{
			Date:   b.Date,
			Open:   finite(b.Open),
			High:   finite(b.High),
			Low:    finite(b.Low),
			Close:  finite(b.Close),
			Volume: b.Volume,
		}
	}
	return json.Marshal(wire)
}

func decodeBars(data []byte) ([]model.Bar, error) {
	var wire []wireBar
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	bars := make([]model.Bar, len(wire))
	for i, w := range wire {
		bars[i] = model.Bar{
			Date:   w.Date,
			Open:   orNaN(w.Open),
			High:   orNaN(w.High),
			Low:    orNaN(w.Low),
			Close:  orNaN(w.Close),
			Volume: w.Volume,
		}
	}
	return bars, nil
}
