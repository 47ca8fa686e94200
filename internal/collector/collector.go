package collector

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"PriceLens/internal/model"
)

// MockSource returns controllable fixed data for development and testing.
type MockSource struct {
	Price float64
	// Bars, when non-nil, is returned verbatim instead of generated data.
	Bars  []model.Bar
	Err   error
	Delay time.Duration

	mu    sync.Mutex
	calls int
}

var _ Source = (*MockSource)(nil)

func (m *MockSource) Name() string { return "mock" }

// Calls reports how many times FetchDaily has been invoked.
func (m *MockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockSource) FetchDaily(ctx context.Context, symbol string, r model.DateRange) ([]model.Bar, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: mock %s: %w", model.ErrRetrievalFailure, symbol, ctx.Err())
		case <-time.After(m.Delay):
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Bars != nil {
		return append([]model.Bar{}, m.Bars...), nil
	}
	price := m.Price
	if price <= 0 {
		price = 100
	}
	return generateMockBars(price, r), nil
}

// generateMockBars produces one deterministic bar per weekday in r.
func generateMockBars(basePrice float64, r model.DateRange) []model.Bar {
	var bars []model.Bar
	start := r.Start.Ordinal()
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		i := float64(d.Ordinal() - start)
		p := basePrice * (1 + i*0.001 + 0.01*math.Sin(i/7))
		bars = append(bars, model.Bar{
			Date:   d,
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000 + int64(i)*1000,
		})
	}
	if bars == nil {
		bars = []model.Bar{}
	}
	return bars
}
