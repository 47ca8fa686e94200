package model

import "time"

// Status is the outcome of one pipeline invocation.
type Status string

const (
	StatusReady  Status = "READY"
	StatusEmpty  Status = "EMPTY"
	StatusFailed Status = "FAILED"
)

// CandlePoint is one candlestick on the trend view.
type CandlePoint struct {
	Date  Date    `json:"date"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// CandlestickView is the OHLC trend view, one point per bar.
type CandlestickView struct {
	Title  string        `json:"title"`
	Points []CandlePoint `json:"points"`
}

// VolumePoint is one bar of the volume view.
type VolumePoint struct {
	Date   Date  `json:"date"`
	Volume int64 `json:"volume"`
}

// VolumeView is the per-day volume view.
type VolumeView struct {
	Title  string        `json:"title"`
	Points []VolumePoint `json:"points"`
}

// TrendPoint pairs a day's ordinal (days since the Unix epoch) with its close.
type TrendPoint struct {
	Date    Date    `json:"date"`
	Ordinal float64 `json:"x"`
	Close   float64 `json:"y"`
}

// RegressionLine is an OLS fit of close against the day ordinal.
// Slope is in price units per day.
type RegressionLine struct {
	Slope       float64 `json:"slope"`
	Intercept   float64 `json:"intercept"`
	R2          float64 `json:"r2"`
	DomainStart Date    `json:"domain_start"`
	DomainEnd   Date    `json:"domain_end"`
	StartValue  float64 `json:"start_value"`
	EndValue    float64 `json:"end_value"`
}

// At evaluates the line at the given day.
func (l RegressionLine) At(d Date) float64 {
	return l.Intercept + l.Slope*float64(d.Ordinal())
}

// CloseSummary describes the closes behind a scatter view.
type CloseSummary struct {
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	First     float64 `json:"first"`
	Last      float64 `json:"last"`
	ChangePct float64 `json:"change_pct"`
}

// AnnotatedScatterView is the closing-price scatter with its trend line.
// Line is nil when no line can be fitted.
type AnnotatedScatterView struct {
	Title   string          `json:"title"`
	YLabel  string          `json:"y_label"`
	Points  []TrendPoint    `json:"points"`
	Line    *RegressionLine `json:"line"`
	Summary *CloseSummary   `json:"summary"`
}

// ViewError describes why a triple carries no data.
type ViewError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Views is the triple emitted by one pipeline invocation.
type Views struct {
	RunID       string               `json:"run_id"`
	Symbol      string               `json:"symbol"`
	Range       DateRange            `json:"range"`
	Status      Status               `json:"status"`
	Error       *ViewError           `json:"error,omitempty"`
	Candlestick CandlestickView      `json:"candlestick"`
	Volume      VolumeView           `json:"volume"`
	Scatter     AnnotatedScatterView `json:"scatter"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// Titles returns the view titles for a symbol.
func Titles(symbol string) (trend, volume, scatter string) {
	return symbol + " Trends", symbol + " Volume", symbol + " Closing Price"
}

// ClosingPriceLabel is the y-axis label of the scatter view.
const ClosingPriceLabel = "Closing Price"

// EmptyViews returns a well-formed triple with no points.
func EmptyViews(symbol string, r DateRange) Views {
	trend, volume, scatter := Titles(symbol)
	return Views{
		Symbol:      symbol,
		Range:       r,
		Status:      StatusEmpty,
		Candlestick: CandlestickView{Title: trend, Points: []CandlePoint{}},
		Volume:      VolumeView{Title: volume, Points: []VolumePoint{}},
		Scatter:     AnnotatedScatterView{Title: scatter, YLabel: ClosingPriceLabel, Points: []TrendPoint{}},
	}
}

// FailedViews returns an empty triple carrying the failure.
func FailedViews(symbol string, r DateRange, err error) Views {
	v := EmptyViews(symbol, r)
	kind := KindOf(err)
	v.Status = StatusFailed
	if kind == KindEmptySeries {
		v.Status = StatusEmpty
	}
	v.Error = &ViewError{Kind: kind, Message: err.Error()}
	return v
}
