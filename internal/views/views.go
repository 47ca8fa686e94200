// Package views derives the three presentation views from a validated series.
// Every builder is a pure function of its input and returns non-nil point slices.
package views

import (
	"PriceLens/internal/calculator"
	"PriceLens/internal/model"
)

// BuildCandlestick maps each bar to one OHLC point.
func BuildCandlestick(symbol string, s model.Series) model.CandlestickView {
	title, _, _ := model.Titles(symbol)
	points := make([]model.CandlePoint, len(s))
	for i, b := range s {
		points[i] = model.CandlePoint{
			Date:  b.Date,
			Open:  b.Open,
			High:  b.High,
			Low:   b.Low,
			Close: b.Close,
		}
	}
	return model.CandlestickView{Title: title, Points: points}
}

// BuildVolume maps each bar to its day's volume.
func BuildVolume(symbol string, s model.Series) model.VolumeView {
	_, title, _ := model.Titles(symbol)
	points := make([]model.VolumePoint, len(s))
	for i, b := range s {
		points[i] = model.VolumePoint{Date: b.Date, Volume: b.Volume}
	}
	return model.VolumeView{Title: title, Points: points}
}

// BuildScatter plots close against the epoch-day ordinal and fits an OLS trend line.
// The line is nil for fewer than two points or when every point falls on the same day.
func BuildScatter(symbol string, s model.Series) model.AnnotatedScatterView {
	_, _, title := model.Titles(symbol)
	view := model.AnnotatedScatterView{
		Title:  title,
		YLabel: model.ClosingPriceLabel,
		Points: make([]model.TrendPoint, len(s)),
	}
	if len(s) == 0 {
		return view
	}

	xs := make([]float64, len(s))
	ys := make([]float64, len(s))
	minDate, maxDate := s[0].Date, s[0].Date
	for i, b := range s {
		x := float64(b.Date.Ordinal())
		xs[i], ys[i] = x, b.Close
		view.Points[i] = model.TrendPoint{Date: b.Date, Ordinal: x, Close: b.Close}
		if b.Date.Before(minDate) {
			minDate = b.Date
		}
		if b.Date.After(maxDate) {
			maxDate = b.Date
		}
	}

	view.Summary = summarize(s)

	fit, err := calculator.FitLine(xs, ys)
	if err != nil {
		// Fewer than two points or a degenerate x spread: no line.
		return view
	}
	line := model.RegressionLine{
		Slope:       fit.Slope,
		Intercept:   fit.Intercept,
		R2:          fit.R2,
		DomainStart: minDate,
		DomainEnd:   maxDate,
	}
	line.StartValue = line.At(minDate)
	line.EndValue = line.At(maxDate)
	view.Line = &line
	return view
}

func summarize(s model.Series) *model.CloseSummary {
	high, low, err := calculator.CloseRange(s)
	if err != nil {
		return nil
	}
	sum := &model.CloseSummary{
		Low:   low,
		High:  high,
		First: s[0].Close,
		Last:  s[len(s)-1].Close,
	}
	if pct, err := calculator.ChangePercent(sum.First, sum.Last); err == nil {
		sum.ChangePct = pct
	}
	return sum
}
