package calculator

import (
	"errors"
	"fmt"
)

// ErrDegenerate is returned when x has no variance, so no line is defined.
var ErrDegenerate = errors.New("x values have zero variance")

// Fit is an ordinary least squares line y = Intercept + Slope*x.
type Fit struct {
	Slope     float64
	Intercept float64
	// R2 is the coefficient of determination. It is 1 when y has no variance.
	R2 float64
}

// FitLine computes the OLS line through (xs[i], ys[i]).
// It uses the mean-centred two-pass form so large x magnitudes such as epoch-day ordinals
// do not lose precision.
func FitLine(xs, ys []float64) (Fit, error) {
	if len(xs) != len(ys) {
		return Fit{}, fmt.Errorf("length mismatch: %d x values, %d y values", len(xs), len(ys))
	}
	n := len(xs)
	if n < 2 {
		return Fit{}, errors.New("at least 2 points are required")
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxx, sxy, syy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return Fit{}, ErrDegenerate
	}

	slope := sxy / sxx
	fit := Fit{
		Slope:     slope,
		Intercept: meanY - slope*meanX,
		R2:        1,
	}
	if syy != 0 {
		fit.R2 = (sxy * sxy) / (sxx * syy)
	}
	return fit, nil
}

// SSE returns the sum of squared residuals of the line (slope, intercept) over the points.
func SSE(xs, ys []float64, slope, intercept float64) float64 {
	var sum float64
	for i := range xs {
		r := ys[i] - (intercept + slope*xs[i])
		sum += r * r
	}
	return sum
}
