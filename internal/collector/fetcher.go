package collector

import (
	"context"

	"PriceLens/internal/model"
)

// Source fetches raw daily bars for a symbol over an inclusive date range.
//
// A valid symbol with no trading days in range yields an empty slice and a nil error.
// Failures to reach the provider or resolve the symbol wrap model.ErrRetrievalFailure.
// Returned bars are unvalidated and may contain NaN prices or negative volumes for null cells.
type Source interface {
	FetchDaily(ctx context.Context, symbol string, r model.DateRange) ([]model.Bar, error)
	Name() string
}
