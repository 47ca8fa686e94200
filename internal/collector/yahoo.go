package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"PriceLens/internal/model"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooConfig configures the Yahoo Finance chart client.
type YahooConfig struct {
	BaseURL      string
	Proxy        string
	Timeout      time.Duration
	MaxRetries   int
	RetryInitial time.Duration
	RatePerSec   float64
	Burst        int
}

// YahooSource implements Source using the Yahoo Finance chart API.
type YahooSource struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps index shorthands to Yahoo tickers

	limiter      *rate.Limiter
	maxRetries   uint64
	retryInitial time.Duration
	logger       *zap.Logger
}

var _ Source = (*YahooSource)(nil)

// NewYahooSource creates a Yahoo Finance source with optional proxy support.
func NewYahooSource(cfg YahooConfig, logger *zap.Logger) *YahooSource {
	transport := &http.Transport{}
	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultYahooBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = 300 * time.Millisecond
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &YahooSource{
		BaseURL: cfg.BaseURL,
		Client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
		limiter:      rate.NewLimiter(limit, cfg.Burst),
		maxRetries:   uint64(cfg.MaxRetries),
		retryInitial: cfg.RetryInitial,
		logger:       logger,
	}
}

func (f *YahooSource) Name() string { return "yahoo" }

func (f *YahooSource) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// statusError is a non-200 response from Yahoo.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d, body: %s", e.code, e.body)
}

func (e *statusError) transient() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// FetchDaily downloads daily bars whose exchange-local date falls within r.
func (f *YahooSource) FetchDaily(ctx context.Context, symbol string, r model.DateRange) ([]model.Bar, error) {
	// Widen by a day on each side; exchange-local dates are filtered back to r below.
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("events", "history")
	params.Set("period1", strconv.FormatInt(r.Start.AddDays(-1).Unix(), 10))
	params.Set("period2", strconv.FormatInt(r.End.AddDays(2).Unix(), 10))
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), params.Encode())

	var body []byte
	op := func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		b, err := f.get(ctx, u)
		if err != nil {
			var se *statusError
			if errors.As(err, &se) && !se.transient() {
				return backoff.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = f.retryInitial
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, f.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		f.logger.Warn("yahoo fetch failed, retrying",
			zap.String("symbol", symbol),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("%w: yahoo fetch %s: %w", model.ErrRetrievalFailure, symbol, err)
	}

	bars, err := parseChart(body, r)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo %s: %w", model.ErrRetrievalFailure, symbol, err)
	}
	return bars, nil
}

func (f *YahooSource) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: chartErrorDescription(body)}
	}
	return body, nil
}

func chartErrorDescription(body []byte) string {
	if d := gjson.GetBytes(body, "chart.error.description"); d.Exists() {
		return d.String()
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

// parseChart converts a chart response into bars. Null cells become NaN prices or volume -1.
func parseChart(body []byte, r model.DateRange) ([]model.Bar, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("malformed response body")
	}
	chart := gjson.GetBytes(body, "chart")
	if e := chart.Get("error"); e.Exists() && e.Type != gjson.Null {
		return nil, fmt.Errorf("api error: %s", e.Get("description").String())
	}
	result := chart.Get("result.0")
	if !result.Exists() {
		return nil, errors.New("no result in response")
	}

	offset := result.Get("meta.gmtoffset").Int()
	timestamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	bars := make([]model.Bar, 0, len(timestamps))
	for i, ts := range timestamps {
		date := model.DateOf(time.Unix(ts.Int()+offset, 0).UTC())
		if date.Before(r.Start) || date.After(r.End) {
			continue
		}
		bars = append(bars, model.Bar{
			Date:   date,
			Open:   price(opens, i),
			High:   price(highs, i),
			Low:    price(lows, i),
			Close:  price(closes, i),
			Volume: volume(volumes, i),
		})
	}
	return bars, nil
}

func price(values []gjson.Result, i int) float64 {
	if i >= len(values) || values[i].Type != gjson.Number {
		return math.NaN()
	}
	return values[i].Float()
}

func volume(values []gjson.Result, i int) int64 {
	if i >= len(values) || values[i].Type != gjson.Number {
		return -1
	}
	return values[i].Int()
}
