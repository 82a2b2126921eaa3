package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"PriceSight/internal/domain/models"
	"PriceSight/internal/domain/repository"
	xhttp "PriceSight/pkg/http"
	"PriceSight/pkg/util"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client reads daily closes from the Yahoo Finance chart API.
type Client struct {
	baseURL string
	http    *xhttp.Client
}

// Option configures Client.
type Option func(*options)

type options struct {
	baseURL   string
	proxy     string
	userAgent string
	timeout   time.Duration
}

// WithBaseURL overrides the API host, mostly for tests.
func WithBaseURL(u string) Option { return func(o *options) { o.baseURL = u } }

// WithProxy routes requests through an HTTP proxy.
func WithProxy(u string) Option { return func(o *options) { o.proxy = u } }

// WithUserAgent sets the User-Agent header. Yahoo rejects requests without one.
func WithUserAgent(ua string) Option { return func(o *options) { o.userAgent = ua } }

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// New creates a Yahoo chart client.
func New(opts ...Option) (*Client, error) {
	o := options{
		baseURL:   defaultBaseURL,
		userAgent: "Mozilla/5.0",
		timeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := []xhttp.ClientOption{
		xhttp.WithTimeout(o.timeout),
		xhttp.WithUserAgent(o.userAgent),
	}
	if o.proxy != "" {
		u, err := url.Parse(o.proxy)
		if err != nil {
			return nil, fmt.Errorf("yahoo proxy: %w", err)
		}
		clientOpts = append(clientOpts, xhttp.WithTransport(&http.Transport{Proxy: http.ProxyURL(u)}))
	}

	return &Client{
		baseURL: strings.TrimRight(o.baseURL, "/"),
		http:    xhttp.NewClient(clientOpts...),
	}, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *chartError `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Fetch returns the daily close history of symbol over period.
func (c *Client) Fetch(ctx context.Context, symbol string, period repository.Period) (models.PriceSeries, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return models.PriceSeries{}, models.NewError(models.KindInvalidInput, "Ticker is required", nil)
	}
	if !repository.IsValidPeriod(period) {
		return models.PriceSeries{}, models.NewError(models.KindInvalidInput, fmt.Sprintf("unsupported period %q", period), nil)
	}

	var chart chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol),
		QueryParams: map[string][]string{
			"range":    {string(period)},
			"interval": {"1d"},
			"events":   {"history"},
		},
	}, &chart)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			var body chartResponse
			if json.Unmarshal(se.Body, &body) == nil && body.Chart.Error != nil {
				return models.PriceSeries{}, fmt.Errorf("yahoo %s: %s", symbol, body.Chart.Error.Description)
			}
			return models.PriceSeries{}, fmt.Errorf("yahoo %s: status %d", symbol, se.Code)
		}
		return models.PriceSeries{}, fmt.Errorf("yahoo %s: %w", symbol, err)
	}
	if chart.Chart.Error != nil {
		return models.PriceSeries{}, fmt.Errorf("yahoo %s: %s", symbol, chart.Chart.Error.Description)
	}

	return toSeries(symbol, chart)
}

func toSeries(symbol string, chart chartResponse) (models.PriceSeries, error) {
	series := models.PriceSeries{Symbol: util.NormalizeTicker(symbol)}
	if len(chart.Chart.Result) == 0 {
		return series, nil
	}
	res := chart.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return series, nil
	}
	closes := res.Indicators.Quote[0].Close
	if len(closes) != len(res.Timestamp) {
		return series, fmt.Errorf("yahoo %s: %d timestamps but %d closes", symbol, len(res.Timestamp), len(closes))
	}

	points := make([]models.PricePoint, 0, len(closes))
	for i, ts := range res.Timestamp {
		// null bars (halts, holidays)
		if closes[i] == nil {
			continue
		}
		points = append(points, models.PricePoint{
			Date:  util.TradingDay(ts, res.Meta.GMTOffset),
			Close: *closes[i],
		})
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	// Yahoo appends the live intraday bar, which can share a date with the
	// last settled one. The later bar wins.
	out := points[:0]
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	series.Points = out
	return series, nil
}
