package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceSight/internal/domain/models"
	"PriceSight/internal/domain/repository"
)

func day(d int) int64 {
	// 14:30 UTC, New York open
	return time.Date(2024, 1, d, 14, 30, 0, 0, time.UTC).Unix()
}

type seen struct {
	reqURL *url.URL
	header http.Header
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *seen) {
	t.Helper()
	last := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last.reqURL = r.URL
		last.header = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, last
}

func TestFetch(t *testing.T) {
	body := fmt.Sprintf(`{"chart":{"result":[{"meta":{"symbol":"AAPL","gmtoffset":-18000},
		"timestamp":[%d,%d,%d,%d,%d],
		"indicators":{"quote":[{"close":[101.5,null,100.25,103,104]}]}}],"error":null}}`,
		day(4), day(3), day(2), day(5), day(5)+3600)
	srv, req := newServer(t, http.StatusOK, body)

	c, err := New(WithBaseURL(srv.URL), WithUserAgent("pricesight-test"))
	require.NoError(t, err)

	series, err := c.Fetch(context.Background(), "aapl", repository.Period10y)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/aapl", req.reqURL.Path)
	assert.Equal(t, "10y", req.reqURL.Query().Get("range"))
	assert.Equal(t, "1d", req.reqURL.Query().Get("interval"))
	assert.Equal(t, "pricesight-test", req.header.Get("User-Agent"))

	assert.Equal(t, "AAPL", series.Symbol)
	require.NoError(t, series.Validate())
	assert.Equal(t, []float64{100.25, 101.5, 104}, series.Closes())
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), series.Points[0].Date)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), series.LastDate())
}

func TestFetchUnknownSymbol(t *testing.T) {
	srv, _ := newServer(t, http.StatusNotFound,
		`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)

	c, err := New(WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "NOPE", repository.Period1y)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol may be delisted")
}

func TestFetchEmptyResult(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"chart":{"result":[],"error":null}}`)

	c, err := New(WithBaseURL(srv.URL))
	require.NoError(t, err)

	series, err := c.Fetch(context.Background(), "AAPL", repository.Period1y)
	require.NoError(t, err)
	assert.Zero(t, series.Len())
}

func TestFetchServerError(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadGateway, `upstream down`)

	c, err := New(WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "AAPL", repository.Period1y)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestFetchInvalidInput(t *testing.T) {
	c, err := New(WithBaseURL("http://127.0.0.1:1"))
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "  ", repository.Period1y)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = c.Fetch(context.Background(), "AAPL", repository.Period("7d"))
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestNewBadProxy(t *testing.T) {
	_, err := New(WithProxy("://bad"))
	assert.Error(t, err)
}
