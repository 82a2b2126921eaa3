package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PriceSight/internal/domain/models"
	domrepo "PriceSight/internal/domain/repository"
	pkgch "PriceSight/pkg/clickhouse"
	applogger "PriceSight/pkg/logger"
	"PriceSight/pkg/util"
)

// insertChunk caps rows per INSERT statement.
const insertChunk = 2000

// ClickHouseHistory stores and serves daily closes from ClickHouse.
type ClickHouseHistory struct {
	db    *sql.DB
	table string
	now   func() time.Time
	l     *applogger.Logger
}

// NewClickHouseHistory creates a history store over table (database-qualified).
func NewClickHouseHistory(ch *pkgch.Client, table string) *ClickHouseHistory {
	return &ClickHouseHistory{db: ch.DB(), table: table, now: time.Now, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *ClickHouseHistory) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// HistorySchema returns the DDL for the daily_closes table. Re-ingested days
// replace older rows on merge; reads pick the latest version with argMax.
func HistorySchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    symbol LowCardinality(String),
    day Date,
    close Float64,
    updated_at DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY (symbol, day)`, database, table),
	}
}

// Fetch returns closes for symbol from the start of period, ascending.
func (s *ClickHouseHistory) Fetch(ctx context.Context, symbol string, period domrepo.Period) (models.PriceSeries, error) {
	symbol = util.NormalizeTicker(symbol)
	if symbol == "" {
		return models.PriceSeries{}, models.NewError(models.KindInvalidInput, "Ticker is required", nil)
	}
	if !domrepo.IsValidPeriod(period) {
		return models.PriceSeries{}, models.NewError(models.KindInvalidInput, fmt.Sprintf("unsupported period %q", period), nil)
	}

	from := period.Start(s.now().UTC())
	q := fmt.Sprintf(`
        SELECT day, argMax(close, updated_at) AS close
        FROM %s
        WHERE symbol = ? AND day >= ?
        GROUP BY day
        ORDER BY day ASC
    `, s.table)

	rows, err := s.db.QueryContext(ctx, q, symbol, from)
	if err != nil {
		s.l.Error("clickhouse history query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return models.PriceSeries{}, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	series := models.PriceSeries{Symbol: symbol, Points: make([]models.PricePoint, 0, 2600)}
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return models.PriceSeries{}, fmt.Errorf("scan history: %w", err)
		}
		p.Date = p.Date.UTC()
		series.Points = append(series.Points, p)
	}
	if err := rows.Err(); err != nil {
		return models.PriceSeries{}, fmt.Errorf("rows: %w", err)
	}
	return series, nil
}

// StoreBatch inserts points for symbol using multi-row VALUES in chunks.
func (s *ClickHouseHistory) StoreBatch(ctx context.Context, symbol string, points []models.PricePoint) error {
	symbol = util.NormalizeTicker(symbol)
	if symbol == "" {
		return fmt.Errorf("store history: empty symbol")
	}
	for start := 0; start < len(points); start += insertChunk {
		end := start + insertChunk
		if end > len(points) {
			end = len(points)
		}
		q, args := insertQuery(s.table, symbol, points[start:end])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse history insert error",
				applogger.String("table", s.table),
				applogger.String("symbol", symbol),
				applogger.Int("rows", len(args)/3),
				applogger.Error(err),
			)
			return fmt.Errorf("insert history: %w", err)
		}
	}
	return nil
}

func insertQuery(table, symbol string, points []models.PricePoint) (string, []interface{}) {
	values := make([]string, 0, len(points))
	args := make([]interface{}, 0, len(points)*3)
	for _, p := range points {
		if p.Date.IsZero() || p.Close <= 0 {
			continue
		}
		values = append(values, "(?, ?, ?)")
		args = append(args, symbol, p.Date.UTC(), p.Close)
	}
	if len(values) == 0 {
		return "", nil
	}
	return fmt.Sprintf("INSERT INTO %s (symbol, day, close) VALUES %s", table, strings.Join(values, ",")), args
}

// Health pings the database.
func (s *ClickHouseHistory) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
