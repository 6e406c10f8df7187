package engine

import (
	"database/sql"
	"fmt"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/logger"
	"github.com/quantforge/backtest/internal/types"
	"github.com/quantforge/backtest/pkg/errors"
)

// State is the run ledger: an in-memory DuckDB instance holding every
// terminal order and closed trade of a run, exportable to parquet for
// offline analysis.
type State struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	log     *logger.Logger
}

// NewState opens an in-memory DuckDB and creates the ledger tables.
func NewState(log *logger.Logger) (*State, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to open duckdb", err)
	}

	s := &State{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		log:     log,
	}

	if err := s.initialize(); err != nil {
		_ = db.Close()

		return nil, err
	}

	return s, nil
}

func (s *State) initialize() error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR PRIMARY KEY,
			side VARCHAR,
			kind VARCHAR,
			trigger_price DOUBLE,
			trail_percent DOUBLE,
			size BIGINT,
			status VARCHAR,
			reason VARCHAR,
			message VARCHAR,
			bracket_group VARCHAR,
			strategy_name VARCHAR,
			submitted_at TIMESTAMP,
			submitted_index INTEGER,
			fill_price DOUBLE,
			filled_at TIMESTAMP,
			fill_index INTEGER,
			fee DOUBLE
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			entry_index INTEGER,
			exit_index INTEGER,
			entry_time TIMESTAMP,
			exit_time TIMESTAMP,
			entry_price DOUBLE,
			exit_price DOUBLE,
			size BIGINT,
			gross_pnl DOUBLE,
			net_pnl DOUBLE,
			commission DOUBLE,
			duration_bars INTEGER,
			exit_reason VARCHAR,
			strategy_name VARCHAR
		)`,
	}

	for _, schema := range schemas {
		if _, err := s.db.Exec(schema); err != nil {
			return errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create ledger table", err)
		}
	}

	return nil
}

// RecordOrder inserts a terminal order into the ledger.
func (s *State) RecordOrder(order types.Order) error {
	query, args, err := s.builder.
		Insert("orders").
		Columns("id", "side", "kind", "trigger_price", "trail_percent", "size",
			"status", "reason", "message", "bracket_group", "strategy_name",
			"submitted_at", "submitted_index", "fill_price", "filled_at", "fill_index", "fee").
		Values(order.ID, string(order.Side), string(order.Kind),
			nullableFloat(order.TriggerPrice), nullableFloat(order.TrailPercent), order.Size,
			string(order.Status), order.Reason.Reason, order.Reason.Message,
			nullableString(order.BracketGroup), order.StrategyName,
			order.SubmittedAt, order.SubmittedIndex,
			order.FillPrice, order.FilledAt, order.FillIndex, order.Fee).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to build order insert", err)
	}

	if _, err := s.db.Exec(query, args...); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to insert order", err)
	}

	return nil
}

// RecordTrade inserts a closed round trip into the ledger.
func (s *State) RecordTrade(trade types.Trade) error {
	query, args, err := s.builder.
		Insert("trades").
		Columns("entry_index", "exit_index", "entry_time", "exit_time",
			"entry_price", "exit_price", "size", "gross_pnl", "net_pnl",
			"commission", "duration_bars", "exit_reason", "strategy_name").
		Values(trade.EntryIndex, trade.ExitIndex, trade.EntryTime, trade.ExitTime,
			trade.EntryPrice, trade.ExitPrice, trade.Size, trade.GrossPnL, trade.NetPnL,
			trade.Commission, trade.DurationBars, trade.ExitReason.Reason, trade.StrategyName).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to build trade insert", err)
	}

	if _, err := s.db.Exec(query, args...); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to insert trade", err)
	}

	return nil
}

// OrderCountByStatus returns how many recorded orders ended in each status.
func (s *State) OrderCountByStatus() (map[types.OrderStatus]int64, error) {
	query, args, err := s.builder.
		Select("status", "COUNT(*)").
		From("orders").
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build status count query", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count orders by status", err)
	}
	defer rows.Close()

	counts := make(map[types.OrderStatus]int64)

	for rows.Next() {
		var (
			status string
			count  int64
		)

		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan status count", err)
		}

		counts[types.OrderStatus(status)] = count
	}

	return counts, rows.Err()
}

// RealizedPnL returns the net PnL summed over all recorded trades.
func (s *State) RealizedPnL() (float64, error) {
	query, args, err := s.builder.
		Select("COALESCE(SUM(net_pnl), 0)").
		From("trades").
		ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build pnl query", err)
	}

	var pnl float64
	if err := s.db.QueryRow(query, args...).Scan(&pnl); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to sum realized pnl", err)
	}

	return pnl, nil
}

// WriteParquet exports both ledger tables as parquet files into dir.
func (s *State) WriteParquet(dir string) error {
	for _, table := range []string{"orders", "trades"} {
		path := filepath.Join(dir, table+".parquet")
		query := fmt.Sprintf("COPY (SELECT * FROM %s) TO '%s' (FORMAT PARQUET)", table, path)

		if _, err := s.db.Exec(query); err != nil {
			return errors.Wrapf(errors.ErrCodeBacktestWriteFailed, err, "failed to export %s to parquet", table)
		}
	}

	return nil
}

// Close releases the underlying database.
func (s *State) Close() error {
	return s.db.Close()
}

func nullableFloat(v optional.Option[float64]) any {
	if v.IsSome() {
		return v.Unwrap()
	}

	return nil
}

func nullableString(v optional.Option[string]) any {
	if v.IsSome() {
		return v.Unwrap()
	}

	return nil
}
