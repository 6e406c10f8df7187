// Package datasource loads market data files into validated bar series
// through DuckDB, which handles csv and parquet natively.
package datasource

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/quantforge/backtest/internal/logger"
	"github.com/quantforge/backtest/internal/series"
	"github.com/quantforge/backtest/internal/types"
	"github.com/quantforge/backtest/pkg/errors"
	"go.uber.org/zap"
)

// DuckDBSource reads OHLCV files into series. The input file must carry
// time, open, high, low, close, and volume columns; rows are ordered by
// timestamp on read and validated by the series constructor.
type DuckDBSource struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	log     *logger.Logger
}

// NewDuckDBSource opens an in-memory DuckDB for file reads.
func NewDuckDBSource(log *logger.Logger) (*DuckDBSource, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to open duckdb", err)
	}

	return &DuckDBSource{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		log:     log,
	}, nil
}

// ReadSeries loads the file at path into a validated series. The reader
// function is chosen from the file extension: .parquet files go through
// read_parquet, everything else through read_csv_auto.
func (d *DuckDBSource) ReadSeries(path string) (*series.Series, error) {
	relation := fmt.Sprintf("read_csv_auto('%s')", path)
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		relation = fmt.Sprintf("read_parquet('%s')", path)
	}

	query, args, err := d.builder.
		Select("time", "open", "high", "low", "close", "volume").
		From(relation).
		OrderBy("time").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build read query", err)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to read %s", path)
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		var (
			bar types.Bar
			ts  time.Time
		)

		if err := rows.Scan(&ts, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDataMalformed, "failed to scan bar row", err)
		}

		bar.Time = ts.UTC()
		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataMalformed, err, "failed while reading %s", path)
	}

	out, err := series.New(bars)
	if err != nil {
		return nil, err
	}

	d.log.Info("loaded series",
		zap.String("path", path),
		zap.Int("bars", out.Len()),
	)

	return out, nil
}

// Close releases the underlying database.
func (d *DuckDBSource) Close() error {
	return d.db.Close()
}
