// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sqlsource turns a PostgreSQL query into CSV batch content. Columns
// are emitted under their result names, so queries should alias them to the
// target object's field API names.
package sqlsource

import (
	"context"
	"database/sql/driver"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	sferrors "sfkit/cli/internal/errors"
)

// NullValue is the bulk CSV marker that clears a field.
const NullValue = "#N/A"

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Source writes query results as CSV.
type Source struct {
	q Querier
	// Null is written for SQL NULL. Empty leaves the field untouched on
	// update; NullValue clears it.
	Null   string
	logger *slog.Logger
}

func New(q Querier, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{q: q, logger: logger}
}

// Open validates dsn and connects a pool. The caller closes it.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	d, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, d.String())
	if err != nil {
		return nil, sferrors.Wrap(sferrors.Config, "sqlsource: connect "+d.Redacted(), err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, sferrors.Wrap(sferrors.Transport, "sqlsource: ping "+d.Redacted(), err)
	}
	return pool, nil
}

// WriteCSV runs query and streams a header row plus one record per result
// row into w. It returns the number of data rows written.
func (s *Source) WriteCSV(ctx context.Context, w io.Writer, query string, args ...any) (int64, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlsource: query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	if len(fields) == 0 {
		return 0, sferrors.New(sferrors.Validation, "sqlsource: query returned no columns")
	}
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	var n int64
	record := make([]string, len(fields))
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return n, sferrors.Wrap(sferrors.Canceled, "sqlsource", err)
		}
		values, err := rows.Values()
		if err != nil {
			return n, fmt.Errorf("sqlsource: row %d: %w", n+1, err)
		}
		for i, v := range values {
			record[i] = s.format(v, fields[i].DataTypeOID)
		}
		if err := cw.Write(record); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("sqlsource: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, err
	}
	s.logger.Debug("sql batch source written", "columns", len(header), "rows", n)
	return n, nil
}

func (s *Source) format(v any, oid uint32) string {
	switch v := v.(type) {
	case nil:
		return s.Null
	case string:
		return v
	case []byte:
		return string(v)
	case [16]byte:
		return uuid.UUID(v).String()
	case bool:
		return strconv.FormatBool(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		if oid == pgtype.DateOID {
			return v.Format(time.DateOnly)
		}
		return v.UTC().Format("2006-01-02T15:04:05.000Z")
	case driver.Valuer:
		dv, err := v.Value()
		if err != nil {
			return s.Null
		}
		return s.format(dv, oid)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(v)
}
