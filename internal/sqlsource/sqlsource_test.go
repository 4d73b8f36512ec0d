// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlsource

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sferrors "sfkit/cli/internal/errors"
)

type fakeRows struct {
	fields []pgconn.FieldDescription
	data   [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) Scan(...any) error                            { return errors.New("not supported") }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) { return r.data[r.pos-1], nil }

type fakeQuerier struct {
	rows  *fakeRows
	err   error
	query string
	args  []any
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.query, q.args = sql, args
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func columns(names ...string) []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(names))
	for i, n := range names {
		out[i] = pgconn.FieldDescription{Name: n, DataTypeOID: pgtype.TextOID}
	}
	return out
}

func TestWriteCSV(t *testing.T) {
	id := uuid.MustParse("0b9f4c1e-1d2a-4e5f-9a6b-7c8d9e0f1a2b")
	fields := columns("Name", "Ext_Id__c", "Active__c", "Amount__c", "LastSeen__c", "Start__c", "Notes__c")
	fields[5].DataTypeOID = pgtype.DateOID
	rows := &fakeRows{
		fields: fields,
		data: [][]any{
			{"Acme, Inc.", [16]byte(id), true, 12.5, time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("X", 3600)), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), nil},
			{`Say "hi"`, []byte("raw"), false, int64(7), nil, nil, "multi\nline"},
		},
	}
	q := &fakeQuerier{rows: rows}

	var buf bytes.Buffer
	n, err := New(q, nil).WriteCSV(context.Background(), &buf, "select * from accounts where region = $1", "EU")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, rows.closed)
	assert.Equal(t, []any{"EU"}, q.args)

	want := "Name,Ext_Id__c,Active__c,Amount__c,LastSeen__c,Start__c,Notes__c\n" +
		`"Acme, Inc.",0b9f4c1e-1d2a-4e5f-9a6b-7c8d9e0f1a2b,true,12.5,2024-03-01T09:00:00.000Z,2024-03-01,` + "\n" +
		`"Say ""hi""",raw,false,7,,,"multi` + "\n" + `line"` + "\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_NullMarker(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{fields: columns("Id", "Phone"), data: [][]any{{"001", nil}}}}
	src := New(q, nil)
	src.Null = NullValue

	var buf bytes.Buffer
	_, err := src.WriteCSV(context.Background(), &buf, "select 1")
	require.NoError(t, err)
	assert.Equal(t, "Id,Phone\n001,#N/A\n", buf.String())
}

func TestWriteCSV_NumericValuer(t *testing.T) {
	var num pgtype.Numeric
	require.NoError(t, num.Scan("1234.50"))
	q := &fakeQuerier{rows: &fakeRows{fields: columns("Amount"), data: [][]any{{num}}}}

	var buf bytes.Buffer
	_, err := New(q, nil).WriteCSV(context.Background(), &buf, "select 1")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Amount\n1234.5")
}

func TestWriteCSV_Errors(t *testing.T) {
	t.Run("query fails", func(t *testing.T) {
		_, err := New(&fakeQuerier{err: errors.New("relation does not exist")}, nil).
			WriteCSV(context.Background(), &bytes.Buffer{}, "select")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "relation does not exist")
	})
	t.Run("no columns", func(t *testing.T) {
		_, err := New(&fakeQuerier{rows: &fakeRows{}}, nil).
			WriteCSV(context.Background(), &bytes.Buffer{}, "delete from x")
		assert.True(t, sferrors.IsKind(err, sferrors.Validation))
	})
	t.Run("iteration error", func(t *testing.T) {
		rows := &fakeRows{fields: columns("a"), data: [][]any{{"1"}}, err: errors.New("conn reset")}
		n, err := New(&fakeQuerier{rows: rows}, nil).WriteCSV(context.Background(), &bytes.Buffer{}, "select")
		require.Error(t, err)
		assert.Equal(t, int64(1), n)
	})
	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		rows := &fakeRows{fields: columns("a"), data: [][]any{{"1"}}}
		_, err := New(&fakeQuerier{rows: rows}, nil).WriteCSV(ctx, &bytes.Buffer{}, "select")
		assert.True(t, sferrors.IsKind(err, sferrors.Canceled))
		assert.True(t, rows.closed)
	})
}
