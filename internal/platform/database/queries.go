package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
)

// ErrSleepUnsupported is returned by Sleep when the database was not
// declared as supporting a native sleep statement.
var ErrSleepUnsupported = errors.New("database sleep statement not supported")

// QueryExecutor issues read queries against the users table.
type QueryExecutor struct {
	db    *DB
	table string
}

// NewQueryExecutor creates a QueryExecutor reading table.
func NewQueryExecutor(db *DB, table string) *QueryExecutor {
	return &QueryExecutor{db: db, table: table}
}

type aggregateRow struct {
	Total int64         `db:"total"`
	MaxID sql.NullInt64 `db:"max_id"`
}

type userRow struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
}

func (q *QueryExecutor) from() *goqu.SelectDataset {
	return q.db.Goqu.From(goqu.T(q.table)).Prepared(true)
}

// FirstAfter fetches the first row whose id is greater than id.
func (q *QueryExecutor) FirstAfter(ctx context.Context, id int64) error {
	var found int64
	_, err := q.from().
		Select(goqu.C("id")).
		Where(goqu.C("id").Gt(id)).
		Order(goqu.C("id").Asc()).
		Limit(1).
		ScanValContext(ctx, &found)
	return MapError(err)
}

// CountAndMax runs a COUNT(*), MAX(id) aggregate.
func (q *QueryExecutor) CountAndMax(ctx context.Context) error {
	_, err := q.aggregate(ctx)
	return err
}

func (q *QueryExecutor) aggregate(ctx context.Context) (aggregateRow, error) {
	var row aggregateRow
	_, err := q.from().
		Select(goqu.COUNT(goqu.Star()).As("total"), goqu.MAX("id").As("max_id")).
		ScanStructContext(ctx, &row)
	return row, MapError(err)
}

// Count returns the number of rows.
func (q *QueryExecutor) Count(ctx context.Context) (int64, error) {
	n, err := q.from().CountContext(ctx)
	return n, MapError(err)
}

// FindByID looks up one row by primary key.
func (q *QueryExecutor) FindByID(ctx context.Context, id int64) (bool, error) {
	var row userRow
	found, err := q.from().Where(goqu.C("id").Eq(id)).ScanStructContext(ctx, &row)
	return found, MapError(err)
}

// SelectLimited reads at most limit rows and returns how many came back.
func (q *QueryExecutor) SelectLimited(ctx context.Context, limit uint) (int, error) {
	var rows []userRow
	err := q.from().Order(goqu.C("id").Asc()).Limit(limit).ScanStructsContext(ctx, &rows)
	return len(rows), MapError(err)
}

// Sleep runs the database's native sleep statement for d.
func (q *QueryExecutor) Sleep(ctx context.Context, d time.Duration) error {
	if !q.SupportsSleep() {
		return ErrSleepUnsupported
	}

	_, err := q.db.Goqu.Select(goqu.Func("pg_sleep", d.Seconds())).
		Prepared(true).
		Executor().
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("sleep statement failed: %w", MapError(err))
	}
	return nil
}

// SupportsSleep reports whether native sleep was enabled for a database
// that has a sleep statement.
func (q *QueryExecutor) SupportsSleep() bool {
	return q.db.nativeSleep && q.db.driver == DriverPostgres
}
