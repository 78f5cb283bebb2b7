package core

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
	DBExecutor interface {
		sqlx.ExtContext
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}

	DB interface {
		DBExecutor

		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
		Close() error
	}

	// TxRunner runs fn inside a single unit of work: every repository call made with
	// the given executor is committed together or not at all.
	TxRunner interface {
		RunInTx(ctx context.Context, fn func(exec DBExecutor) error) error
	}
)

type sqlTxRunner struct {
	db DB
}

var _ TxRunner = (*sqlTxRunner)(nil)

func NewTxRunner(db DB) TxRunner {
	return &sqlTxRunner{db: db}
}

func (r sqlTxRunner) RunInTx(ctx context.Context, fn func(exec DBExecutor) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Wrapf(err, "rolling back: %v", rbErr)
			}
			return
		}
		err = errors.Wrap(tx.Commit(), "committing transaction")
	}()
	return fn(tx)
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// MaxPageLimit is the largest page size accepted.
const MaxPageLimit = 1000

// Pagination is a 1-based page window. A zero Limit means "no limit".
type Pagination struct {
	Page  int `query:"page"`
	Limit int `query:"limit"`
}

// Validate checks that the window is addressable.
func (p Pagination) Validate() error {
	var fldErrs []FieldError
	if p.Page < 0 {
		fldErrs = append(fldErrs, FieldError{Field: "page", Error: "must be a positive integer"})
	}
	switch {
	case p.Limit < 0:
		fldErrs = append(fldErrs, FieldError{Field: "limit", Error: "must be a positive integer"})
	case p.Limit > MaxPageLimit:
		fldErrs = append(fldErrs, FieldError{Field: "limit", Error: fmt.Sprintf("must be at most %d", MaxPageLimit)})
	case p.Limit > 0 && p.Page > 1 && p.Page-1 > math.MaxInt32/p.Limit:
		fldErrs = append(fldErrs, FieldError{Field: "page", Error: "is out of range"})
	}
	if fldErrs != nil {
		return NewValidationError(nil, fldErrs...)
	}
	return nil
}

// Offset returns the number of rows to skip; 0 when pagination is disabled.
// It saturates instead of overflowing.
func (p Pagination) Offset() int {
	if p.Limit <= 0 || p.Page <= 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// Window applies the pagination to a slice length n and returns the [start, end) bounds.
func (p Pagination) Window(n int) (int, int) {
	if p.Limit <= 0 {
		return 0, n
	}
	start := p.Offset()
	if start > n {
		start = n
	}
	end := n
	if p.Limit < n-start {
		end = start + p.Limit
	}
	return start, end
}
