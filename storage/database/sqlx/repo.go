package sqlxrepos

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/soma/core"
)

// postgres error codes
const (
	fkViolation     = "23503"
	uniqueViolation = "23505"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern returns an ILIKE pattern matching s literally anywhere.
func containsPattern(s string) string {
	if s == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(s) + "%"
}

type baseRepository struct {
	db core.DBExecutor
}

// getExec returns the executor given by the service, if any, or the repository one.
func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.db
}

// trapNoRowsErr maps "no rows" to notFound.
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func pqCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}

// trapConstraintErr maps unique and foreign key violations to core.ConflictError.
func trapConstraintErr(err error, msg string) error {
	switch pqCode(err) {
	case uniqueViolation:
		return core.NewConflictError(fmt.Sprintf("%s: already exists", msg))
	case fkViolation:
		return core.NewConflictError(fmt.Sprintf("%s: still referenced", msg))
	}
	return errors.Wrap(err, msg)
}

// checkAffected returns notFound when res affected no rows.
func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "getting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// paginate appends LIMIT/OFFSET placeholders to q, numbered after the n args already used.
func paginate(q string, args []interface{}, page core.Pagination) (string, []interface{}) {
	if page.Limit <= 0 {
		return q, args
	}
	n := len(args)
	return fmt.Sprintf("%s LIMIT $%d OFFSET $%d", q, n+1, n+2), append(args, page.Limit, page.Offset())
}
