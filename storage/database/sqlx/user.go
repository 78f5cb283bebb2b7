package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/user"
)

const userColumns = "user_id, email, name, hash, created_at, updated_at"

type userRow struct {
	UserID    string      `db:"user_id"`
	Email     string      `db:"email"`
	Name      string      `db:"name"`
	Hash      null.String `db:"hash"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r userRow) unwrap() user.User {
	return user.User{
		UserID:       r.UserID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.Hash.String,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type userRepository struct {
	baseRepository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DBExecutor) user.Repository {
	return &userRepository{baseRepository{db: db}}
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, page core.Pagination, exec ...core.DBExecutor) ([]user.User, error) {
	q := "SELECT " + userColumns + " FROM users" +
		" WHERE ($1 = '' OR name ILIKE $1 ESCAPE '\\' OR email ILIKE $1 ESCAPE '\\')" +
		" ORDER BY name, user_id"
	q, args := paginate(q, []interface{}{containsPattern(filter.Search)}, page)

	var rows []userRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.unwrap())
	}
	return users, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error) {
	var r userRow
	q := "SELECT " + userColumns + " FROM users WHERE user_id = $1"
	if err := repo.getExec(exec).GetContext(ctx, &r, q, id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return r.unwrap(), nil
}

func (repo userRepository) UpsertUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	q := `INSERT INTO users (user_id, email, name, hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			hash = COALESCE(EXCLUDED.hash, users.hash),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns

	var r userRow
	err := repo.getExec(exec).GetContext(ctx, &r, q,
		usr.UserID, usr.Email, usr.Name,
		null.NewString(usr.PasswordHash, usr.PasswordHash != ""),
		usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(),
	)
	if err != nil {
		return user.User{}, trapConstraintErr(err, "upserting user")
	}
	return r.unwrap(), nil
}
