package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/user"
)

var userCols = []string{"user_id", "email", "name", "hash", "created_at", "updated_at"}

func TestUserRepository_GetUserByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	q := regexp.QuoteMeta("SELECT user_id, email, name, hash, created_at, updated_at FROM users WHERE user_id = $1")

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(q).WithArgs("user_1").
			WillReturnRows(sqlmock.NewRows(userCols).AddRow("user_1", "ann@example.com", "Ann", nil, now, now))

		usr, err := repo.GetUserByID(context.Background(), "user_1")
		require.NoError(t, err)
		assert.Equal(t, user.User{UserID: "user_1", Email: "ann@example.com", Name: "Ann", CreatedAt: now, UpdatedAt: now}, usr)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(q).WithArgs("nobody").WillReturnRows(sqlmock.NewRows(userCols))

		_, err := repo.GetUserByID(context.Background(), "nobody")
		assert.Equal(t, user.ErrNotFound, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_QueryUsers(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM users WHERE .+ ORDER BY name, user_id LIMIT \$2 OFFSET \$3`).
		WithArgs("%ann%", 10, 10).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("user_1", "ann@example.com", "Ann", "$argon2id$", now, now))

	users, err := repo.QueryUsers(context.Background(), user.QueryFilter{Search: "ann"}, core.Pagination{Page: 2, Limit: 10})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "$argon2id$", users[0].PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpsertUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now().UTC()
	usr := user.User{UserID: "user_1", Email: "ann@example.com", Name: "Ann", CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery(`INSERT INTO users .+ ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs("user_1", "ann@example.com", "Ann", nil, now, now).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("user_1", "ann@example.com", "Ann", nil, now.Add(-time.Hour), now))

	saved, err := repo.UpsertUser(context.Background(), usr)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-time.Hour), saved.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
