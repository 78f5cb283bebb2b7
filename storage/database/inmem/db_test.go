package inmemdb

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/course"
	"github.com/trezcool/soma/core/enrollment"
)

func TestDB_RunInTx(t *testing.T) {
	db := Open()
	repo := NewCourseRepository(db)
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		err := db.RunInTx(ctx, func(exec core.DBExecutor) error {
			_, err := repo.CreateCourse(ctx, course.Course{CourseID: "c1", Title: "kept"}, exec)
			return err
		})
		require.NoError(t, err)
		_, err = repo.GetCourseByID(ctx, "c1")
		assert.NoError(t, err)
	})

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.RunInTx(ctx, func(exec core.DBExecutor) error {
			if _, err := repo.CreateCourse(ctx, course.Course{CourseID: "c2"}, exec); err != nil {
				return err
			}
			if err := repo.DeleteCourse(ctx, "c1", exec); err != nil {
				return err
			}
			return boom
		})
		assert.Equal(t, boom, err)

		_, err = repo.GetCourseByID(ctx, "c2")
		assert.Equal(t, course.ErrCourseNotFound, err)
		_, err = repo.GetCourseByID(ctx, "c1")
		assert.NoError(t, err)
	})

	t.Run("rollback on panic", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = db.RunInTx(ctx, func(exec core.DBExecutor) error {
				_, _ = repo.CreateCourse(ctx, course.Course{CourseID: "c3"}, exec)
				panic("boom")
			})
		})
		_, err := repo.GetCourseByID(ctx, "c3")
		assert.Equal(t, course.ErrCourseNotFound, err)
	})
}

func TestCourseRepository_DeletePurchasedCourse(t *testing.T) {
	db := Open()
	repo := NewCourseRepository(db)
	enrRepo := NewEnrollmentRepository(db)
	ctx := context.Background()

	_, err := repo.CreateCourse(ctx, course.Course{CourseID: "c1"})
	require.NoError(t, err)
	_, err = enrRepo.CreateTransaction(ctx, enrollment.Transaction{TransactionID: "pi_1", CourseID: "c1"})
	require.NoError(t, err)

	err = repo.DeleteCourse(ctx, "c1")
	assert.True(t, core.IsConflict(err))
}
