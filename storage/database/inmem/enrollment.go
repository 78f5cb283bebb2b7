package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/course"
	"github.com/trezcool/soma/core/enrollment"
)

var errDuplicateProgress = core.NewConflictError("course progress already exists")

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func progressKey(userID, courseID string) string {
	return userID + "|" + courseID
}

func copyProgress(p enrollment.UserCourseProgress) enrollment.UserCourseProgress {
	sections := make([]enrollment.SectionProgress, 0, len(p.Sections))
	for _, sec := range p.Sections {
		sec.Chapters = append([]enrollment.ChapterProgress{}, sec.Chapters...)
		sections = append(sections, sec)
	}
	p.Sections = sections
	return p
}

func (repo *enrollmentRepository) GetTransactionByID(_ context.Context, id string, _ ...core.DBExecutor) (enrollment.Transaction, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tx, ok := repo.db.transactions[id]; ok {
		return tx, nil
	}
	return enrollment.Transaction{}, enrollment.ErrTransactionNotFound
}

func (repo *enrollmentRepository) CreateTransaction(_ context.Context, tx enrollment.Transaction, _ ...core.DBExecutor) (enrollment.Transaction, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.transactions[tx.TransactionID]; ok {
		return enrollment.Transaction{}, enrollment.ErrTransactionExists
	}
	if _, ok := repo.db.courses[tx.CourseID]; !ok {
		return enrollment.Transaction{}, course.ErrCourseNotFound
	}
	repo.db.transactions[tx.TransactionID] = tx
	return tx, nil
}

func (repo *enrollmentRepository) QueryTransactions(_ context.Context, userID string, _ ...core.DBExecutor) ([]enrollment.Transaction, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	txs := make([]enrollment.Transaction, 0)
	for _, tx := range repo.db.transactions {
		if userID == "" || tx.UserID == userID {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].DateTime.Equal(txs[j].DateTime) {
			return txs[i].DateTime.After(txs[j].DateTime)
		}
		return txs[i].TransactionID < txs[j].TransactionID
	})
	return txs, nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, userID, courseID string, _ ...core.DBExecutor) (course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.UserID == userID && enr.CourseID == courseID {
			return enr, nil
		}
	}
	return course.Enrollment{}, enrollment.ErrEnrollmentNotFound
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, enr course.Enrollment, _ ...core.DBExecutor) (course.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[enr.CourseID]; !ok {
		return course.Enrollment{}, course.ErrCourseNotFound
	}
	for _, e := range repo.db.enrollments {
		if e.UserID == enr.UserID && e.CourseID == enr.CourseID {
			return course.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
	}
	if enr.ID == "" {
		enr.ID = uuid.New().String()
	}
	repo.db.enrollments[enr.ID] = enr
	return enr, nil
}

func (repo *enrollmentRepository) QueryEnrolledCourseIDs(_ context.Context, userID string, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]string, 0)
	for _, enr := range repo.db.enrollments {
		if enr.UserID == userID {
			ids = append(ids, enr.CourseID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *enrollmentRepository) GetProgress(_ context.Context, userID, courseID string, _ ...core.DBExecutor) (enrollment.UserCourseProgress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.progress[progressKey(userID, courseID)]; ok {
		return copyProgress(p), nil
	}
	return enrollment.UserCourseProgress{}, enrollment.ErrProgressNotFound
}

func (repo *enrollmentRepository) CreateProgress(_ context.Context, p enrollment.UserCourseProgress, _ ...core.DBExecutor) (enrollment.UserCourseProgress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := progressKey(p.UserID, p.CourseID)
	if _, ok := repo.db.progress[key]; ok {
		return enrollment.UserCourseProgress{}, errDuplicateProgress
	}
	if _, ok := repo.db.courses[p.CourseID]; !ok {
		return enrollment.UserCourseProgress{}, course.ErrCourseNotFound
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	repo.db.progress[key] = copyProgress(p)
	return copyProgress(p), nil
}

func (repo *enrollmentRepository) SaveProgress(_ context.Context, p enrollment.UserCourseProgress, _ ...core.DBExecutor) (enrollment.UserCourseProgress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := progressKey(p.UserID, p.CourseID)
	orig, ok := repo.db.progress[key]
	if !ok {
		return enrollment.UserCourseProgress{}, enrollment.ErrProgressNotFound
	}
	p.ID = orig.ID
	p.EnrollmentDate = orig.EnrollmentDate
	repo.db.progress[key] = copyProgress(p)
	return copyProgress(p), nil
}
