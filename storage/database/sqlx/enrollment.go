package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/course"
	"github.com/trezcool/soma/core/enrollment"
)

const (
	transactionColumns = "transaction_id, user_id, course_id, date_time, payment_provider, amount"
	progressColumns    = "id, user_id, course_id, enrollment_date, overall_progress, last_accessed_timestamp"
)

type (
	transactionRow struct {
		TransactionID   string    `db:"transaction_id"`
		UserID          string    `db:"user_id"`
		CourseID        string    `db:"course_id"`
		DateTime        time.Time `db:"date_time"`
		PaymentProvider string    `db:"payment_provider"`
		Amount          int64     `db:"amount"`
	}

	progressRow struct {
		ID                    string    `db:"id"`
		UserID                string    `db:"user_id"`
		CourseID              string    `db:"course_id"`
		EnrollmentDate        time.Time `db:"enrollment_date"`
		OverallProgress       float64   `db:"overall_progress"`
		LastAccessedTimestamp time.Time `db:"last_accessed_timestamp"`
	}

	sectionProgressRow struct {
		ID        string `db:"id"`
		SectionID string `db:"section_id"`
	}

	chapterProgressRow struct {
		ID                string `db:"id"`
		SectionProgressID string `db:"section_progress_id"`
		ChapterID         string `db:"chapter_id"`
		Completed         bool   `db:"completed"`
	}
)

func (r transactionRow) unwrap() enrollment.Transaction {
	return enrollment.Transaction{
		TransactionID:   r.TransactionID,
		UserID:          r.UserID,
		CourseID:        r.CourseID,
		DateTime:        r.DateTime.UTC(),
		PaymentProvider: r.PaymentProvider,
		Amount:          r.Amount,
	}
}

type enrollmentRepository struct {
	baseRepository
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db core.DBExecutor) enrollment.Repository {
	return &enrollmentRepository{baseRepository{db: db}}
}

func (repo enrollmentRepository) GetTransactionByID(ctx context.Context, id string, exec ...core.DBExecutor) (enrollment.Transaction, error) {
	var r transactionRow
	q := "SELECT " + transactionColumns + " FROM transactions WHERE transaction_id = $1"
	if err := repo.getExec(exec).GetContext(ctx, &r, q, id); err != nil {
		return enrollment.Transaction{}, trapNoRowsErr(err, enrollment.ErrTransactionNotFound, "selecting transaction")
	}
	return r.unwrap(), nil
}

func (repo enrollmentRepository) CreateTransaction(ctx context.Context, tx enrollment.Transaction, exec ...core.DBExecutor) (enrollment.Transaction, error) {
	q := "INSERT INTO transactions (" + transactionColumns + ") VALUES ($1, $2, $3, $4, $5, $6)"
	_, err := repo.getExec(exec).ExecContext(ctx, q,
		tx.TransactionID, tx.UserID, tx.CourseID, tx.DateTime.UTC(), tx.PaymentProvider, tx.Amount,
	)
	if err != nil {
		switch pqCode(err) {
		case uniqueViolation:
			return enrollment.Transaction{}, enrollment.ErrTransactionExists
		case fkViolation:
			return enrollment.Transaction{}, course.ErrCourseNotFound
		}
		return enrollment.Transaction{}, errors.Wrap(err, "inserting transaction")
	}
	return tx, nil
}

func (repo enrollmentRepository) QueryTransactions(ctx context.Context, userID string, exec ...core.DBExecutor) ([]enrollment.Transaction, error) {
	var rows []transactionRow
	q := "SELECT " + transactionColumns + " FROM transactions" +
		" WHERE ($1 = '' OR user_id = $1) ORDER BY date_time DESC, transaction_id"
	if err := repo.getExec(exec).SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "selecting transactions")
	}
	txs := make([]enrollment.Transaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, r.unwrap())
	}
	return txs, nil
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (course.Enrollment, error) {
	var r enrollmentRow
	q := "SELECT id, user_id, course_id FROM enrollments WHERE user_id = $1 AND course_id = $2"
	if err := repo.getExec(exec).GetContext(ctx, &r, q, userID, courseID); err != nil {
		return course.Enrollment{}, trapNoRowsErr(err, enrollment.ErrEnrollmentNotFound, "selecting enrollment")
	}
	return course.Enrollment(r), nil
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, enr course.Enrollment, exec ...core.DBExecutor) (course.Enrollment, error) {
	q := "INSERT INTO enrollments (id, user_id, course_id) VALUES ($1, $2, $3)"
	if _, err := repo.getExec(exec).ExecContext(ctx, q, enr.ID, enr.UserID, enr.CourseID); err != nil {
		switch pqCode(err) {
		case uniqueViolation:
			return course.Enrollment{}, enrollment.ErrAlreadyEnrolled
		case fkViolation:
			return course.Enrollment{}, course.ErrCourseNotFound
		}
		return course.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return enr, nil
}

func (repo enrollmentRepository) QueryEnrolledCourseIDs(ctx context.Context, userID string, exec ...core.DBExecutor) ([]string, error) {
	ids := make([]string, 0)
	q := "SELECT course_id FROM enrollments WHERE user_id = $1 ORDER BY course_id"
	if err := repo.getExec(exec).SelectContext(ctx, &ids, q, userID); err != nil {
		return nil, errors.Wrap(err, "selecting enrolled courses")
	}
	return ids, nil
}

func (repo enrollmentRepository) GetProgress(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (enrollment.UserCourseProgress, error) {
	ex := repo.getExec(exec)

	var r progressRow
	q := "SELECT " + progressColumns + " FROM user_course_progress WHERE user_id = $1 AND course_id = $2"
	if err := ex.GetContext(ctx, &r, q, userID, courseID); err != nil {
		return enrollment.UserCourseProgress{}, trapNoRowsErr(err, enrollment.ErrProgressNotFound, "selecting course progress")
	}

	var secRows []sectionProgressRow
	q = `SELECT sp.id, sp.section_id
		FROM section_progress sp
		LEFT JOIN sections s ON s.section_id = sp.section_id
		WHERE sp.user_course_progress_id = $1
		ORDER BY s."order" NULLS LAST, sp.id`
	if err := ex.SelectContext(ctx, &secRows, q, r.ID); err != nil {
		return enrollment.UserCourseProgress{}, errors.Wrap(err, "selecting section progress")
	}

	var chRows []chapterProgressRow
	q = `SELECT cp.id, cp.section_progress_id, cp.chapter_id, cp.completed
		FROM chapter_progress cp
		JOIN section_progress sp ON sp.id = cp.section_progress_id
		LEFT JOIN chapters c ON c.chapter_id = cp.chapter_id
		WHERE sp.user_course_progress_id = $1
		ORDER BY c."order" NULLS LAST, cp.id`
	if err := ex.SelectContext(ctx, &chRows, q, r.ID); err != nil {
		return enrollment.UserCourseProgress{}, errors.Wrap(err, "selecting chapter progress")
	}

	chapters := make(map[string][]enrollment.ChapterProgress)
	for _, c := range chRows {
		chapters[c.SectionProgressID] = append(chapters[c.SectionProgressID], enrollment.ChapterProgress{
			ID:        c.ID,
			ChapterID: c.ChapterID,
			Completed: c.Completed,
		})
	}

	p := enrollment.UserCourseProgress{
		ID:                    r.ID,
		UserID:                r.UserID,
		CourseID:              r.CourseID,
		EnrollmentDate:        r.EnrollmentDate.UTC(),
		OverallProgress:       r.OverallProgress,
		LastAccessedTimestamp: r.LastAccessedTimestamp.UTC(),
		Sections:              make([]enrollment.SectionProgress, 0, len(secRows)),
	}
	for _, s := range secRows {
		chs := chapters[s.ID]
		if chs == nil {
			chs = []enrollment.ChapterProgress{}
		}
		p.Sections = append(p.Sections, enrollment.SectionProgress{ID: s.ID, SectionID: s.SectionID, Chapters: chs})
	}
	return p, nil
}

func (repo enrollmentRepository) CreateProgress(ctx context.Context, p enrollment.UserCourseProgress, exec ...core.DBExecutor) (enrollment.UserCourseProgress, error) {
	ex := repo.getExec(exec)

	q := "INSERT INTO user_course_progress (" + progressColumns + ") VALUES ($1, $2, $3, $4, $5, $6)"
	_, err := ex.ExecContext(ctx, q,
		p.ID, p.UserID, p.CourseID, p.EnrollmentDate.UTC(), p.OverallProgress, p.LastAccessedTimestamp.UTC(),
	)
	if err != nil {
		if pqCode(err) == fkViolation {
			return enrollment.UserCourseProgress{}, course.ErrCourseNotFound
		}
		return enrollment.UserCourseProgress{}, trapConstraintErr(err, "inserting course progress")
	}
	if err = repo.saveSections(ctx, ex, p); err != nil {
		return enrollment.UserCourseProgress{}, err
	}
	return p, nil
}

func (repo enrollmentRepository) SaveProgress(ctx context.Context, p enrollment.UserCourseProgress, exec ...core.DBExecutor) (enrollment.UserCourseProgress, error) {
	ex := repo.getExec(exec)

	q := `UPDATE user_course_progress SET overall_progress = $1, last_accessed_timestamp = $2
		WHERE user_id = $3 AND course_id = $4`
	res, err := ex.ExecContext(ctx, q, p.OverallProgress, p.LastAccessedTimestamp.UTC(), p.UserID, p.CourseID)
	if err != nil {
		return enrollment.UserCourseProgress{}, errors.Wrap(err, "updating course progress")
	}
	if err = checkAffected(res, enrollment.ErrProgressNotFound); err != nil {
		return enrollment.UserCourseProgress{}, err
	}
	if err = repo.saveSections(ctx, ex, p); err != nil {
		return enrollment.UserCourseProgress{}, err
	}
	return p, nil
}

// saveSections inserts the missing section and chapter progress rows of p and updates the chapter flags.
func (repo enrollmentRepository) saveSections(ctx context.Context, ex core.DBExecutor, p enrollment.UserCourseProgress) error {
	secQ := `INSERT INTO section_progress (id, user_course_progress_id, section_id) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`
	chQ := `INSERT INTO chapter_progress (id, section_progress_id, chapter_id, completed) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET completed = EXCLUDED.completed`

	for _, sec := range p.Sections {
		if _, err := ex.ExecContext(ctx, secQ, sec.ID, p.ID, sec.SectionID); err != nil {
			return errors.Wrap(err, "saving section progress")
		}
		for _, ch := range sec.Chapters {
			if _, err := ex.ExecContext(ctx, chQ, ch.ID, sec.ID, ch.ChapterID, ch.Completed); err != nil {
				return errors.Wrap(err, "saving chapter progress")
			}
		}
	}
	return nil
}
