package enrollment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/course"
	"github.com/trezcool/soma/core/user"
)

const receiptTemplate = "course_purchased"

var (
	// errors
	ErrTransactionNotFound = core.NewNotFoundError("transaction not found")
	ErrEnrollmentNotFound  = core.NewNotFoundError("enrollment not found")
	ErrProgressNotFound    = core.NewNotFoundError("Course progress not found for this user")
	ErrAlreadyEnrolled     = core.NewConflictError("user is already enrolled in this course")
	ErrTransactionExists   = core.NewConflictError("transaction already exists")
	ErrTransactionMismatch = core.NewConflictError("transaction already recorded for another purchase")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		GetTransactionByID(ctx context.Context, id string, exec ...core.DBExecutor) (Transaction, error)
		CreateTransaction(ctx context.Context, tx Transaction, exec ...core.DBExecutor) (Transaction, error)
		// QueryTransactions returns the transactions of userID, or all of them when userID is empty,
		// newest first.
		QueryTransactions(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Transaction, error)

		GetEnrollment(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (course.Enrollment, error)
		CreateEnrollment(ctx context.Context, enr course.Enrollment, exec ...core.DBExecutor) (course.Enrollment, error)
		QueryEnrolledCourseIDs(ctx context.Context, userID string, exec ...core.DBExecutor) ([]string, error)

		GetProgress(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (UserCourseProgress, error)
		// CreateProgress inserts the whole progress tree.
		CreateProgress(ctx context.Context, p UserCourseProgress, exec ...core.DBExecutor) (UserCourseProgress, error)
		// SaveProgress updates the progress row and inserts or updates its sections and chapters.
		SaveProgress(ctx context.Context, p UserCourseProgress, exec ...core.DBExecutor) (UserCourseProgress, error)
	}

	// CourseStore is the part of course.Repository used by enrollments.
	CourseStore interface {
		GetCourseByID(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error)
		GetCoursesByIDs(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]course.Course, error)
	}

	// UserStore is the part of user.Repository used by enrollments.
	UserStore interface {
		GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error)
	}

	Service interface {
		// Purchase records a paid transaction, enrolls the user and creates their progress tree,
		// in a single transaction. Replaying a recorded transaction returns the stored result.
		Purchase(ctx context.Context, nt NewTransaction) (PurchaseResult, error)
		QueryTransactions(ctx context.Context, userID string) ([]Transaction, error)
		QueryEnrolledCourses(ctx context.Context, userID string) ([]course.Course, error)
		GetProgress(ctx context.Context, userID, courseID string) (UserCourseProgress, error)
		UpdateProgress(ctx context.Context, pu ProgressUpdate) (UserCourseProgress, error)
	}

	service struct {
		repo     Repository
		courses  CourseStore
		users    UserStore
		txRunner core.TxRunner
		mailSvc  core.EmailService
		logger   core.Logger
		newID    func() string
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	courses CourseStore,
	users UserStore,
	txRunner core.TxRunner,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(courses, "courses"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(txRunner, "txRunner"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{
		repo:     repo,
		courses:  courses,
		users:    users,
		txRunner: txRunner,
		mailSvc:  mailSvc,
		logger:   logger,
		newID:    func() string { return uuid.New().String() },
	}
}

func (svc *service) Purchase(ctx context.Context, nt NewTransaction) (PurchaseResult, error) {
	res, crs, created, err := svc.recordPurchase(ctx, nt)
	if errors.Cause(err) == ErrTransactionExists {
		// recorded concurrently since we looked it up: replay it
		res, crs, created, err = svc.recordPurchase(ctx, nt)
	}
	if err != nil {
		return PurchaseResult{}, err
	}

	if created {
		svc.sendReceipt(ctx, crs, res.Transaction)
	}
	return res, nil
}

// recordPurchase runs the purchase in a single transaction. created is false on replay.
func (svc *service) recordPurchase(ctx context.Context, nt NewTransaction) (res PurchaseResult, crs course.Course, created bool, err error) {
	err = svc.txRunner.RunInTx(ctx, func(exec core.DBExecutor) error {
		tx, err := svc.repo.GetTransactionByID(ctx, nt.TransactionID, exec)
		switch {
		case err == nil: // replay
			if tx.UserID != nt.UserID || tx.CourseID != nt.CourseID {
				return ErrTransactionMismatch
			}
			res.Transaction = tx
			res.CourseProgress, err = svc.repo.GetProgress(ctx, tx.UserID, tx.CourseID, exec)
			return errors.Wrap(err, "getting course progress")
		case errors.Cause(err) != ErrTransactionNotFound:
			return errors.Wrap(err, "getting transaction")
		}

		if crs, err = svc.courses.GetCourseByID(ctx, nt.CourseID, exec); err != nil {
			if errors.Cause(err) == course.ErrCourseNotFound {
				return core.NewNotFoundError(fmt.Sprintf("Course %s not found!", nt.CourseID))
			}
			return errors.Wrap(err, "getting course")
		}

		_, err = svc.repo.GetEnrollment(ctx, nt.UserID, nt.CourseID, exec)
		switch {
		case err == nil:
			return ErrAlreadyEnrolled
		case errors.Cause(err) != ErrEnrollmentNotFound:
			return errors.Wrap(err, "getting enrollment")
		}

		now := NowFunc().UTC()
		res.Transaction, err = svc.repo.CreateTransaction(ctx, Transaction{
			TransactionID:   nt.TransactionID,
			UserID:          nt.UserID,
			CourseID:        nt.CourseID,
			DateTime:        now,
			PaymentProvider: nt.PaymentProvider,
			Amount:          nt.Amount,
		}, exec)
		if err != nil {
			if err == ErrTransactionExists {
				return err
			}
			return errors.Wrap(err, "creating transaction")
		}

		enr := course.Enrollment{ID: svc.newID(), UserID: nt.UserID, CourseID: nt.CourseID}
		if _, err = svc.repo.CreateEnrollment(ctx, enr, exec); err != nil {
			return errors.Wrap(err, "creating enrollment")
		}

		res.CourseProgress, err = svc.repo.CreateProgress(ctx, NewProgress(crs, nt.UserID, now, svc.newID), exec)
		if err != nil {
			return errors.Wrap(err, "creating course progress")
		}
		created = true
		return nil
	})
	return res, crs, created, err
}

type receiptData struct {
	Name          string
	CourseTitle   string
	CourseID      string
	TeacherName   string
	Amount        string
	TransactionID string
	Date          string
}

func (svc *service) sendReceipt(ctx context.Context, crs course.Course, tx Transaction) {
	usr, err := svc.users.GetUserByID(ctx, tx.UserID)
	if err != nil {
		svc.logger.Warn("purchase receipt not sent", errors.Wrapf(err, "getting user %s", tx.UserID))
		return
	}
	if usr.Email == "" {
		return
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your receipt for " + crs.Title,
		TemplateName: receiptTemplate,
		TemplateData: receiptData{
			Name:          usr.Name,
			CourseTitle:   crs.Title,
			CourseID:      crs.CourseID,
			TeacherName:   crs.TeacherName,
			Amount:        core.CentsToDollars(tx.Amount),
			TransactionID: tx.TransactionID,
			Date:          tx.DateTime.Format("January 2, 2006"),
		},
	})
}

func (svc *service) QueryTransactions(ctx context.Context, userID string) ([]Transaction, error) {
	txs, err := svc.repo.QueryTransactions(ctx, core.CleanString(userID))
	return txs, errors.Wrap(err, "querying transactions")
}

func (svc *service) QueryEnrolledCourses(ctx context.Context, userID string) ([]course.Course, error) {
	ids, err := svc.repo.QueryEnrolledCourseIDs(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolled course ids")
	}
	if len(ids) == 0 {
		return []course.Course{}, nil
	}
	courses, err := svc.courses.GetCoursesByIDs(ctx, ids)
	return courses, errors.Wrap(err, "getting enrolled courses")
}

func (svc *service) GetProgress(ctx context.Context, userID, courseID string) (UserCourseProgress, error) {
	p, err := svc.repo.GetProgress(ctx, userID, courseID)
	if err != nil {
		if errors.Cause(err) == ErrProgressNotFound {
			return UserCourseProgress{}, ErrProgressNotFound
		}
		return UserCourseProgress{}, errors.Wrap(err, "getting course progress")
	}
	return p, nil
}

func (svc *service) UpdateProgress(ctx context.Context, pu ProgressUpdate) (UserCourseProgress, error) {
	var p UserCourseProgress
	err := svc.txRunner.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.GetProgress(ctx, pu.UserID, pu.CourseID, exec); err != nil {
			if errors.Cause(err) == ErrProgressNotFound {
				return ErrProgressNotFound
			}
			return errors.Wrap(err, "getting course progress")
		}
		crs, err := svc.courses.GetCourseByID(ctx, pu.CourseID, exec)
		if err != nil {
			return errors.Wrap(err, "getting course")
		}
		p.Merge(crs, pu, svc.newID)
		p.LastAccessedTimestamp = NowFunc().UTC()
		p, err = svc.repo.SaveProgress(ctx, p, exec)
		return errors.Wrap(err, "saving course progress")
	})
	if err != nil {
		return UserCourseProgress{}, err
	}
	return p, nil
}
