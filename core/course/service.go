package course

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/soma/core"
)

var (
	// errors
	ErrCourseNotFound  = core.NewNotFoundError("course not found")
	ErrSectionNotFound = core.NewNotFoundError("section not found")
	ErrChapterNotFound = core.NewNotFoundError("chapter not found")
	ErrNotOwner        = core.NewForbiddenError("only the teacher of this course can modify it")
	ErrTeacherMismatch = core.NewForbiddenError("courses can only be created for yourself")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// QueryCourses returns courses with their sections, chapters and enrollments.
		// QueryFilter.Search does a case-insensitive match on Course.Title.
		QueryCourses(ctx context.Context, filter QueryFilter, page core.Pagination, exec ...core.DBExecutor) ([]Course, error)
		// GetCourseByID returns the full course tree, chapter comments included.
		GetCourseByID(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		GetCoursesByIDs(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]Course, error)
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error

		// GetSectionByID returns the section with its chapters.
		GetSectionByID(ctx context.Context, id string, exec ...core.DBExecutor) (Section, error)
		CreateSection(ctx context.Context, sec Section, exec ...core.DBExecutor) (Section, error)
		UpdateSection(ctx context.Context, sec Section, exec ...core.DBExecutor) (Section, error)
		DeleteSections(ctx context.Context, ids []string, exec ...core.DBExecutor) error

		GetChapterByID(ctx context.Context, id string, exec ...core.DBExecutor) (Chapter, error)
		CreateChapter(ctx context.Context, ch Chapter, exec ...core.DBExecutor) (Chapter, error)
		UpdateChapter(ctx context.Context, ch Chapter, exec ...core.DBExecutor) (Chapter, error)
		DeleteChapters(ctx context.Context, ids []string, exec ...core.DBExecutor) error

		CreateComment(ctx context.Context, cmt Comment, exec ...core.DBExecutor) (Comment, error)
	}

	Service interface {
		Query(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Course, error)
		Get(ctx context.Context, id string) (Course, error)
		Create(ctx context.Context, callerID string, nc NewCourse) (Course, error)
		Update(ctx context.Context, callerID, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, callerID, id string) error
		// SaveStructure applies the course fields of st and reconciles its section/chapter tree
		// with the stored one, in a single transaction.
		SaveStructure(ctx context.Context, callerID, id string, st Structure) (Course, error)

		CreateSection(ctx context.Context, callerID string, ns NewSection) (Section, error)
		UpdateSection(ctx context.Context, callerID, id string, us UpdateSection) (Section, error)
		DeleteSection(ctx context.Context, callerID, id string) error

		CreateChapter(ctx context.Context, callerID string, nc NewChapter) (Chapter, error)
		UpdateChapter(ctx context.Context, callerID, id string, uc UpdateChapter) (Chapter, error)
		DeleteChapter(ctx context.Context, callerID, id string) error

		AddComment(ctx context.Context, userID, chapterID string, nc NewComment) (Comment, error)
	}

	service struct {
		repo     Repository
		txRunner core.TxRunner
		newID    func() string
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, txRunner core.TxRunner) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(txRunner, "txRunner"),
	).CheckAndPanic()

	return &service{
		repo:     repo,
		txRunner: txRunner,
		newID:    func() string { return uuid.New().String() },
	}
}

func notFound(kind, id string) error {
	return core.NewNotFoundError(fmt.Sprintf("%s %s not found!", kind, id))
}

// trapNotFound replaces the repository sentinels by an error naming the missing object.
func trapNotFound(err error, id, msg string) error {
	switch errors.Cause(err) {
	case ErrCourseNotFound:
		return notFound("Course", id)
	case ErrSectionNotFound:
		return notFound("Section", id)
	case ErrChapterNotFound:
		return notFound("Chapter", id)
	}
	return errors.Wrap(err, msg)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Course, error) {
	filter.Clean()
	courses, err := svc.repo.QueryCourses(ctx, filter, page)
	return courses, errors.Wrap(err, "querying courses")
}

func (svc *service) Get(ctx context.Context, id string) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, trapNotFound(err, id, "getting course")
	}
	return crs, nil
}

func (svc *service) getOwnedCourse(ctx context.Context, callerID, id string, exec ...core.DBExecutor) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id, exec...)
	if err != nil {
		return Course{}, trapNotFound(err, id, "getting course")
	}
	if !crs.IsOwnedBy(callerID) {
		return Course{}, ErrNotOwner
	}
	return crs, nil
}

func (svc *service) getOwnedSection(ctx context.Context, callerID, id string, exec ...core.DBExecutor) (Section, error) {
	sec, err := svc.repo.GetSectionByID(ctx, id, exec...)
	if err != nil {
		return Section{}, trapNotFound(err, id, "getting section")
	}
	if _, err := svc.getOwnedCourse(ctx, callerID, sec.CourseID, exec...); err != nil {
		return Section{}, err
	}
	return sec, nil
}

func (svc *service) getOwnedChapter(ctx context.Context, callerID, id string, exec ...core.DBExecutor) (Chapter, error) {
	ch, err := svc.repo.GetChapterByID(ctx, id, exec...)
	if err != nil {
		return Chapter{}, trapNotFound(err, id, "getting chapter")
	}
	if _, err := svc.getOwnedSection(ctx, callerID, ch.SectionID, exec...); err != nil {
		return Chapter{}, err
	}
	return ch, nil
}

func (svc *service) Create(ctx context.Context, callerID string, nc NewCourse) (Course, error) {
	nc.Clean()
	if nc.TeacherID != callerID {
		return Course{}, ErrTeacherMismatch
	}

	now := NowFunc().UTC()
	crs := Course{
		CourseID:    svc.newID(),
		TeacherID:   nc.TeacherID,
		TeacherName: nc.TeacherName,
		Title:       nc.Title,
		Description: nc.Description,
		Category:    nc.Category,
		Image:       nc.Image,
		Price:       nc.Price,
		Level:       nc.Level,
		Status:      nc.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	crs, err := svc.repo.CreateCourse(ctx, crs)
	return crs, errors.Wrap(err, "creating course")
}

func (svc *service) Update(ctx context.Context, callerID, id string, uc UpdateCourse) (Course, error) {
	var crs Course
	err := svc.txRunner.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if crs, err = svc.getOwnedCourse(ctx, callerID, id, exec); err != nil {
			return err
		}
		uc.Apply(&crs)
		crs.UpdatedAt = NowFunc().UTC()
		crs, err = svc.repo.UpdateCourse(ctx, crs, exec)
		return errors.Wrap(err, "updating course")
	})
	if err != nil {
		return Course{}, err
	}
	return crs, nil
}

func (svc *service) Delete(ctx context.Context, callerID, id string) error {
	return svc.txRunner.RunInTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.getOwnedCourse(ctx, callerID, id, exec); err != nil {
			return err
		}
		if err := svc.repo.DeleteCourse(ctx, id, exec); err != nil {
			return trapNotFound(err, id, "deleting course")
		}
		return nil
	})
}

func (svc *service) SaveStructure(ctx context.Context, callerID, id string, st Structure) (Course, error) {
	err := svc.txRunner.RunInTx(ctx, func(exec core.DBExecutor) error {
		crs, err := svc.getOwnedCourse(ctx, callerID, id, exec)
		if err != nil {
			return err
		}

		st.UpdateCourse.Apply(&crs)
		crs.UpdatedAt = NowFunc().UTC()
		if _, err = svc.repo.UpdateCourse(ctx, crs, exec); err != nil {
			return errors.Wrap(err, "updating course")
		}
		return svc.applyPlan(ctx, Reconcile(crs, st, svc.newID), exec)
	})
	if err != nil {
		return Course{}, err
	}
	return svc.Get(ctx, id)
}

func (svc *service) applyPlan(ctx context.Context, plan Plan, exec core.DBExecutor) error {
	if len(plan.DeleteChapters) > 0 {
		if err := svc.repo.DeleteChapters(ctx, plan.DeleteChapters, exec); err != nil {
			return errors.Wrap(err, "deleting chapters")
		}
	}
	for _, sec := range plan.CreateSections {
		if _, err := svc.repo.CreateSection(ctx, sec, exec); err != nil {
			return errors.Wrapf(err, "creating section %q", sec.SectionTitle)
		}
	}
	for _, sec := range plan.UpdateSections {
		if _, err := svc.repo.UpdateSection(ctx, sec, exec); err != nil {
			return trapNotFound(err, sec.SectionID, "updating section")
		}
	}
	for _, ch := range plan.CreateChapters {
		if _, err := svc.repo.CreateChapter(ctx, ch, exec); err != nil {
			return errors.Wrapf(err, "creating chapter %q", ch.Title)
		}
	}
	for _, ch := range plan.UpdateChapters {
		if _, err := svc.repo.UpdateChapter(ctx, ch, exec); err != nil {
			return trapNotFound(err, ch.ChapterID, "updating chapter")
		}
	}
	if len(plan.DeleteSections) > 0 {
		if err := svc.repo.DeleteSections(ctx, plan.DeleteSections, exec); err != nil {
			return errors.Wrap(err, "deleting sections")
		}
	}
	return nil
}

func (svc *service) CreateSection(ctx context.Context, callerID string, ns NewSection) (Section, error) {
	var sec Section
	err := svc.txRunner.RunInTx(ctx, func(exec core.DBExecutor) error {
		crs, err := svc.getOwnedCourse(ctx, callerID, ns.CourseID, exec)
		if err != nil {
			return err
		}
		sec, err = svc.repo.CreateSection(ctx, Section{
			SectionID:          svc.newID(),
			CourseID:           crs.CourseID,
			SectionTitle:       ns.SectionTitle,
			SectionDescription: ns.SectionDescription,
			Order:              len(crs.Sections),
		}, exec)
		return errors.Wrap(err, "creating section")
	})
	if err != nil {
		return Section{}, err
	}
	return sec, nil
}

func (svc *service) UpdateSection(ctx context.Context, callerID, id string, us UpdateSection) (Section, error) {
	var sec Section
	err := svc.txRunner.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if sec, err = svc.getOwnedSection(ctx, callerID, id, exec); err != nil {
			return err
		}
		sec.SectionTitle = us.SectionTitle
		sec.SectionDescription = us.SectionDescription
		sec, err = svc.repo.UpdateSection(ctx, sec, exec)
		return errors.Wrap(err, "updating section")
	})
	if err != nil {
		return Section{}, err
	}
	return sec, nil
}

func (svc *service) DeleteSection(ctx context.Context, callerID, id string) error {
	return svc.txRunner.RunInTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.getOwnedSection(ctx, callerID, id, exec); err != nil {
			return err
		}
		return errors.Wrap(svc.repo.DeleteSections(ctx, []string{id}, exec), "deleting section")
	})
}

func (svc *service) CreateChapter(ctx context.Context, callerID string, nc NewChapter) (Chapter, error) {
	var ch Chapter
	err := svc.txRunner.RunInTx(ctx, func(exec core.DBExecutor) error {
		sec, err := svc.getOwnedSection(ctx, callerID, nc.SectionID, exec)
		if err != nil {
			return err
		}
		ch = Chapter{ChapterID: svc.newID(), SectionID: sec.SectionID, Order: len(sec.Chapters)}
		nc.applyTo(&ch)
		ch, err = svc.repo.CreateChapter(ctx, ch, exec)
		return errors.Wrap(err, "creating chapter")
	})
	if err != nil {
		return Chapter{}, err
	}
	return ch, nil
}

func (svc *service) UpdateChapter(ctx context.Context, callerID, id string, uc UpdateChapter) (Chapter, error) {
	var ch Chapter
	err := svc.txRunner.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if ch, err = svc.getOwnedChapter(ctx, callerID, id, exec); err != nil {
			return err
		}
		uc.applyTo(&ch)
		ch, err = svc.repo.UpdateChapter(ctx, ch, exec)
		return errors.Wrap(err, "updating chapter")
	})
	if err != nil {
		return Chapter{}, err
	}
	return ch, nil
}

func (svc *service) DeleteChapter(ctx context.Context, callerID, id string) error {
	return svc.txRunner.RunInTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.getOwnedChapter(ctx, callerID, id, exec); err != nil {
			return err
		}
		return errors.Wrap(svc.repo.DeleteChapters(ctx, []string{id}, exec), "deleting chapter")
	})
}

func (svc *service) AddComment(ctx context.Context, userID, chapterID string, nc NewComment) (Comment, error) {
	if _, err := svc.repo.GetChapterByID(ctx, chapterID); err != nil {
		return Comment{}, trapNotFound(err, chapterID, "getting chapter")
	}
	cmt, err := svc.repo.CreateComment(ctx, Comment{
		CommentID: svc.newID(),
		ChapterID: chapterID,
		UserID:    userID,
		Text:      nc.Text,
		Timestamp: NowFunc().UTC(),
	})
	return cmt, errors.Wrap(err, "creating comment")
}
