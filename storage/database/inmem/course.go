package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/course"
)

var errPurchasedCourse = core.NewConflictError("course has been purchased and cannot be deleted")

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

// tree assembles crs with its sections, chapters, enrollments and, optionally, comments.
// Callers hold the read lock.
func (repo *courseRepository) tree(crs course.Course, withComments bool) course.Course {
	crs.Sections = make([]course.Section, 0)
	for _, sec := range repo.db.sections {
		if sec.CourseID == crs.CourseID {
			crs.Sections = append(crs.Sections, repo.section(sec, withComments))
		}
	}
	sort.Slice(crs.Sections, func(i, j int) bool {
		if crs.Sections[i].Order != crs.Sections[j].Order {
			return crs.Sections[i].Order < crs.Sections[j].Order
		}
		return crs.Sections[i].SectionID < crs.Sections[j].SectionID
	})

	crs.Enrollments = make([]course.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if enr.CourseID == crs.CourseID {
			crs.Enrollments = append(crs.Enrollments, enr)
		}
	}
	sort.Slice(crs.Enrollments, func(i, j int) bool {
		return crs.Enrollments[i].ID < crs.Enrollments[j].ID
	})
	return crs
}

func (repo *courseRepository) section(sec course.Section, withComments bool) course.Section {
	sec.Chapters = make([]course.Chapter, 0)
	for _, ch := range repo.db.chapters {
		if ch.SectionID != sec.SectionID {
			continue
		}
		if withComments {
			ch.Comments = make([]course.Comment, 0)
			for _, cmt := range repo.db.comments {
				if cmt.ChapterID == ch.ChapterID {
					ch.Comments = append(ch.Comments, cmt)
				}
			}
			sort.Slice(ch.Comments, func(i, j int) bool {
				return ch.Comments[i].Timestamp.Before(ch.Comments[j].Timestamp)
			})
		}
		sec.Chapters = append(sec.Chapters, ch)
	}
	sort.Slice(sec.Chapters, func(i, j int) bool {
		if sec.Chapters[i].Order != sec.Chapters[j].Order {
			return sec.Chapters[i].Order < sec.Chapters[j].Order
		}
		return sec.Chapters[i].ChapterID < sec.Chapters[j].ChapterID
	})
	return sec
}

func sortCourses(courses []course.Course) {
	sort.Slice(courses, func(i, j int) bool {
		if !courses[i].CreatedAt.Equal(courses[j].CreatedAt) {
			return courses[i].CreatedAt.Before(courses[j].CreatedAt)
		}
		return courses[i].CourseID < courses[j].CourseID
	})
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter, page core.Pagination, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	search := strings.ToLower(filter.Search)
	courses := make([]course.Course, 0)
	for _, crs := range repo.db.courses {
		if filter.Category != "" && crs.Category != filter.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(crs.Title), search) {
			continue
		}
		courses = append(courses, crs)
	}
	sortCourses(courses)

	start, end := page.Window(len(courses))
	courses = courses[start:end]
	for i := range courses {
		courses[i] = repo.tree(courses[i], false)
	}
	return courses, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	crs, ok := repo.db.courses[id]
	if !ok {
		return course.Course{}, course.ErrCourseNotFound
	}
	return repo.tree(crs, true), nil
}

func (repo *courseRepository) GetCoursesByIDs(_ context.Context, ids []string, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(ids))
	for _, id := range ids {
		if crs, ok := repo.db.courses[id]; ok {
			courses = append(courses, repo.tree(crs, false))
		}
	}
	sortCourses(courses)
	return courses, nil
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if crs.CourseID == "" {
		crs.CourseID = uuid.New().String()
	}
	crs.Sections, crs.Enrollments = nil, nil
	repo.db.courses[crs.CourseID] = crs
	return repo.tree(crs, false), nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.courses[crs.CourseID]
	if !ok {
		return course.Course{}, course.ErrCourseNotFound
	}
	crs.CreatedAt = orig.CreatedAt
	crs.Sections, crs.Enrollments = nil, nil
	repo.db.courses[crs.CourseID] = crs
	return repo.tree(crs, false), nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrCourseNotFound
	}
	for _, tx := range repo.db.transactions {
		if tx.CourseID == id {
			return errPurchasedCourse
		}
	}

	var sectionIDs []string
	for _, sec := range repo.db.sections {
		if sec.CourseID == id {
			sectionIDs = append(sectionIDs, sec.SectionID)
		}
	}
	repo.deleteSections(sectionIDs)
	for k, enr := range repo.db.enrollments {
		if enr.CourseID == id {
			delete(repo.db.enrollments, k)
		}
	}
	for k, p := range repo.db.progress {
		if p.CourseID == id {
			delete(repo.db.progress, k)
		}
	}
	delete(repo.db.courses, id)
	return nil
}

func (repo *courseRepository) GetSectionByID(_ context.Context, id string, _ ...core.DBExecutor) (course.Section, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sec, ok := repo.db.sections[id]
	if !ok {
		return course.Section{}, course.ErrSectionNotFound
	}
	return repo.section(sec, false), nil
}

func (repo *courseRepository) CreateSection(_ context.Context, sec course.Section, _ ...core.DBExecutor) (course.Section, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[sec.CourseID]; !ok {
		return course.Section{}, course.ErrCourseNotFound
	}
	if sec.SectionID == "" {
		sec.SectionID = uuid.New().String()
	}
	sec.Chapters = nil
	repo.db.sections[sec.SectionID] = sec
	return repo.section(sec, false), nil
}

func (repo *courseRepository) UpdateSection(_ context.Context, sec course.Section, _ ...core.DBExecutor) (course.Section, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.sections[sec.SectionID]
	if !ok {
		return course.Section{}, course.ErrSectionNotFound
	}
	sec.CourseID = orig.CourseID
	sec.Chapters = nil
	repo.db.sections[sec.SectionID] = sec
	return repo.section(sec, false), nil
}

func (repo *courseRepository) DeleteSections(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.deleteSections(ids)
	return nil
}

// deleteSections cascades to chapters. Callers hold the write lock.
func (repo *courseRepository) deleteSections(ids []string) {
	for _, id := range ids {
		var chapterIDs []string
		for _, ch := range repo.db.chapters {
			if ch.SectionID == id {
				chapterIDs = append(chapterIDs, ch.ChapterID)
			}
		}
		repo.deleteChapters(chapterIDs)
		delete(repo.db.sections, id)
	}
}

func (repo *courseRepository) GetChapterByID(_ context.Context, id string, _ ...core.DBExecutor) (course.Chapter, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ch, ok := repo.db.chapters[id]
	if !ok {
		return course.Chapter{}, course.ErrChapterNotFound
	}
	return ch, nil
}

func (repo *courseRepository) CreateChapter(_ context.Context, ch course.Chapter, _ ...core.DBExecutor) (course.Chapter, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.sections[ch.SectionID]; !ok {
		return course.Chapter{}, course.ErrSectionNotFound
	}
	if ch.ChapterID == "" {
		ch.ChapterID = uuid.New().String()
	}
	ch.Comments = nil
	repo.db.chapters[ch.ChapterID] = ch
	return ch, nil
}

func (repo *courseRepository) UpdateChapter(_ context.Context, ch course.Chapter, _ ...core.DBExecutor) (course.Chapter, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.chapters[ch.ChapterID]; !ok {
		return course.Chapter{}, course.ErrChapterNotFound
	}
	if _, ok := repo.db.sections[ch.SectionID]; !ok {
		return course.Chapter{}, course.ErrSectionNotFound
	}
	ch.Comments = nil
	repo.db.chapters[ch.ChapterID] = ch
	return ch, nil
}

func (repo *courseRepository) DeleteChapters(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.deleteChapters(ids)
	return nil
}

// deleteChapters cascades to comments. Callers hold the write lock.
func (repo *courseRepository) deleteChapters(ids []string) {
	for _, id := range ids {
		for k, cmt := range repo.db.comments {
			if cmt.ChapterID == id {
				delete(repo.db.comments, k)
			}
		}
		delete(repo.db.chapters, id)
	}
}

func (repo *courseRepository) CreateComment(_ context.Context, cmt course.Comment, _ ...core.DBExecutor) (course.Comment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.chapters[cmt.ChapterID]; !ok {
		return course.Comment{}, course.ErrChapterNotFound
	}
	if cmt.CommentID == "" {
		cmt.CommentID = uuid.New().String()
	}
	repo.db.comments[cmt.CommentID] = cmt
	return cmt, nil
}
