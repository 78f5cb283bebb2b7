package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/course"
)

const (
	courseColumns  = "course_id, teacher_id, teacher_name, title, description, category, image, price, level, status, created_at, updated_at"
	sectionColumns = `section_id, course_id, section_title, section_description, "order"`
	chapterColumns = `chapter_id, section_id, type, title, content, video, video_length, video_type, video_unique_id, video_url, "order"`
	commentColumns = "comment_id, chapter_id, user_id, text, timestamp"
)

var errPurchasedCourse = core.NewConflictError("course has been purchased and cannot be deleted")

type (
	courseRow struct {
		CourseID    string      `db:"course_id"`
		TeacherID   string      `db:"teacher_id"`
		TeacherName string      `db:"teacher_name"`
		Title       string      `db:"title"`
		Description null.String `db:"description"`
		Category    string      `db:"category"`
		Image       null.String `db:"image"`
		Price       int64       `db:"price"`
		Level       string      `db:"level"`
		Status      string      `db:"status"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}

	sectionRow struct {
		SectionID          string      `db:"section_id"`
		CourseID           string      `db:"course_id"`
		SectionTitle       string      `db:"section_title"`
		SectionDescription null.String `db:"section_description"`
		Order              int         `db:"order"`
	}

	chapterRow struct {
		ChapterID     string      `db:"chapter_id"`
		SectionID     string      `db:"section_id"`
		Type          string      `db:"type"`
		Title         string      `db:"title"`
		Content       string      `db:"content"`
		Video         null.String `db:"video"`
		VideoLength   null.Int    `db:"video_length"`
		VideoType     null.String `db:"video_type"`
		VideoUniqueID null.String `db:"video_unique_id"`
		VideoURL      null.String `db:"video_url"`
		Order         int         `db:"order"`
	}

	commentRow struct {
		CommentID string    `db:"comment_id"`
		ChapterID string    `db:"chapter_id"`
		UserID    string    `db:"user_id"`
		Text      string    `db:"text"`
		Timestamp time.Time `db:"timestamp"`
	}

	enrollmentRow struct {
		ID       string `db:"id"`
		UserID   string `db:"user_id"`
		CourseID string `db:"course_id"`
	}
)

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func wrapCourse(c course.Course) courseRow {
	return courseRow{
		CourseID:    c.CourseID,
		TeacherID:   c.TeacherID,
		TeacherName: c.TeacherName,
		Title:       c.Title,
		Description: nullString(c.Description),
		Category:    c.Category,
		Image:       nullString(c.Image),
		Price:       c.Price,
		Level:       c.Level,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

func (r courseRow) unwrap() course.Course {
	return course.Course{
		CourseID:    r.CourseID,
		TeacherID:   r.TeacherID,
		TeacherName: r.TeacherName,
		Title:       r.Title,
		Description: r.Description.String,
		Category:    r.Category,
		Image:       r.Image.String,
		Price:       r.Price,
		Level:       r.Level,
		Status:      r.Status,
		Sections:    []course.Section{},
		Enrollments: []course.Enrollment{},
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func wrapSection(s course.Section) sectionRow {
	return sectionRow{
		SectionID:          s.SectionID,
		CourseID:           s.CourseID,
		SectionTitle:       s.SectionTitle,
		SectionDescription: nullString(s.SectionDescription),
		Order:              s.Order,
	}
}

func (r sectionRow) unwrap() course.Section {
	return course.Section{
		SectionID:          r.SectionID,
		CourseID:           r.CourseID,
		SectionTitle:       r.SectionTitle,
		SectionDescription: r.SectionDescription.String,
		Order:              r.Order,
		Chapters:           []course.Chapter{},
	}
}

func wrapChapter(ch course.Chapter) chapterRow {
	return chapterRow{
		ChapterID:     ch.ChapterID,
		SectionID:     ch.SectionID,
		Type:          ch.Type,
		Title:         ch.Title,
		Content:       ch.Content,
		Video:         nullString(ch.Video),
		VideoLength:   null.IntFromPtr(ch.VideoLength),
		VideoType:     nullString(ch.VideoType),
		VideoUniqueID: nullString(ch.VideoUniqueID),
		VideoURL:      nullString(ch.VideoURL),
		Order:         ch.Order,
	}
}

func (r chapterRow) unwrap() course.Chapter {
	return course.Chapter{
		ChapterID:     r.ChapterID,
		SectionID:     r.SectionID,
		Type:          r.Type,
		Title:         r.Title,
		Content:       r.Content,
		Video:         r.Video.String,
		VideoLength:   r.VideoLength.Ptr(),
		VideoType:     r.VideoType.String,
		VideoUniqueID: r.VideoUniqueID.String,
		VideoURL:      r.VideoURL.String,
		Order:         r.Order,
	}
}

func (r commentRow) unwrap() course.Comment {
	return course.Comment{
		CommentID: r.CommentID,
		ChapterID: r.ChapterID,
		UserID:    r.UserID,
		Text:      r.Text,
		Timestamp: r.Timestamp.UTC(),
	}
}

type courseRepository struct {
	baseRepository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db core.DBExecutor) course.Repository {
	return &courseRepository{baseRepository{db: db}}
}

// selectIn runs a "... IN (?)" query over ids.
func selectIn(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, ids []string) error {
	q, args, err := sqlx.In(query, ids)
	if err != nil {
		return err
	}
	return exec.SelectContext(ctx, dest, exec.Rebind(q), args...)
}

// loadChapters returns the chapters of the given sections, by section ID.
func (repo courseRepository) loadChapters(ctx context.Context, exec core.DBExecutor, sectionIDs []string, withComments bool) (map[string][]course.Chapter, error) {
	bySection := make(map[string][]course.Chapter)
	if len(sectionIDs) == 0 {
		return bySection, nil
	}

	var rows []chapterRow
	q := "SELECT " + chapterColumns + ` FROM chapters WHERE section_id IN (?) ORDER BY "order", chapter_id`
	if err := selectIn(ctx, exec, &rows, q, sectionIDs); err != nil {
		return nil, errors.Wrap(err, "selecting chapters")
	}

	comments := make(map[string][]course.Comment)
	if withComments && len(rows) > 0 {
		chapterIDs := make([]string, 0, len(rows))
		for _, r := range rows {
			chapterIDs = append(chapterIDs, r.ChapterID)
		}
		var cmtRows []commentRow
		q := "SELECT " + commentColumns + " FROM comments WHERE chapter_id IN (?) ORDER BY timestamp, comment_id"
		if err := selectIn(ctx, exec, &cmtRows, q, chapterIDs); err != nil {
			return nil, errors.Wrap(err, "selecting comments")
		}
		for _, r := range cmtRows {
			comments[r.ChapterID] = append(comments[r.ChapterID], r.unwrap())
		}
	}

	for _, r := range rows {
		ch := r.unwrap()
		if withComments {
			ch.Comments = comments[ch.ChapterID]
			if ch.Comments == nil {
				ch.Comments = []course.Comment{}
			}
		}
		bySection[ch.SectionID] = append(bySection[ch.SectionID], ch)
	}
	return bySection, nil
}

// loadTrees attaches sections, chapters and enrollments to courses.
func (repo courseRepository) loadTrees(ctx context.Context, exec core.DBExecutor, courses []course.Course, withComments bool) error {
	if len(courses) == 0 {
		return nil
	}
	courseIDs := make([]string, 0, len(courses))
	for _, c := range courses {
		courseIDs = append(courseIDs, c.CourseID)
	}

	var secRows []sectionRow
	q := "SELECT " + sectionColumns + ` FROM sections WHERE course_id IN (?) ORDER BY "order", section_id`
	if err := selectIn(ctx, exec, &secRows, q, courseIDs); err != nil {
		return errors.Wrap(err, "selecting sections")
	}
	sectionIDs := make([]string, 0, len(secRows))
	for _, r := range secRows {
		sectionIDs = append(sectionIDs, r.SectionID)
	}
	chapters, err := repo.loadChapters(ctx, exec, sectionIDs, withComments)
	if err != nil {
		return err
	}

	var enrRows []enrollmentRow
	q = "SELECT id, user_id, course_id FROM enrollments WHERE course_id IN (?) ORDER BY id"
	if err := selectIn(ctx, exec, &enrRows, q, courseIDs); err != nil {
		return errors.Wrap(err, "selecting enrollments")
	}

	sections := make(map[string][]course.Section)
	for _, r := range secRows {
		sec := r.unwrap()
		if chs, ok := chapters[sec.SectionID]; ok {
			sec.Chapters = chs
		}
		sections[sec.CourseID] = append(sections[sec.CourseID], sec)
	}
	enrollments := make(map[string][]course.Enrollment)
	for _, r := range enrRows {
		enrollments[r.CourseID] = append(enrollments[r.CourseID], course.Enrollment(r))
	}

	for i := range courses {
		if secs, ok := sections[courses[i].CourseID]; ok {
			courses[i].Sections = secs
		}
		if enrs, ok := enrollments[courses[i].CourseID]; ok {
			courses[i].Enrollments = enrs
		}
	}
	return nil
}

func (repo courseRepository) selectCourses(ctx context.Context, exec core.DBExecutor, q string, args ...interface{}) ([]course.Course, error) {
	var rows []courseRow
	if err := exec.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.unwrap())
	}
	return courses, nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, page core.Pagination, exec ...core.DBExecutor) ([]course.Course, error) {
	ex := repo.getExec(exec)
	q := "SELECT " + courseColumns + " FROM courses" +
		" WHERE ($1 = '' OR category = $1) AND ($2 = '' OR title ILIKE $2 ESCAPE '\\')" +
		" ORDER BY created_at, course_id"
	q, args := paginate(q, []interface{}{filter.Category, containsPattern(filter.Search)}, page)

	courses, err := repo.selectCourses(ctx, ex, q, args...)
	if err != nil {
		return nil, err
	}
	if err = repo.loadTrees(ctx, ex, courses, false); err != nil {
		return nil, err
	}
	return courses, nil
}

func (repo courseRepository) GetCourseByID(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	ex := repo.getExec(exec)
	var r courseRow
	if err := ex.GetContext(ctx, &r, "SELECT "+courseColumns+" FROM courses WHERE course_id = $1", id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrCourseNotFound, "selecting course")
	}
	courses := []course.Course{r.unwrap()}
	if err := repo.loadTrees(ctx, ex, courses, true); err != nil {
		return course.Course{}, err
	}
	return courses[0], nil
}

func (repo courseRepository) GetCoursesByIDs(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]course.Course, error) {
	if len(ids) == 0 {
		return []course.Course{}, nil
	}
	ex := repo.getExec(exec)
	q, args, err := sqlx.In("SELECT "+courseColumns+" FROM courses WHERE course_id IN (?) ORDER BY created_at, course_id", ids)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	courses, err := repo.selectCourses(ctx, ex, ex.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	if err = repo.loadTrees(ctx, ex, courses, false); err != nil {
		return nil, err
	}
	return courses, nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	q := `INSERT INTO courses (` + courseColumns + `)
		VALUES (:course_id, :teacher_id, :teacher_name, :title, :description, :category, :image, :price, :level, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, wrapCourse(crs)); err != nil {
		return course.Course{}, trapConstraintErr(err, "inserting course")
	}
	crs.Sections = []course.Section{}
	crs.Enrollments = []course.Enrollment{}
	return crs, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	q := `UPDATE courses SET
			title = :title, description = :description, category = :category, image = :image,
			price = :price, level = :level, status = :status, updated_at = :updated_at
		WHERE course_id = :course_id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, wrapCourse(crs))
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if err = checkAffected(res, course.ErrCourseNotFound); err != nil {
		return course.Course{}, err
	}
	return crs, nil
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM courses WHERE course_id = $1", id)
	if err != nil {
		if pqCode(err) == fkViolation {
			return errPurchasedCourse
		}
		return errors.Wrap(err, "deleting course")
	}
	return checkAffected(res, course.ErrCourseNotFound)
}

func (repo courseRepository) GetSectionByID(ctx context.Context, id string, exec ...core.DBExecutor) (course.Section, error) {
	ex := repo.getExec(exec)
	var r sectionRow
	if err := ex.GetContext(ctx, &r, "SELECT "+sectionColumns+" FROM sections WHERE section_id = $1", id); err != nil {
		return course.Section{}, trapNoRowsErr(err, course.ErrSectionNotFound, "selecting section")
	}
	sec := r.unwrap()
	chapters, err := repo.loadChapters(ctx, ex, []string{id}, false)
	if err != nil {
		return course.Section{}, err
	}
	if chs, ok := chapters[id]; ok {
		sec.Chapters = chs
	}
	return sec, nil
}

func (repo courseRepository) CreateSection(ctx context.Context, sec course.Section, exec ...core.DBExecutor) (course.Section, error) {
	q := `INSERT INTO sections (` + sectionColumns + `)
		VALUES (:section_id, :course_id, :section_title, :section_description, :order)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, wrapSection(sec)); err != nil {
		if pqCode(err) == fkViolation {
			return course.Section{}, course.ErrCourseNotFound
		}
		return course.Section{}, trapConstraintErr(err, "inserting section")
	}
	sec.Chapters = []course.Chapter{}
	return sec, nil
}

func (repo courseRepository) UpdateSection(ctx context.Context, sec course.Section, exec ...core.DBExecutor) (course.Section, error) {
	q := `UPDATE sections SET
			section_title = :section_title, section_description = :section_description, "order" = :order
		WHERE section_id = :section_id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, wrapSection(sec))
	if err != nil {
		return course.Section{}, errors.Wrap(err, "updating section")
	}
	if err = checkAffected(res, course.ErrSectionNotFound); err != nil {
		return course.Section{}, err
	}
	return sec, nil
}

func (repo courseRepository) deleteIn(ctx context.Context, exec []core.DBExecutor, query string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ex := repo.getExec(exec)
	q, args, err := sqlx.In(query, ids)
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = ex.ExecContext(ctx, ex.Rebind(q), args...)
	return err
}

func (repo courseRepository) DeleteSections(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	err := repo.deleteIn(ctx, exec, "DELETE FROM sections WHERE section_id IN (?)", ids)
	return errors.Wrap(err, "deleting sections")
}

func (repo courseRepository) GetChapterByID(ctx context.Context, id string, exec ...core.DBExecutor) (course.Chapter, error) {
	var r chapterRow
	if err := repo.getExec(exec).GetContext(ctx, &r, "SELECT "+chapterColumns+" FROM chapters WHERE chapter_id = $1", id); err != nil {
		return course.Chapter{}, trapNoRowsErr(err, course.ErrChapterNotFound, "selecting chapter")
	}
	return r.unwrap(), nil
}

func (repo courseRepository) CreateChapter(ctx context.Context, ch course.Chapter, exec ...core.DBExecutor) (course.Chapter, error) {
	q := `INSERT INTO chapters (` + chapterColumns + `)
		VALUES (:chapter_id, :section_id, :type, :title, :content, :video, :video_length, :video_type, :video_unique_id, :video_url, :order)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, wrapChapter(ch)); err != nil {
		if pqCode(err) == fkViolation {
			return course.Chapter{}, course.ErrSectionNotFound
		}
		return course.Chapter{}, trapConstraintErr(err, "inserting chapter")
	}
	return ch, nil
}

func (repo courseRepository) UpdateChapter(ctx context.Context, ch course.Chapter, exec ...core.DBExecutor) (course.Chapter, error) {
	q := `UPDATE chapters SET
			section_id = :section_id, type = :type, title = :title, content = :content,
			video = :video, video_length = :video_length, video_type = :video_type,
			video_unique_id = :video_unique_id, video_url = :video_url, "order" = :order
		WHERE chapter_id = :chapter_id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, wrapChapter(ch))
	if err != nil {
		if pqCode(err) == fkViolation {
			return course.Chapter{}, course.ErrSectionNotFound
		}
		return course.Chapter{}, errors.Wrap(err, "updating chapter")
	}
	if err = checkAffected(res, course.ErrChapterNotFound); err != nil {
		return course.Chapter{}, err
	}
	return ch, nil
}

func (repo courseRepository) DeleteChapters(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	err := repo.deleteIn(ctx, exec, "DELETE FROM chapters WHERE chapter_id IN (?)", ids)
	return errors.Wrap(err, "deleting chapters")
}

func (repo courseRepository) CreateComment(ctx context.Context, cmt course.Comment, exec ...core.DBExecutor) (course.Comment, error) {
	q := "INSERT INTO comments (" + commentColumns + ") VALUES ($1, $2, $3, $4, $5)"
	_, err := repo.getExec(exec).ExecContext(ctx, q, cmt.CommentID, cmt.ChapterID, cmt.UserID, cmt.Text, cmt.Timestamp.UTC())
	if err != nil {
		if pqCode(err) == fkViolation {
			return course.Comment{}, course.ErrChapterNotFound
		}
		return course.Comment{}, trapConstraintErr(err, "inserting comment")
	}
	return cmt, nil
}
