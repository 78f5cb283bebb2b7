package course_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/course"
	"github.com/trezcool/soma/core/user"
	"github.com/trezcool/soma/storage/database/inmem"
	"github.com/trezcool/soma/tests"
)

type fixture struct {
	db      *inmemdb.DB
	repo    course.Repository
	svc     course.Service
	teacher user.User
	other   user.User
}

func setUp(t *testing.T) fixture {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	repo := inmemdb.NewCourseRepository(db)
	return fixture{
		db:      db,
		repo:    repo,
		svc:     course.NewService(repo, db),
		teacher: testutil.CreateUser(t, usrRepo, "user_teacher", "Teacher", "teacher@test.io"),
		other:   testutil.CreateUser(t, usrRepo, "user_other", "Other", "other@test.io"),
	}
}

func strPtr(s string) *string { return &s }

func TestService_Create(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()

	t.Run("teacher mismatch", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.other.UserID, course.NewCourse{TeacherID: f.teacher.UserID, Title: "Go"})
		assert.Equal(t, course.ErrTeacherMismatch, err)
		assert.True(t, core.IsForbidden(err))
	})

	t.Run("defaults", func(t *testing.T) {
		crs, err := f.svc.Create(ctx, f.teacher.UserID, course.NewCourse{
			TeacherID:   f.teacher.UserID,
			TeacherName: f.teacher.Name,
			Title:       "  Go in Practice ",
			Category:    "Programming",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, crs.CourseID)
		assert.Equal(t, "Go in Practice", crs.Title)
		assert.Equal(t, course.StatusDraft, crs.Status)
		assert.Equal(t, course.LevelBeginner, crs.Level)
		assert.Zero(t, crs.Price)
		assert.Empty(t, crs.Sections)
	})
}

func TestService_Query(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()

	now := time.Now()
	goCrs := testutil.CreateCourse(t, f.repo, f.teacher, "Go Basics", testutil.CreatedAt(now))
	rustCrs := testutil.CreateCourse(t, f.repo, f.teacher, "Rust Basics",
		testutil.WithCategory("Systems"), testutil.CreatedAt(now.Add(time.Hour)))

	tests := []struct {
		name   string
		filter course.QueryFilter
		page   core.Pagination
		want   []string
	}{
		{name: "all", want: []string{goCrs.CourseID, rustCrs.CourseID}},
		{name: "category=all", filter: course.QueryFilter{Category: "all"}, want: []string{goCrs.CourseID, rustCrs.CourseID}},
		{name: "category", filter: course.QueryFilter{Category: "Systems"}, want: []string{rustCrs.CourseID}},
		{name: "search", filter: course.QueryFilter{Search: " go "}, want: []string{goCrs.CourseID}},
		{name: "search (unknown)", filter: course.QueryFilter{Search: "haskell"}, want: []string{}},
		{name: "page 2", page: core.Pagination{Page: 2, Limit: 1}, want: []string{rustCrs.CourseID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			courses, err := f.svc.Query(ctx, tt.filter, tt.page)
			require.NoError(t, err)
			ids := make([]string, 0, len(courses))
			for _, c := range courses {
				ids = append(ids, c.CourseID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestService_Get_NotFound(t *testing.T) {
	f := setUp(t)

	_, err := f.svc.Get(context.Background(), "nope")
	assert.True(t, core.IsNotFound(err))
	assert.EqualError(t, err, "Course nope not found!")
}

func TestService_Update(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.repo, f.teacher, "Go Basics")

	t.Run("not owner", func(t *testing.T) {
		_, err := f.svc.Update(ctx, f.other.UserID, crs.CourseID, course.UpdateCourse{Title: strPtr("Mine")})
		assert.Equal(t, course.ErrNotOwner, err)
	})

	t.Run("partial", func(t *testing.T) {
		price := int64(1999)
		got, err := f.svc.Update(ctx, f.teacher.UserID, crs.CourseID, course.UpdateCourse{
			Title: strPtr("Go Advanced"),
			Price: &price,
		})
		require.NoError(t, err)
		assert.Equal(t, "Go Advanced", got.Title)
		assert.Equal(t, price, got.Price)
		assert.Equal(t, crs.Category, got.Category)
		assert.Equal(t, crs.CreatedAt, got.CreatedAt)
	})
}

func TestService_Delete(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.repo, f.teacher, "Go Basics")
	sec := testutil.CreateSection(t, f.repo, crs.CourseID, "Intro", 0)
	ch := testutil.CreateChapter(t, f.repo, sec.SectionID, "Hello", 0)

	assert.Equal(t, course.ErrNotOwner, f.svc.Delete(ctx, f.other.UserID, crs.CourseID))
	require.NoError(t, f.svc.Delete(ctx, f.teacher.UserID, crs.CourseID))

	_, err := f.repo.GetChapterByID(ctx, ch.ChapterID)
	assert.Equal(t, course.ErrChapterNotFound, err)
	assert.True(t, core.IsNotFound(f.svc.Delete(ctx, f.teacher.UserID, crs.CourseID)))
}

func TestService_Sections(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.repo, f.teacher, "Go Basics")
	testutil.CreateSection(t, f.repo, crs.CourseID, "Intro", 0)

	_, err := f.svc.CreateSection(ctx, f.other.UserID, course.NewSection{CourseID: crs.CourseID, SectionTitle: "Nope"})
	assert.Equal(t, course.ErrNotOwner, err)

	sec, err := f.svc.CreateSection(ctx, f.teacher.UserID, course.NewSection{CourseID: crs.CourseID, SectionTitle: "Types"})
	require.NoError(t, err)
	assert.Equal(t, 1, sec.Order)

	sec, err = f.svc.UpdateSection(ctx, f.teacher.UserID, sec.SectionID, course.UpdateSection{
		SectionTitle:       "Types & Values",
		SectionDescription: "All about types",
	})
	require.NoError(t, err)
	assert.Equal(t, "Types & Values", sec.SectionTitle)
	assert.Equal(t, 1, sec.Order)

	_, err = f.svc.UpdateSection(ctx, f.teacher.UserID, "nope", course.UpdateSection{SectionTitle: "x"})
	assert.EqualError(t, err, "Section nope not found!")

	testutil.CreateChapter(t, f.repo, sec.SectionID, "Ints", 0)
	require.NoError(t, f.svc.DeleteSection(ctx, f.teacher.UserID, sec.SectionID))
	assert.Len(t, testutil.GetCourse(t, f.repo, crs.CourseID).Sections, 1)
}

func TestService_Chapters(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.repo, f.teacher, "Go Basics")
	sec := testutil.CreateSection(t, f.repo, crs.CourseID, "Intro", 0)
	testutil.CreateChapter(t, f.repo, sec.SectionID, "Hello", 0)

	_, err := f.svc.CreateChapter(ctx, f.teacher.UserID, course.NewChapter{
		SectionID:      "nope",
		ChapterContent: course.ChapterContent{Type: course.ChapterText, Title: "x"},
	})
	assert.EqualError(t, err, "Section nope not found!")

	length := 300
	ch, err := f.svc.CreateChapter(ctx, f.teacher.UserID, course.NewChapter{
		SectionID: sec.SectionID,
		ChapterContent: course.ChapterContent{
			Type:        course.ChapterVideo,
			Title:       "Setup",
			Video:       "https://cdn.test.io/videos/1/setup.mp4",
			VideoLength: &length,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ch.Order)
	assert.Equal(t, sec.SectionID, ch.SectionID)

	_, err = f.svc.UpdateChapter(ctx, f.other.UserID, ch.ChapterID, course.UpdateChapter{})
	assert.Equal(t, course.ErrNotOwner, err)

	ch, err = f.svc.UpdateChapter(ctx, f.teacher.UserID, ch.ChapterID, course.UpdateChapter{
		ChapterContent: course.ChapterContent{Type: course.ChapterText, Title: "Setup (text)", Content: "go install"},
	})
	require.NoError(t, err)
	assert.Equal(t, course.ChapterText, ch.Type)
	assert.Empty(t, ch.Video)
	assert.Equal(t, 1, ch.Order)

	require.NoError(t, f.svc.DeleteChapter(ctx, f.teacher.UserID, ch.ChapterID))
	assert.EqualError(t, f.svc.DeleteChapter(ctx, f.teacher.UserID, ch.ChapterID), "Chapter "+ch.ChapterID+" not found!")
}

func TestService_AddComment(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.repo, f.teacher, "Go Basics")
	sec := testutil.CreateSection(t, f.repo, crs.CourseID, "Intro", 0)
	ch := testutil.CreateChapter(t, f.repo, sec.SectionID, "Hello", 0)

	_, err := f.svc.AddComment(ctx, f.other.UserID, "nope", course.NewComment{Text: "hi"})
	assert.True(t, core.IsNotFound(err))

	cmt, err := f.svc.AddComment(ctx, f.other.UserID, ch.ChapterID, course.NewComment{Text: "Great intro"})
	require.NoError(t, err)
	assert.Equal(t, f.other.UserID, cmt.UserID)

	got := testutil.GetCourse(t, f.repo, crs.CourseID)
	require.Len(t, got.Sections[0].Chapters[0].Comments, 1)
	assert.Equal(t, "Great intro", got.Sections[0].Chapters[0].Comments[0].Text)
}

func TestService_SaveStructure(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.repo, f.teacher, "Go Basics")
	secA := testutil.CreateSection(t, f.repo, crs.CourseID, "A", 0)
	secB := testutil.CreateSection(t, f.repo, crs.CourseID, "B", 1)
	ch1 := testutil.CreateChapter(t, f.repo, secA.SectionID, "one", 0)
	ch2 := testutil.CreateChapter(t, f.repo, secA.SectionID, "two", 1)
	ch3 := testutil.CreateChapter(t, f.repo, secB.SectionID, "three", 0)

	text := func(title string) course.ChapterContent {
		return course.ChapterContent{Type: course.ChapterText, Title: title}
	}
	st := course.Structure{
		UpdateCourse: course.UpdateCourse{Title: strPtr("Go Basics (2nd ed.)")},
		Sections: []course.StructureSection{
			{
				SectionID:    secB.SectionID,
				SectionTitle: "B renamed",
				Chapters: []course.StructureChapter{
					{ChapterID: ch2.ChapterID, ChapterContent: text("two")},
					{ChapterID: "dragId-1700000000", ChapterContent: text("brand new")},
				},
			},
			{
				SectionTitle: "Fresh",
				Chapters: []course.StructureChapter{
					{ChapterID: ch3.ChapterID, ChapterContent: text("three")},
				},
			},
		},
	}

	t.Run("not owner", func(t *testing.T) {
		_, err := f.svc.SaveStructure(ctx, f.other.UserID, crs.CourseID, st)
		assert.Equal(t, course.ErrNotOwner, err)
	})

	t.Run("reconciled", func(t *testing.T) {
		got, err := f.svc.SaveStructure(ctx, f.teacher.UserID, crs.CourseID, st)
		require.NoError(t, err)

		assert.Equal(t, "Go Basics (2nd ed.)", got.Title)
		require.Len(t, got.Sections, 2)

		b := got.Sections[0]
		assert.Equal(t, secB.SectionID, b.SectionID)
		assert.Equal(t, "B renamed", b.SectionTitle)
		assert.Equal(t, 0, b.Order)
		require.Len(t, b.Chapters, 2)
		assert.Equal(t, ch2.ChapterID, b.Chapters[0].ChapterID)
		assert.Equal(t, 0, b.Chapters[0].Order)
		assert.Equal(t, "brand new", b.Chapters[1].Title)
		assert.NotContains(t, b.Chapters[1].ChapterID, "dragId")
		assert.Equal(t, 1, b.Chapters[1].Order)

		fresh := got.Sections[1]
		assert.Equal(t, "Fresh", fresh.SectionTitle)
		assert.NotEmpty(t, fresh.SectionID)
		require.Len(t, fresh.Chapters, 1)
		assert.Equal(t, ch3.ChapterID, fresh.Chapters[0].ChapterID)

		_, err = f.repo.GetSectionByID(ctx, secA.SectionID)
		assert.Equal(t, course.ErrSectionNotFound, err)
		_, err = f.repo.GetChapterByID(ctx, ch1.ChapterID)
		assert.Equal(t, course.ErrChapterNotFound, err)
	})

	t.Run("idempotent", func(t *testing.T) {
		before := testutil.GetCourse(t, f.repo, crs.CourseID)
		desired := course.Structure{Sections: make([]course.StructureSection, 0, len(before.Sections))}
		for _, sec := range before.Sections {
			ss := course.StructureSection{SectionID: sec.SectionID, SectionTitle: sec.SectionTitle}
			for _, ch := range sec.Chapters {
				ss.Chapters = append(ss.Chapters, course.StructureChapter{ChapterID: ch.ChapterID, ChapterContent: text(ch.Title)})
			}
			desired.Sections = append(desired.Sections, ss)
		}

		got, err := f.svc.SaveStructure(ctx, f.teacher.UserID, crs.CourseID, desired)
		require.NoError(t, err)
		assert.Equal(t, before.Sections, got.Sections)
	})
}
