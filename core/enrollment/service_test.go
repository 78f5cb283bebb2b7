package enrollment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/course"
	"github.com/trezcool/soma/core/enrollment"
	"github.com/trezcool/soma/core/user"
	appfs "github.com/trezcool/soma/fs"
	"github.com/trezcool/soma/services/email"
	"github.com/trezcool/soma/storage/database/inmem"
	"github.com/trezcool/soma/tests"
)

type fixture struct {
	repo       enrollment.Repository
	crsRepo    course.Repository
	svc        enrollment.Service
	newService func(repo enrollment.Repository) enrollment.Service
	student    user.User
	crs        course.Course
}

func setUp(t *testing.T) fixture {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf.FrontendBaseURL, true, logger)
	emailsvc.ResetSentMessages()

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	crsRepo := inmemdb.NewCourseRepository(db)
	repo := inmemdb.NewEnrollmentRepository(db)

	teacher := testutil.CreateUser(t, usrRepo, "user_teacher", "Teacher", "teacher@test.io")
	student := testutil.CreateUser(t, usrRepo, "user_student", "Student", "student@test.io")

	crs := testutil.CreateCourse(t, crsRepo, teacher, "Go Basics", testutil.WithPrice(4999))
	sec1 := testutil.CreateSection(t, crsRepo, crs.CourseID, "Intro", 0)
	sec2 := testutil.CreateSection(t, crsRepo, crs.CourseID, "Types", 1)
	testutil.CreateChapter(t, crsRepo, sec1.SectionID, "Hello", 0)
	testutil.CreateChapter(t, crsRepo, sec1.SectionID, "Setup", 1)
	testutil.CreateChapter(t, crsRepo, sec2.SectionID, "Ints", 0)
	testutil.CreateChapter(t, crsRepo, sec2.SectionID, "Strings", 1)

	newService := func(repo enrollment.Repository) enrollment.Service {
		return enrollment.NewService(repo, crsRepo, usrRepo, db, emailsvc.NewConsoleServiceMock(conf, logger), logger)
	}
	return fixture{
		repo:       repo,
		crsRepo:    crsRepo,
		svc:        newService(repo),
		newService: newService,
		student:    student,
		crs:        testutil.GetCourse(t, crsRepo, crs.CourseID),
	}
}

// staleRepo misses the first lookups, like a transaction that started before a concurrent
// purchase committed.
type staleRepo struct {
	enrollment.Repository
	misses int
}

func (r *staleRepo) GetTransactionByID(ctx context.Context, id string, exec ...core.DBExecutor) (enrollment.Transaction, error) {
	if r.misses > 0 {
		return enrollment.Transaction{}, enrollment.ErrTransactionNotFound
	}
	return r.Repository.GetTransactionByID(ctx, id, exec...)
}

func (r *staleRepo) GetEnrollment(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (course.Enrollment, error) {
	if r.misses > 0 {
		r.misses--
		return course.Enrollment{}, enrollment.ErrEnrollmentNotFound
	}
	return r.Repository.GetEnrollment(ctx, userID, courseID, exec...)
}

func (f fixture) newTransaction(id string) enrollment.NewTransaction {
	return enrollment.NewTransaction{
		UserID:          f.student.UserID,
		CourseID:        f.crs.CourseID,
		TransactionID:   id,
		Amount:          f.crs.Price,
		PaymentProvider: enrollment.ProviderStripe,
	}
}

func TestService_Purchase(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	enrollment.NowFunc = func() time.Time { return now }
	defer func() { enrollment.NowFunc = time.Now }()

	res, err := f.svc.Purchase(ctx, f.newTransaction("pi_1"))
	require.NoError(t, err)

	assert.Equal(t, enrollment.Transaction{
		TransactionID:   "pi_1",
		UserID:          f.student.UserID,
		CourseID:        f.crs.CourseID,
		DateTime:        now,
		PaymentProvider: enrollment.ProviderStripe,
		Amount:          4999,
	}, res.Transaction)

	p := res.CourseProgress
	assert.Equal(t, now, p.EnrollmentDate)
	assert.Zero(t, p.OverallProgress)
	require.Len(t, p.Sections, 2)
	for i, sec := range f.crs.Sections {
		assert.Equal(t, sec.SectionID, p.Sections[i].SectionID)
		require.Len(t, p.Sections[i].Chapters, len(sec.Chapters))
		for j, ch := range sec.Chapters {
			assert.Equal(t, ch.ChapterID, p.Sections[i].Chapters[j].ChapterID)
			assert.False(t, p.Sections[i].Chapters[j].Completed)
		}
	}

	enr, err := f.repo.GetEnrollment(ctx, f.student.UserID, f.crs.CourseID)
	require.NoError(t, err)
	assert.NotEmpty(t, enr.ID)

	msgs := emailsvc.GetSentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, f.student.Email, msgs[0].To[0].Address)
	assert.Contains(t, msgs[0].TextContent, "Go Basics")
	assert.Contains(t, msgs[0].TextContent, "$49.99")
	assert.Contains(t, msgs[0].HTMLContent, "pi_1")
}

func TestService_Purchase_Replay(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()

	first, err := f.svc.Purchase(ctx, f.newTransaction("pi_1"))
	require.NoError(t, err)

	t.Run("same purchase", func(t *testing.T) {
		again, err := f.svc.Purchase(ctx, f.newTransaction("pi_1"))
		require.NoError(t, err)
		assert.Equal(t, first, again)
		assert.Len(t, emailsvc.GetSentMessages(), 1)
	})

	t.Run("other user", func(t *testing.T) {
		nt := f.newTransaction("pi_1")
		nt.UserID = "user_other"
		_, err := f.svc.Purchase(ctx, nt)
		assert.Equal(t, enrollment.ErrTransactionMismatch, err)
	})

	t.Run("new transaction, same course", func(t *testing.T) {
		_, err := f.svc.Purchase(ctx, f.newTransaction("pi_2"))
		assert.Equal(t, enrollment.ErrAlreadyEnrolled, err)
		assert.True(t, core.IsConflict(err))

		_, err = f.repo.GetTransactionByID(ctx, "pi_2")
		assert.Equal(t, enrollment.ErrTransactionNotFound, err)
	})

	txs, err := f.svc.QueryTransactions(ctx, f.student.UserID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestService_Purchase_ConcurrentReplay(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()

	first, err := f.svc.Purchase(ctx, f.newTransaction("pi_1"))
	require.NoError(t, err)

	again, err := f.newService(&staleRepo{Repository: f.repo, misses: 1}).Purchase(ctx, f.newTransaction("pi_1"))
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Len(t, emailsvc.GetSentMessages(), 1)

	txs, err := f.svc.QueryTransactions(ctx, f.student.UserID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestService_Purchase_UnknownCourse(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()

	nt := f.newTransaction("pi_1")
	nt.CourseID = "nope"
	_, err := f.svc.Purchase(ctx, nt)
	assert.EqualError(t, err, "Course nope not found!")
	assert.True(t, core.IsNotFound(err))

	_, err = f.repo.GetTransactionByID(ctx, "pi_1")
	assert.Equal(t, enrollment.ErrTransactionNotFound, err)
	assert.Empty(t, emailsvc.GetSentMessages())
}

func TestService_QueryTransactions(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()

	other := testutil.CreateCourse(t, f.crsRepo, user.User{UserID: "user_teacher", Name: "Teacher"}, "Rust Basics")

	enrollment.NowFunc = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	_, err := f.svc.Purchase(ctx, f.newTransaction("pi_old"))
	require.NoError(t, err)

	enrollment.NowFunc = func() time.Time { return time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC) }
	nt := f.newTransaction("pi_new")
	nt.CourseID = other.CourseID
	_, err = f.svc.Purchase(ctx, nt)
	require.NoError(t, err)
	enrollment.NowFunc = time.Now

	tests := []struct {
		name   string
		userID string
		want   []string
	}{
		{name: "all", want: []string{"pi_new", "pi_old"}},
		{name: "by user", userID: f.student.UserID, want: []string{"pi_new", "pi_old"}},
		{name: "unknown user", userID: "nobody", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs, err := f.svc.QueryTransactions(ctx, tt.userID)
			require.NoError(t, err)
			ids := make([]string, 0, len(txs))
			for _, tx := range txs {
				ids = append(ids, tx.TransactionID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	courses, err := f.svc.QueryEnrolledCourses(ctx, f.student.UserID)
	require.NoError(t, err)
	assert.Len(t, courses, 2)

	courses, err = f.svc.QueryEnrolledCourses(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, courses)
}

func TestService_Progress(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()

	_, err := f.svc.GetProgress(ctx, f.student.UserID, f.crs.CourseID)
	assert.Equal(t, enrollment.ErrProgressNotFound, err)

	_, err = f.svc.Purchase(ctx, f.newTransaction("pi_1"))
	require.NoError(t, err)

	sec1, sec2 := f.crs.Sections[0], f.crs.Sections[1]
	p, err := f.svc.UpdateProgress(ctx, enrollment.ProgressUpdate{
		UserID:   f.student.UserID,
		CourseID: f.crs.CourseID,
		Sections: []enrollment.SectionProgressUpdate{
			{SectionID: sec1.SectionID, Chapters: []enrollment.ChapterProgressUpdate{
				{ChapterID: sec1.Chapters[0].ChapterID, Completed: true},
				{ChapterID: sec1.Chapters[1].ChapterID, Completed: true},
			}},
			{SectionID: sec2.SectionID, Chapters: []enrollment.ChapterProgressUpdate{
				{ChapterID: sec2.Chapters[0].ChapterID, Completed: true},
			}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(75), p.OverallProgress)

	got, err := f.svc.GetProgress(ctx, f.student.UserID, f.crs.CourseID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = f.svc.UpdateProgress(ctx, enrollment.ProgressUpdate{UserID: "nobody", CourseID: f.crs.CourseID})
	assert.Equal(t, enrollment.ErrProgressNotFound, err)
}

func TestService_UpdateProgress_CourseChanged(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, f.newTransaction("pi_1"))
	require.NoError(t, err)

	sec1, sec2 := f.crs.Sections[0], f.crs.Sections[1]
	require.NoError(t, f.crsRepo.DeleteChapters(ctx, []string{sec2.Chapters[1].ChapterID}))

	p, err := f.svc.UpdateProgress(ctx, enrollment.ProgressUpdate{
		UserID:   f.student.UserID,
		CourseID: f.crs.CourseID,
		Sections: []enrollment.SectionProgressUpdate{
			{SectionID: sec1.SectionID, Chapters: []enrollment.ChapterProgressUpdate{
				{ChapterID: sec1.Chapters[0].ChapterID, Completed: true},
				{ChapterID: sec1.Chapters[1].ChapterID, Completed: true},
			}},
			{SectionID: sec2.SectionID, Chapters: []enrollment.ChapterProgressUpdate{
				{ChapterID: sec2.Chapters[0].ChapterID, Completed: true},
			}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(100), p.OverallProgress)

	p, err = f.svc.UpdateProgress(ctx, enrollment.ProgressUpdate{
		UserID:   f.student.UserID,
		CourseID: f.crs.CourseID,
		Sections: []enrollment.SectionProgressUpdate{
			{SectionID: "not-a-section", Chapters: []enrollment.ChapterProgressUpdate{{ChapterID: "bogus", Completed: true}}},
			{SectionID: sec1.SectionID, Chapters: []enrollment.ChapterProgressUpdate{{ChapterID: sec2.Chapters[0].ChapterID, Completed: false}}},
		},
	})
	require.NoError(t, err)
	assert.Len(t, p.Sections, 2)
	assert.Equal(t, float64(100), p.OverallProgress)
}

func TestUserCourseProgress_Merge(t *testing.T) {
	var n int
	newID := func() string {
		n++
		return "id-" + string(rune('0'+n))
	}

	crs := course.Course{Sections: []course.Section{
		{SectionID: "s1", Chapters: []course.Chapter{{ChapterID: "c1"}, {ChapterID: "c2"}}},
		{SectionID: "s2", Chapters: []course.Chapter{{ChapterID: "c3"}}},
	}}
	p := enrollment.UserCourseProgress{
		Sections: []enrollment.SectionProgress{
			{ID: "sp1", SectionID: "s1", Chapters: []enrollment.ChapterProgress{
				{ID: "cp1", ChapterID: "c1"},
				{ID: "cp2", ChapterID: "c2", Completed: true},
				{ID: "cp0", ChapterID: "c0", Completed: true}, // deleted since
			}},
		},
	}

	p.Merge(crs, enrollment.ProgressUpdate{Sections: []enrollment.SectionProgressUpdate{
		{SectionID: "s1", Chapters: []enrollment.ChapterProgressUpdate{{ChapterID: "c2", Completed: false}}},
		{SectionID: "s2", Chapters: []enrollment.ChapterProgressUpdate{{ChapterID: "c3", Completed: true}}},
		{SectionID: "s9", Chapters: []enrollment.ChapterProgressUpdate{{ChapterID: "c9", Completed: true}}},
		{SectionID: "s2", Chapters: []enrollment.ChapterProgressUpdate{{ChapterID: "c1", Completed: true}}},
	}}, newID)

	assert.Equal(t, []enrollment.SectionProgress{
		{ID: "sp1", SectionID: "s1", Chapters: []enrollment.ChapterProgress{
			{ID: "cp1", ChapterID: "c1"},
			{ID: "cp2", ChapterID: "c2", Completed: false},
			{ID: "cp0", ChapterID: "c0", Completed: true},
		}},
		{ID: "id-1", SectionID: "s2", Chapters: []enrollment.ChapterProgress{
			{ID: "id-2", ChapterID: "c3", Completed: true},
		}},
	}, p.Sections)
	assert.InDelta(t, 100.0/3, p.OverallProgress, 1e-9)

	empty := enrollment.UserCourseProgress{}
	empty.Merge(course.Course{}, enrollment.ProgressUpdate{}, newID)
	assert.Zero(t, empty.OverallProgress)
}
