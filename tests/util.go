package testutil

import (
	"context"
	"io"
	"log"
	"net/mail"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/course"
	"github.com/trezcool/soma/core/enrollment"
	"github.com/trezcool/soma/core/media"
	"github.com/trezcool/soma/core/user"
	"github.com/trezcool/soma/services/logger"
)

// NewConfig returns the configuration used by tests.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:          "Soma",
		Env:              "TEST",
		Debug:            true,
		TestMode:         true,
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Soma", Address: "noreply@soma.test"},
		Server: core.ServerConfig{
			Host:            "localhost",
			ShutdownTimeout: time.Second,
			AllowedOrigins:  []string{"http://localhost:3000"},
		},
		Stripe: core.StripeConfig{
			Currency:  "usd",
			MinAmount: 50,
		},
		Storage: core.StorageConfig{
			Bucket:           "soma-test",
			CloudfrontDomain: "cdn.soma.test",
			UploadExpiration: time.Minute,
		},
	}
}

// NewLogger returns a logger writing nowhere.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	media.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(t *testing.T, repo user.Repository, id, name, email string, createdAt ...time.Time) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr, err := repo.UpsertUser(context.Background(), user.User{
		UserID:    id,
		Email:     email,
		Name:      name,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CourseOpt customizes a course before it is stored.
type CourseOpt func(*course.Course)

func WithPrice(cents int64) CourseOpt {
	return func(c *course.Course) { c.Price = cents }
}

func WithCategory(category string) CourseOpt {
	return func(c *course.Course) { c.Category = category }
}

func WithStatus(status string) CourseOpt {
	return func(c *course.Course) { c.Status = status }
}

func CreatedAt(tstamp time.Time) CourseOpt {
	return func(c *course.Course) {
		c.CreatedAt = tstamp.UTC()
		c.UpdatedAt = tstamp.UTC()
	}
}

func CreateCourse(t *testing.T, repo course.Repository, teacher user.User, title string, opts ...CourseOpt) course.Course {
	now := time.Now().UTC()
	crs := course.Course{
		CourseID:    uuid.New().String(),
		TeacherID:   teacher.UserID,
		TeacherName: teacher.Name,
		Title:       title,
		Category:    "Programming",
		Level:       course.LevelBeginner,
		Status:      course.StatusPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, opt := range opts {
		opt(&crs)
	}
	crs, err := repo.CreateCourse(context.Background(), crs)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateSection(t *testing.T, repo course.Repository, courseID, title string, order int) course.Section {
	sec, err := repo.CreateSection(context.Background(), course.Section{
		SectionID:    uuid.New().String(),
		CourseID:     courseID,
		SectionTitle: title,
		Order:        order,
	})
	if err != nil {
		t.Fatalf("CreateSection() failed: %v", err)
	}
	return sec
}

func CreateChapter(t *testing.T, repo course.Repository, sectionID, title string, order int) course.Chapter {
	ch, err := repo.CreateChapter(context.Background(), course.Chapter{
		ChapterID: uuid.New().String(),
		SectionID: sectionID,
		Type:      course.ChapterText,
		Title:     title,
		Content:   title + " content",
		Order:     order,
	})
	if err != nil {
		t.Fatalf("CreateChapter() failed: %v", err)
	}
	return ch
}

// GetCourse returns the stored course tree.
func GetCourse(t *testing.T, repo course.Repository, id string) course.Course {
	crs, err := repo.GetCourseByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetCourse() failed: %v", err)
	}
	return crs
}
