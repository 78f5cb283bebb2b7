package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soma/core"
)

// Statuses
const (
	StatusDraft     = "Draft"
	StatusPublished = "Published"
)

// Levels
const (
	LevelBeginner     = "Beginner"
	LevelIntermediate = "Intermediate"
	LevelAdvanced     = "Advanced"
)

// Chapter types
const (
	ChapterText  = "Text"
	ChapterQuiz  = "Quiz"
	ChapterVideo = "Video"
)

var (
	Statuses     = []string{StatusDraft, StatusPublished}
	Levels       = []string{LevelBeginner, LevelIntermediate, LevelAdvanced}
	ChapterTypes = []string{ChapterText, ChapterQuiz, ChapterVideo}
)

type Course struct {
	CourseID    string       `json:"courseId"`
	TeacherID   string       `json:"teacherId"`
	TeacherName string       `json:"teacherName"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Image       string       `json:"image"`
	Price       int64        `json:"price"` // cents
	Level       string       `json:"level"`
	Status      string       `json:"status"`
	Sections    []Section    `json:"sections"`
	Enrollments []Enrollment `json:"enrollments"`
	CreatedAt   time.Time    `json:"createdAt"` // UTC
	UpdatedAt   time.Time    `json:"updatedAt"` // UTC
}

func (c Course) IsOwnedBy(userID string) bool {
	return userID != "" && c.TeacherID == userID
}

// ChapterCount returns the number of chapters across all sections.
func (c Course) ChapterCount() int {
	var n int
	for _, s := range c.Sections {
		n += len(s.Chapters)
	}
	return n
}

type Section struct {
	SectionID          string    `json:"sectionId"`
	CourseID           string    `json:"courseId"`
	SectionTitle       string    `json:"sectionTitle"`
	SectionDescription string    `json:"sectionDescription"`
	Order              int       `json:"order"`
	Chapters           []Chapter `json:"chapters"`
}

type Chapter struct {
	ChapterID     string    `json:"chapterId"`
	SectionID     string    `json:"sectionId"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Video         string    `json:"video,omitempty"`
	VideoLength   *int      `json:"videoLength,omitempty"` // seconds
	VideoType     string    `json:"videoType,omitempty"`
	VideoUniqueID string    `json:"videoUniqueId,omitempty"`
	VideoURL      string    `json:"videoUrl,omitempty"`
	Order         int       `json:"order"`
	Comments      []Comment `json:"comments,omitempty"`
}

type Comment struct {
	CommentID string    `json:"commentId"`
	ChapterID string    `json:"chapterId"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"` // UTC
}

// Enrollment is the read-only view of an enrollment attached to a course listing.
type Enrollment struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	CourseID string `json:"courseId"`
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	TeacherID   string `json:"teacherId" validate:"required,notblank"`
	TeacherName string `json:"teacherName" validate:"required,notblank"`
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"required,notblank"`
	Image       string `json:"image" validate:"omitempty,url"`
	Price       int64  `json:"price" validate:"min=0"`
	Level       string `json:"level" validate:"courselevel"`
	Status      string `json:"status" validate:"coursestatus"`
}

func (nc *NewCourse) Clean() {
	nc.TeacherID = core.CleanString(nc.TeacherID)
	nc.TeacherName = core.CleanString(nc.TeacherName)
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Category = core.CleanString(nc.Category)
	nc.Image = core.CleanString(nc.Image)
	if nc.Level == "" {
		nc.Level = LevelBeginner
	}
	if nc.Status == "" {
		nc.Status = StatusDraft
	}
}

// UpdateCourse defines what information may be provided to modify an existing Course.
// Nil fields are left unchanged.
type UpdateCourse struct {
	Title       *string `json:"title" validate:"omitempty,notblank"`
	Description *string `json:"description"`
	Category    *string `json:"category" validate:"omitempty,notblank"`
	Image       *string `json:"image" validate:"omitempty,url"`
	Price       *int64  `json:"price" validate:"omitempty,min=0"`
	Level       *string `json:"level" validate:"omitempty,courselevel"`
	Status      *string `json:"status" validate:"omitempty,coursestatus"`
}

func (uc *UpdateCourse) Apply(c *Course) {
	if uc.Title != nil {
		c.Title = core.CleanString(*uc.Title)
	}
	if uc.Description != nil {
		c.Description = core.CleanString(*uc.Description)
	}
	if uc.Category != nil {
		c.Category = core.CleanString(*uc.Category)
	}
	if uc.Image != nil {
		c.Image = core.CleanString(*uc.Image)
	}
	if uc.Price != nil {
		c.Price = *uc.Price
	}
	if uc.Level != nil {
		c.Level = *uc.Level
	}
	if uc.Status != nil {
		c.Status = *uc.Status
	}
}

type NewSection struct {
	CourseID           string `json:"courseId" validate:"required,notblank"`
	SectionTitle       string `json:"sectionTitle" validate:"required,notblank"`
	SectionDescription string `json:"sectionDescription"`
}

type UpdateSection struct {
	SectionTitle       string `json:"sectionTitle" validate:"required,notblank"`
	SectionDescription string `json:"sectionDescription"`
}

type ChapterContent struct {
	Type          string `json:"type" validate:"required,chaptertype"`
	Title         string `json:"title" validate:"required,notblank"`
	Content       string `json:"content"`
	Video         string `json:"video"`
	VideoLength   *int   `json:"videoLength" validate:"omitempty,min=0"`
	VideoType     string `json:"videoType"`
	VideoUniqueID string `json:"videoUniqueId"`
	VideoURL      string `json:"videoUrl" validate:"omitempty,url"`
}

func (cc ChapterContent) applyTo(ch *Chapter) {
	ch.Type = cc.Type
	ch.Title = core.CleanString(cc.Title)
	ch.Content = cc.Content
	ch.Video = cc.Video
	ch.VideoLength = cc.VideoLength
	ch.VideoType = cc.VideoType
	ch.VideoUniqueID = cc.VideoUniqueID
	ch.VideoURL = cc.VideoURL
}

type NewChapter struct {
	SectionID string `json:"sectionId" validate:"required,notblank"`
	ChapterContent
}

type UpdateChapter struct {
	ChapterContent
}

type NewComment struct {
	Text string `json:"text" validate:"required,notblank"`
}

// Structure is the desired state of a course as saved by the course editor.
type Structure struct {
	UpdateCourse
	Sections []StructureSection `json:"sections" validate:"dive"`
}

type StructureSection struct {
	SectionID          string             `json:"sectionId"`
	SectionTitle       string             `json:"sectionTitle" validate:"required,notblank"`
	SectionDescription string             `json:"sectionDescription"`
	Chapters           []StructureChapter `json:"chapters" validate:"dive"`
}

type StructureChapter struct {
	ChapterID string `json:"chapterId"`
	ChapterContent
}

type QueryFilter struct {
	Category string `query:"category"`
	Search   string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Category = core.CleanString(qf.Category)
	if qf.Category == "all" {
		qf.Category = ""
	}
	qf.Search = core.CleanString(qf.Search)
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Clean()
	return validate.Struct(nc)
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	return validate.Struct(uc)
}

func (ns *NewSection) Validate(validate *validator.Validate) error {
	ns.CourseID = core.CleanString(ns.CourseID)
	ns.SectionTitle = core.CleanString(ns.SectionTitle)
	ns.SectionDescription = core.CleanString(ns.SectionDescription)
	return validate.Struct(ns)
}

func (us *UpdateSection) Validate(validate *validator.Validate) error {
	us.SectionTitle = core.CleanString(us.SectionTitle)
	us.SectionDescription = core.CleanString(us.SectionDescription)
	return validate.Struct(us)
}

func (nc *NewChapter) Validate(validate *validator.Validate) error {
	nc.SectionID = core.CleanString(nc.SectionID)
	return validate.Struct(nc)
}

func (uc *UpdateChapter) Validate(validate *validator.Validate) error {
	return validate.Struct(uc)
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Text = core.CleanString(nc.Text)
	return validate.Struct(nc)
}

func (st *Structure) Validate(validate *validator.Validate) error {
	return validate.Struct(st)
}
