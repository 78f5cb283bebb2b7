package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/course"
)

// Payment providers
const (
	ProviderStripe = "stripe"
)

var Providers = []string{ProviderStripe}

type Transaction struct {
	TransactionID   string    `json:"transactionId"`
	UserID          string    `json:"userId"`
	CourseID        string    `json:"courseId"`
	DateTime        time.Time `json:"dateTime"` // UTC
	PaymentProvider string    `json:"paymentProvider"`
	Amount          int64     `json:"amount"` // cents
}

type UserCourseProgress struct {
	ID                    string            `json:"id"`
	UserID                string            `json:"userId"`
	CourseID              string            `json:"courseId"`
	EnrollmentDate        time.Time         `json:"enrollmentDate"`        // UTC
	OverallProgress       float64           `json:"overallProgress"`       // 0..100
	LastAccessedTimestamp time.Time         `json:"lastAccessedTimestamp"` // UTC
	Sections              []SectionProgress `json:"sections"`
}

type SectionProgress struct {
	ID        string            `json:"id"`
	SectionID string            `json:"sectionId"`
	Chapters  []ChapterProgress `json:"chapters"`
}

type ChapterProgress struct {
	ID        string `json:"id"`
	ChapterID string `json:"chapterId"`
	Completed bool   `json:"completed"`
}

// NewProgress returns the progress of a fresh enrollment in crs: every chapter not completed.
func NewProgress(crs course.Course, userID string, now time.Time, newID func() string) UserCourseProgress {
	p := UserCourseProgress{
		ID:                    newID(),
		UserID:                userID,
		CourseID:              crs.CourseID,
		EnrollmentDate:        now,
		LastAccessedTimestamp: now,
		Sections:              make([]SectionProgress, 0, len(crs.Sections)),
	}
	for _, sec := range crs.Sections {
		sp := SectionProgress{
			ID:        newID(),
			SectionID: sec.SectionID,
			Chapters:  make([]ChapterProgress, 0, len(sec.Chapters)),
		}
		for _, ch := range sec.Chapters {
			sp.Chapters = append(sp.Chapters, ChapterProgress{ID: newID(), ChapterID: ch.ChapterID})
		}
		p.Sections = append(p.Sections, sp)
	}
	return p
}

// Merge sets the completion flags of upd on the progress tree, adding the chapters of crs it
// does not track yet, then recomputes OverallProgress against the current chapters of crs.
// Sections and chapters that are not part of crs are ignored.
func (p *UserCourseProgress) Merge(crs course.Course, upd ProgressUpdate, newID func() string) {
	chapters := courseChapters(crs)
	for _, su := range upd.Sections {
		for _, cu := range su.Chapters {
			if sectionID, ok := chapters[cu.ChapterID]; !ok || sectionID != su.SectionID {
				continue
			}
			si := p.sectionIndex(su.SectionID)
			if si < 0 {
				p.Sections = append(p.Sections, SectionProgress{ID: newID(), SectionID: su.SectionID})
				si = len(p.Sections) - 1
			}
			sec := &p.Sections[si]
			ci := sec.chapterIndex(cu.ChapterID)
			if ci < 0 {
				sec.Chapters = append(sec.Chapters, ChapterProgress{ID: newID(), ChapterID: cu.ChapterID})
				ci = len(sec.Chapters) - 1
			}
			sec.Chapters[ci].Completed = cu.Completed
		}
	}
	p.OverallProgress = p.computeOverall(chapters)
}

// courseChapters maps the chapter IDs of crs to their section ID.
func courseChapters(crs course.Course) map[string]string {
	chapters := make(map[string]string)
	for _, sec := range crs.Sections {
		for _, ch := range sec.Chapters {
			chapters[ch.ChapterID] = sec.SectionID
		}
	}
	return chapters
}

func (p UserCourseProgress) sectionIndex(sectionID string) int {
	for i, sec := range p.Sections {
		if sec.SectionID == sectionID {
			return i
		}
	}
	return -1
}

func (s SectionProgress) chapterIndex(chapterID string) int {
	for i, ch := range s.Chapters {
		if ch.ChapterID == chapterID {
			return i
		}
	}
	return -1
}

// computeOverall returns the percentage of chapters completed, 0 when there are none.
func (p UserCourseProgress) computeOverall(chapters map[string]string) float64 {
	if len(chapters) == 0 {
		return 0
	}
	var completed int
	for _, sec := range p.Sections {
		for _, ch := range sec.Chapters {
			if ch.Completed && chapters[ch.ChapterID] == sec.SectionID {
				completed++
			}
		}
	}
	return float64(completed) / float64(len(chapters)) * 100
}

// NewTransaction contains information needed to record a purchase.
type NewTransaction struct {
	UserID          string `json:"userId" validate:"required,notblank"`
	CourseID        string `json:"courseId" validate:"required,notblank"`
	TransactionID   string `json:"transactionId" validate:"required,notblank"`
	Amount          int64  `json:"amount" validate:"min=0"`
	PaymentProvider string `json:"paymentProvider" validate:"required,paymentprovider"`
}

func (nt *NewTransaction) Validate(validate *validator.Validate) error {
	nt.UserID = core.CleanString(nt.UserID)
	nt.CourseID = core.CleanString(nt.CourseID)
	nt.TransactionID = core.CleanString(nt.TransactionID)
	nt.PaymentProvider = core.CleanString(nt.PaymentProvider, true /* lower */)
	return validate.Struct(nt)
}

// ProgressUpdate carries chapter completion flags for one enrollment.
type ProgressUpdate struct {
	UserID   string                  `json:"userId" validate:"required,notblank"`
	CourseID string                  `json:"courseId" validate:"required,notblank"`
	Sections []SectionProgressUpdate `json:"sections" validate:"dive"`
}

type SectionProgressUpdate struct {
	SectionID string                  `json:"sectionId" validate:"required,notblank"`
	Chapters  []ChapterProgressUpdate `json:"chapters" validate:"dive"`
}

type ChapterProgressUpdate struct {
	ChapterID string `json:"chapterId" validate:"required,notblank"`
	Completed bool   `json:"completed"`
}

func (pu *ProgressUpdate) Validate(validate *validator.Validate) error {
	pu.UserID = core.CleanString(pu.UserID)
	pu.CourseID = core.CleanString(pu.CourseID)
	return validate.Struct(pu)
}

// PurchaseResult is what a recorded purchase produced.
type PurchaseResult struct {
	Transaction    Transaction        `json:"transaction"`
	CourseProgress UserCourseProgress `json:"courseProgress"`
}
