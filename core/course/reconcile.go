package course

import (
	"strings"

	"github.com/trezcool/soma/core"
)

// tmpIDMarker marks IDs generated by the editor for items that were never saved.
const tmpIDMarker = "dragId"

// Plan lists the writes needed to turn a stored course tree into a desired one.
type Plan struct {
	DeleteChapters []string
	CreateSections []Section
	UpdateSections []Section
	CreateChapters []Chapter
	UpdateChapters []Chapter
	DeleteSections []string
}

func (p Plan) IsEmpty() bool {
	return len(p.DeleteChapters) == 0 && len(p.DeleteSections) == 0 &&
		len(p.CreateSections) == 0 && len(p.UpdateSections) == 0 &&
		len(p.CreateChapters) == 0 && len(p.UpdateChapters) == 0
}

// Reconcile diffs the stored sections/chapters of existing against desired.
//
// Items whose ID is empty, a temporary editor ID, unknown to the course or already used earlier
// in desired get a fresh ID from newID and are created. Everything else is updated. Order is the
// position in desired. Stored items missing from desired are deleted.
//
// Apply the plan in field order: chapter deletes, section writes, chapter writes, section deletes.
// Deleting sections last keeps chapters that moved out of a removed section.
func Reconcile(existing Course, desired Structure, newID func() string) Plan {
	knownSections := make(map[string]bool, len(existing.Sections))
	knownChapters := make(map[string]bool)
	for _, sec := range existing.Sections {
		knownSections[sec.SectionID] = true
		for _, ch := range sec.Chapters {
			knownChapters[ch.ChapterID] = true
		}
	}

	var plan Plan
	keptSections := make(map[string]bool, len(desired.Sections))
	keptChapters := make(map[string]bool)

	for i, ds := range desired.Sections {
		sec := Section{
			CourseID:           existing.CourseID,
			SectionTitle:       core.CleanString(ds.SectionTitle),
			SectionDescription: core.CleanString(ds.SectionDescription),
			Order:              i,
		}
		if isNew(ds.SectionID, knownSections, keptSections) {
			sec.SectionID = newID()
			plan.CreateSections = append(plan.CreateSections, sec)
		} else {
			sec.SectionID = ds.SectionID
			plan.UpdateSections = append(plan.UpdateSections, sec)
		}
		keptSections[sec.SectionID] = true

		for j, dc := range ds.Chapters {
			ch := Chapter{SectionID: sec.SectionID, Order: j}
			dc.applyTo(&ch)
			if isNew(dc.ChapterID, knownChapters, keptChapters) {
				ch.ChapterID = newID()
				plan.CreateChapters = append(plan.CreateChapters, ch)
			} else {
				ch.ChapterID = dc.ChapterID
				plan.UpdateChapters = append(plan.UpdateChapters, ch)
			}
			keptChapters[ch.ChapterID] = true
		}
	}

	for _, sec := range existing.Sections {
		for _, ch := range sec.Chapters {
			if !keptChapters[ch.ChapterID] {
				plan.DeleteChapters = append(plan.DeleteChapters, ch.ChapterID)
			}
		}
		if !keptSections[sec.SectionID] {
			plan.DeleteSections = append(plan.DeleteSections, sec.SectionID)
		}
	}
	return plan
}

func isNew(id string, known, kept map[string]bool) bool {
	return id == "" || strings.Contains(id, tmpIDMarker) || !known[id] || kept[id]
}
