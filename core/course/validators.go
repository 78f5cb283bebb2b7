package course

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soma/core"
)

var (
	statusTag  = "coursestatus"
	statusText = "must be one of: Draft, Published"

	levelTag  = "courselevel"
	levelText = "must be one of: Beginner, Intermediate, Advanced"

	chapterTypeTag  = "chaptertype"
	chapterTypeText = "must be one of: Text, Quiz, Video"
)

// InitValidators registers the course validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, core.OneOfValidation(Statuses...))
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)

	_ = validate.RegisterValidation(levelTag, core.OneOfValidation(Levels...))
	core.RegisterCustomTranslation(validate, translator, levelTag, levelText)

	_ = validate.RegisterValidation(chapterTypeTag, core.OneOfValidation(ChapterTypes...))
	core.RegisterCustomTranslation(validate, translator, chapterTypeTag, chapterTypeText)
}

