package user

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soma/core"
)

var (
	userTypeTag  = "usertype"
	userTypeText = "must be one of: student, teacher"
)

// InitValidators registers the user validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(userTypeTag, core.OneOfValidation(Types...))
	core.RegisterCustomTranslation(validate, translator, userTypeTag, userTypeText)
}
