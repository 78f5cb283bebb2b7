package enrollment

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soma/core"
)

var (
	providerTag  = "paymentprovider"
	providerText = "unsupported payment provider"
)

// InitValidators registers the enrollment validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(providerTag, core.OneOfValidation(Providers...))
	core.RegisterCustomTranslation(validate, translator, providerTag, providerText)
}
