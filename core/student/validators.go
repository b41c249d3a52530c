package student

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/diemdanh/core"
)

// identifier policy
const (
	MinIDLen = 2
	MaxIDLen = 6
)

var (
	idLenTag  = "studentid_len"
	idLenText = core.Texts{
		"en": fmt.Sprintf("must contain between %d and %d digits", MinIDLen, MaxIDLen),
		"vi": fmt.Sprintf("phải có từ %d đến %d chữ số", MinIDLen, MaxIDLen),
	}
)

// InitValidators registers the student identifier validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(idLenTag, idLenValidation)
	core.RegisterCustomTranslation(validate, translator, idLenTag, idLenText.In(translator))
}

// Custom Validators

// idLenValidation checks the identifier length (in bytes; identifiers are ASCII digits).
func idLenValidation(fl validator.FieldLevel) bool {
	n := len(fl.Field().String())
	return n >= MinIDLen && n <= MaxIDLen
}
