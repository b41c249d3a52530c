package attendance

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/diemdanh/core"
)

var (
	lessonTypeTag  = "lessontype"
	lessonTypeText = core.Texts{
		"en": "must be one of theory, practice, review",
		"vi": "phải là một trong theory, practice, review",
	}
)

// InitValidators registers the attendance validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(lessonTypeTag, lessonTypeValidation)
	core.RegisterCustomTranslation(validate, translator, lessonTypeTag, lessonTypeText.In(translator))
}

// Validate checks the form fields of an update.
func (uu UpdateUnit) Validate(validate *validator.Validate, translator ut.Translator) error {
	err := validate.Struct(uu)
	if err == nil {
		return nil
	}
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, "validating unit")
	}
	flds := make([]core.FieldError, 0, len(vErrs))
	msgs := make([]string, 0, len(vErrs))
	for _, vErr := range vErrs {
		msg := vErr.Translate(translator)
		flds = append(flds, core.FieldError{Field: vErr.Field(), Error: msg})
		msgs = append(msgs, vErr.Field()+": "+msg)
	}
	return core.NewValidationError(errors.New(strings.Join(msgs, "; ")), flds...)
}

// Custom Validators

func lessonTypeValidation(fl validator.FieldLevel) bool {
	_, err := ParseLessonType(core.CleanString(fl.Field().String(), true))
	return err == nil
}
