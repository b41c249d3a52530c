package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/vi"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	digitsTag   = "digits"
	digitsRegex = regexp.MustCompile(`^[0-9]+$`)
	digitsText  = Texts{
		"en": "only digits are allowed",
		"vi": "chỉ được nhập chữ số",
	}

	requiredTag  = "required"
	requiredText = Texts{
		"en": "this field is required",
		"vi": "không được để trống",
	}
)

// Texts maps a locale name to a message.
type Texts map[string]string

// In returns the message for the translator's locale, falling back to english.
func (t Texts) In(translator ut.Translator) string {
	if translator != nil {
		if s, ok := t[translator.Locale()]; ok {
			return s
		}
	}
	return t["en"]
}

// NewTranslator returns the translator for `lang` ("en" or "vi"). Unknown languages fall back to english.
func NewTranslator(lang string) ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en, vi.New())
	if translator, found := uni.GetTranslator(CleanString(lang, true)); found {
		return translator
	}
	translator, _ := uni.GetTranslator("en")
	return translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	if translator.Locale() == "en" {
		_ = en_translations.RegisterDefaultTranslations(validate, translator)
	}

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(digitsTag, digitsValidation)
	RegisterCustomTranslation(validate, translator, digitsTag, digitsText.In(translator))

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText.In(translator), true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Custom Global Validators

// digitsValidation only allows ASCII digits.
func digitsValidation(fl validator.FieldLevel) bool {
	return digitsRegex.MatchString(fl.Field().String())
}
