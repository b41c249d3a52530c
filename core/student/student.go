// Package student parses and validates the comma separated student identifier
// lists typed by the user.
package student

import (
	"fmt"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/diemdanh/core"
)

// input fields
const (
	FieldRoster = "roster"
	FieldOnline = "online"
)

var (
	emptyRosterText = core.Texts{
		"en": "enter at least one student id",
		"vi": "vui lòng nhập ít nhất một mã học sinh",
	}
	repeatedText = core.Texts{
		"en": "%s (repeated)",
		"vi": "%s (bị lặp lại)",
	}
	duplicateText = core.Texts{
		"en": "%s (same as %s)",
		"vi": "%s (trùng với %s)",
	}
)

// identifier is validated as a struct so that errors carry the field name.
type identifier struct {
	ID string `json:"student_id" validate:"required,digits,studentid_len"`
}

// Set is a set of student identifiers compared by their normalized form.
type Set map[string]struct{}

func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[Normalize(id)] = struct{}{}
	}
	return s
}

func (s Set) Contains(id string) bool {
	_, ok := s[Normalize(id)]
	return ok
}

func (s Set) Len() int { return len(s) }

// Normalize strips the leading zeros of an identifier: "0053" and "53" denote the same student.
// An identifier made only of zeros normalizes to "0".
func Normalize(id string) string {
	n := strings.TrimLeft(id, "0")
	if n == "" && id != "" {
		return "0"
	}
	return n
}

type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewValidator(validate *validator.Validate, translator ut.Translator) *Validator {
	return &Validator{validate: validate, translator: translator}
}

func (v *Validator) fieldError(field, msg string) error {
	return core.NewValidationError(errors.New(field+": "+msg), core.FieldError{Field: field, Error: msg})
}

// validateID returns the translated reason why `id` is not a valid identifier, or "".
func (v *Validator) validateID(id string) (string, error) {
	err := v.validate.Struct(identifier{ID: id})
	if err == nil {
		return "", nil
	}
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(vErrs) == 0 {
		return "", errors.Wrap(err, "validating student id")
	}
	return vErrs[0].Translate(v.translator), nil
}

// ValidateID checks a single student identifier.
func (v *Validator) ValidateID(field, id string) error {
	reason, err := v.validateID(id)
	if err != nil {
		return err
	}
	if reason != "" {
		return v.fieldError(field, fmt.Sprintf("%q %s", id, reason))
	}
	return nil
}

// ParseRoster splits `text` on commas and validates every identifier, in order.
// It fails on the first invalid identifier and on any exact or semantic duplicate.
func (v *Validator) ParseRoster(text string) ([]string, error) {
	ids := core.SplitList(text)
	if len(ids) == 0 {
		return nil, v.fieldError(FieldRoster, emptyRosterText.In(v.translator))
	}

	seen := make(map[string]string, len(ids)) // {normalized: first seen}
	for _, id := range ids {
		if err := v.ValidateID(FieldRoster, id); err != nil {
			return nil, err
		}
		norm := Normalize(id)
		if prev, ok := seen[norm]; ok {
			if prev == id {
				return nil, v.fieldError(FieldRoster, fmt.Sprintf(repeatedText.In(v.translator), id))
			}
			return nil, v.fieldError(FieldRoster, fmt.Sprintf(duplicateText.In(v.translator), id, prev))
		}
		seen[norm] = id
	}
	return ids, nil
}

// ParseOnline validates the online subset. Members need not belong to the roster.
func (v *Validator) ParseOnline(text string) (Set, error) {
	ids := core.SplitList(text)
	for _, id := range ids {
		if err := v.ValidateID(FieldOnline, id); err != nil {
			return nil, err
		}
	}
	return NewSet(ids...), nil
}
