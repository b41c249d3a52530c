package attendance

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrUnitNotFound    = errors.New("class unit not found")
	ErrUnitBusy        = errors.New("class unit is already running")
	ErrStudentNotFound = errors.New("student not found in class list")
	ErrNoSession       = errors.New("no browser session")
)

// LessonType selects the notebook option set for every student of a run.
type LessonType string

const (
	LessonTheory   LessonType = "theory"
	LessonPractice LessonType = "practice"
	// LessonReview marks every student online and leaves the notebook column untouched.
	LessonReview LessonType = "review"
)

var AllLessonTypes = []LessonType{LessonTheory, LessonPractice, LessonReview}

func ParseLessonType(s string) (LessonType, error) {
	for _, lt := range AllLessonTypes {
		if string(lt) == s {
			return lt, nil
		}
	}
	return "", errors.Errorf("unknown lesson type %q", s)
}

// UnitStatus is the readout of the last run of a Unit.
type UnitStatus string

const (
	StatusIdle    UnitStatus = "idle"
	StatusRunning UnitStatus = "running"
	StatusDone    UnitStatus = "done"
	StatusFailed  UnitStatus = "failed" // done, with failures
	StatusErrored UnitStatus = "errored"
)

type (
	// Unit is one independently configured class (a tab of the shell).
	// ID is contiguous from 1 and changes when a unit before it is deleted.
	Unit struct {
		Key        uint64     `json:"-"` // stable across renumbering, internal only
		ID         int        `json:"id"`
		Name       string     `json:"name,omitempty"`
		Roster     string     `json:"roster"`
		Online     string     `json:"online"`
		Lesson     LessonType `json:"lesson"`
		Status     UnitStatus `json:"status"`
		Done       int        `json:"done"`
		Total      int        `json:"total"`
		HasBrowser bool       `json:"has_browser"`
		UpdatedAt  time.Time  `json:"updated_at"`
	}

	// UpdateUnit holds the configurable fields of a Unit. nil fields are left untouched.
	UpdateUnit struct {
		Name   *string `json:"name"`
		Roster *string `json:"roster"`
		Online *string `json:"online"`
		Lesson *string `json:"lesson" validate:"omitempty,lessontype"`
	}

	// Failure is one failed student, or a unit-level failure when StudentID is empty.
	Failure struct {
		UnitID    int    `json:"unit_id"`
		StudentID string `json:"student_id,omitempty"`
		Error     string `json:"error"`
	}

	// Progress is emitted after every processed student.
	Progress struct {
		Done      int    `json:"done"`
		Total     int    `json:"total"`
		StudentID string `json:"student_id"`
	}
)

// DisplayName is the custom name of the unit or its default derived from the identity.
func (u Unit) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return fmt.Sprintf("Class %d", u.ID)
}

func (f Failure) IsUnitLevel() bool { return f.StudentID == "" }
