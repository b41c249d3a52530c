package attendance

import (
	"fmt"
	"sort"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/google/uuid"

	"github.com/trezcool/diemdanh/core"
)

var (
	noFailuresText = core.Texts{
		"en": "No student failed in the last run.",
		"vi": "Không có học sinh nào bị lỗi trong lần chạy gần nhất.",
	}
	failuresHeaderText = core.Texts{
		"en": "Failed students:",
		"vi": "Danh sách học sinh bị lỗi:",
	}
	studentText = core.Texts{
		"en": "Student id: %s",
		"vi": "Mã học sinh: %s",
	}
	errorText = core.Texts{
		"en": "Error: %s",
		"vi": "Lỗi: %s",
	}
	unitErrorText = core.Texts{
		"en": "Class error: %s",
		"vi": "Lỗi lớp học: %s",
	}
	separator = strings.Repeat("-", 50)

	// failure reasons known to the report, by their error text
	reasonTexts = map[string]core.Texts{
		ErrStudentNotFound.Error(): {
			"en": ErrStudentNotFound.Error(),
			"vi": "Không tìm thấy học sinh trong danh sách",
		},
	}
)

type (
	// UnitReport is the outcome of one unit in a run.
	UnitReport struct {
		UnitID     int        `json:"unit_id"`
		Name       string     `json:"name"`
		Status     UnitStatus `json:"status"`
		Total      int        `json:"total"`
		Failures   []Failure  `json:"failures"`
		Screenshot string     `json:"screenshot,omitempty"`
	}

	// Report is the outcome of one run. Every run replaces the previous Report.
	Report struct {
		RunID      uuid.UUID    `json:"run_id"`
		StartedAt  time.Time    `json:"started_at"`
		FinishedAt time.Time    `json:"finished_at"`
		Units      []UnitReport `json:"units"`
	}
)

// NewReport groups unit results by ascending unit identity, whatever their completion order.
func NewReport(startedAt, finishedAt time.Time, units ...UnitReport) Report {
	sorted := make([]UnitReport, len(units))
	copy(sorted, units)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].UnitID < sorted[j].UnitID })
	for i := range sorted {
		if sorted[i].Failures == nil {
			sorted[i].Failures = []Failure{}
		}
	}
	return Report{
		RunID:      uuid.New(),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Units:      sorted,
	}
}

// Reason is the failure text in the translator's language, when it has a translation.
func (f Failure) Reason(translator ut.Translator) string {
	if texts, ok := reasonTexts[f.Error]; ok {
		return texts.In(translator)
	}
	return f.Error
}

// Failures flattens the report: units in ascending identity, roster order within a unit.
func (r Report) Failures() []Failure {
	all := make([]Failure, 0)
	for _, u := range r.Units {
		all = append(all, u.Failures...)
	}
	return all
}

func (r Report) HasFailures() bool {
	for _, u := range r.Units {
		if len(u.Failures) > 0 {
			return true
		}
	}
	return false
}

// Render returns the human readable report, in the translator's language.
func (r Report) Render(translator ut.Translator) string {
	if !r.HasFailures() {
		return noFailuresText.In(translator)
	}

	var b strings.Builder
	b.WriteString(failuresHeaderText.In(translator))
	b.WriteString("\n\n")
	for _, u := range r.Units {
		if len(u.Failures) == 0 {
			continue
		}
		name := u.Name
		if name == "" {
			name = Unit{ID: u.UnitID}.DisplayName()
		}
		_, _ = fmt.Fprintf(&b, "== %s ==\n", name)
		for _, f := range u.Failures {
			if f.IsUnitLevel() {
				_, _ = fmt.Fprintf(&b, unitErrorText.In(translator)+"\n", f.Error)
			} else {
				_, _ = fmt.Fprintf(&b, studentText.In(translator)+"\n", f.StudentID)
				_, _ = fmt.Fprintf(&b, errorText.In(translator)+"\n", f.Reason(translator))
			}
			b.WriteString(separator)
			b.WriteString("\n")
		}
	}
	return b.String()
}
