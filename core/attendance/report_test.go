package attendance

import (
	"strings"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/diemdanh/core"
)

func TestNewReport(t *testing.T) {
	now := time.Now().UTC()
	r := NewReport(now, now,
		UnitReport{UnitID: 3, Failures: []Failure{{UnitID: 3, StudentID: "30", Error: "x"}}},
		UnitReport{UnitID: 1},
		UnitReport{UnitID: 2, Failures: []Failure{{UnitID: 2, StudentID: "21", Error: "a"}, {UnitID: 2, StudentID: "20", Error: "b"}}},
	)

	assert.NotEqual(t, NewReport(now, now).RunID, r.RunID)
	ids := make([]int, 0)
	for _, u := range r.Units {
		ids = append(ids, u.UnitID)
		assert.NotNil(t, u.Failures)
	}
	assert.Equal(t, []int{1, 2, 3}, ids)

	want := []string{"21", "20", "30"} // unit order, then roster order
	got := make([]string, 0)
	for _, f := range r.Failures() {
		got = append(got, f.StudentID)
	}
	assert.Equal(t, want, got)
	assert.True(t, r.HasFailures())
	assert.False(t, NewReport(now, now, UnitReport{UnitID: 1}).HasFailures())
}

func TestReport_Render(t *testing.T) {
	now := time.Now().UTC()
	en, vi := core.NewTranslator("en"), core.NewTranslator("vi")

	t.Run("no failures", func(t *testing.T) {
		r := NewReport(now, now, UnitReport{UnitID: 1, Status: StatusDone})
		assert.Equal(t, "No student failed in the last run.", r.Render(en))
		assert.Equal(t, "Không có học sinh nào bị lỗi trong lần chạy gần nhất.", r.Render(vi))
		assert.Equal(t, "No student failed in the last run.", Report{}.Render(en))
	})

	t.Run("failures", func(t *testing.T) {
		r := NewReport(now, now,
			UnitReport{UnitID: 2, Failures: []Failure{{UnitID: 2, Error: "launching browser: boom"}}},
			UnitReport{UnitID: 1, Name: "6A", Failures: []Failure{{UnitID: 1, StudentID: "0012", Error: ErrStudentNotFound.Error()}}},
		)
		sep := strings.Repeat("-", 50)
		want := "Failed students:\n\n" +
			"== 6A ==\n" +
			"Student id: 0012\n" +
			"Error: student not found in class list\n" +
			sep + "\n" +
			"== Class 2 ==\n" +
			"Class error: launching browser: boom\n" +
			sep + "\n"
		assert.Equal(t, want, r.Render(en))

		out := r.Render(vi)
		assert.Contains(t, out, "Mã học sinh: 0012")
		assert.Contains(t, out, "Lỗi: Không tìm thấy học sinh trong danh sách\n")
		assert.NotContains(t, out, ErrStudentNotFound.Error())
		assert.Contains(t, out, "Lỗi lớp học: launching browser: boom")
	})
}

func TestFailure_Reason(t *testing.T) {
	en, vi := core.NewTranslator("en"), core.NewTranslator("vi")
	tests := []struct {
		name       string
		failure    Failure
		translator ut.Translator
		want       string
	}{
		{name: "not found en", failure: Failure{StudentID: "1", Error: ErrStudentNotFound.Error()}, translator: en, want: "student not found in class list"},
		{name: "not found vi", failure: Failure{StudentID: "1", Error: ErrStudentNotFound.Error()}, translator: vi, want: "Không tìm thấy học sinh trong danh sách"},
		{name: "no translator", failure: Failure{StudentID: "1", Error: ErrStudentNotFound.Error()}, want: "student not found in class list"},
		{name: "untranslated", failure: Failure{StudentID: "1", Error: "setting notebook: boom"}, translator: vi, want: "setting notebook: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.failure.Reason(tt.translator))
		})
	}
}
