package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/diemdanh/core/student"
)

func newTestWorker(setup func(sess *FakeSession)) (*Worker, *FakeLauncher) {
	settings := TestSettings()
	launcher := NewFakeLauncher(settings.Locators)
	launcher.Setup = setup
	return NewWorker(launcher, settings, new(TestLogger)), launcher
}

func runJob(t *testing.T, w *Worker, job Job) ([]Failure, []Progress, error) {
	t.Helper()
	task := w.Start(context.Background(), job)
	progress := make([]Progress, 0)
	for p := range task.Progress() {
		progress = append(progress, p)
	}
	failures, err := task.Wait()
	return failures, progress, err
}

func TestWorker_markRoster(t *testing.T) {
	roster := []string{"0012", "0099"}
	online := student.NewSet("99")

	tests := []struct {
		name   string
		lesson LessonType
		want   map[string][]string // {student: clicked option values}
	}{
		{
			name:   "theory",
			lesson: LessonTheory,
			want:   map[string][]string{"0012": {"ON_TIME", "1", "1"}, "0099": {"ON_TIME", "2", "1"}},
		},
		{
			name:   "practice",
			lesson: LessonPractice,
			want:   map[string][]string{"0012": {"ON_TIME", "1", "2"}, "0099": {"ON_TIME", "2", "2"}},
		},
		{
			name:   "review is online without notebook",
			lesson: LessonReview,
			want:   map[string][]string{"0012": {"ON_TIME", "2"}, "0099": {"ON_TIME", "2"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, launcher := newTestWorker(nil)

			failures, progress, err := runJob(t, w, Job{UnitID: 1, Roster: roster, Online: online, Lesson: tt.lesson})
			require.NoError(t, err)
			assert.Empty(t, failures)
			assert.Equal(t, []Progress{
				{Done: 1, Total: 2, StudentID: "0012"},
				{Done: 2, Total: 2, StudentID: "0099"},
			}, progress)

			require.Equal(t, 1, launcher.Launched())
			sess := launcher.Sessions[0]
			assert.Equal(t, roster, sess.Typed)
			for id, want := range tt.want {
				assert.Equal(t, want, sess.SelectionsOf(id), id)
			}
			assert.Equal(t, "http://attendance.test/", sess.URL)
			assert.Contains(t, sess.Zoom, "67%")
			assert.True(t, sess.Closed(), "worker did not close its own session")
		})
	}
}

func TestWorker_columns(t *testing.T) {
	w, launcher := newTestWorker(nil)
	loc := w.settings.Locators

	_, _, err := runJob(t, w, Job{UnitID: 1, Roster: []string{"12"}, Online: student.NewSet(), Lesson: LessonTheory})
	require.NoError(t, err)
	assert.Equal(t, []Selection{
		{StudentID: "12", Column: loc.ArrivalColumn, Value: loc.ArrivalOnTime},
		{StudentID: "12", Column: loc.ModeColumn, Value: loc.ModeOffline},
		{StudentID: "12", Column: loc.NotebookColumn, Value: loc.NotebookTheory},
	}, launcher.Sessions[0].Selections)
}

func TestWorker_studentNotFound(t *testing.T) {
	w, launcher := newTestWorker(func(sess *FakeSession) { sess.Missing["0012"] = true })

	failures, progress, err := runJob(t, w, Job{UnitID: 2, Roster: []string{"0012", "0099"}, Online: student.NewSet(), Lesson: LessonTheory})
	require.NoError(t, err)
	assert.Equal(t, []Failure{{UnitID: 2, StudentID: "0012", Error: ErrStudentNotFound.Error()}}, failures)
	assert.Len(t, progress, 2)

	sess := launcher.Sessions[0]
	assert.Empty(t, sess.SelectionsOf("0012"))
	assert.Equal(t, []string{"ON_TIME", "1", "1"}, sess.SelectionsOf("0099"))
}

func TestWorker_searchInputAttempts(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		wantFailed   bool
		wantLookups  int
		wantSelected int
	}{
		{name: "found first", failures: 0, wantLookups: 2, wantSelected: 6},
		{name: "found last attempt", failures: 2, wantLookups: 4, wantSelected: 6},
		{name: "attempts exhausted", failures: 3, wantFailed: true, wantLookups: 4, wantSelected: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, launcher := newTestWorker(func(sess *FakeSession) { sess.SearchFailures = tt.failures })

			failures, _, err := runJob(t, w, Job{UnitID: 1, Roster: []string{"12", "34"}, Online: student.NewSet(), Lesson: LessonTheory})
			require.NoError(t, err)

			sess := launcher.Sessions[0]
			assert.Equal(t, tt.wantLookups, sess.Lookups)
			assert.Len(t, sess.Selections, tt.wantSelected)
			if tt.wantFailed {
				require.Len(t, failures, 1)
				assert.Equal(t, "12", failures[0].StudentID)
				assert.Contains(t, failures[0].Error, "search input not found after 3 attempts")
			} else {
				assert.Empty(t, failures)
			}
		})
	}
}

func TestWorker_reload(t *testing.T) {
	w, launcher := newTestWorker(func(sess *FakeSession) { sess.Reloads = 1 })
	w.settings.Timing.RefreshPause = 3 * time.Second

	var pauses []time.Duration
	w.sleep = func(_ context.Context, d time.Duration) error {
		if d > 0 {
			pauses = append(pauses, d)
		}
		return nil
	}

	failures, _, err := runJob(t, w, Job{UnitID: 1, Roster: []string{"12", "34"}, Online: student.NewSet(), Lesson: LessonReview})
	require.NoError(t, err)
	assert.Empty(t, failures, "a reload must not fail a student")
	assert.Equal(t, []time.Duration{3 * time.Second}, pauses)
	assert.Equal(t, 2, launcher.Sessions[0].Armed) // on open, then after the reload
}

func TestWorker_suppliedSession(t *testing.T) {
	w, launcher := newTestWorker(nil)
	sess, err := w.Open(context.Background())
	require.NoError(t, err)

	_, _, err = runJob(t, w, Job{UnitID: 1, Roster: []string{"12"}, Online: student.NewSet(), Lesson: LessonTheory, Session: sess})
	require.NoError(t, err)
	assert.Equal(t, 1, launcher.Launched())
	assert.False(t, launcher.Sessions[0].Closed(), "worker closed a session it does not own")
	assert.Equal(t, []string{"12"}, launcher.Sessions[0].Typed)
}

func TestWorker_launchFailure(t *testing.T) {
	w, launcher := newTestWorker(nil)
	launcher.Err = errors.New("chrome not found")

	failures, progress, err := runJob(t, w, Job{UnitID: 1, Roster: []string{"12"}, Online: student.NewSet(), Lesson: LessonTheory})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chrome not found")
	assert.Empty(t, failures)
	assert.Empty(t, progress)
}

func TestWorker_openFailureClosesSession(t *testing.T) {
	w, launcher := newTestWorker(func(sess *FakeSession) { sess.NavigateErr = errors.New("dns") })

	_, err := w.Open(context.Background())
	require.Error(t, err)
	assert.True(t, launcher.Sessions[0].Closed())
}

func TestWorker_cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w, _ := newTestWorker(func(sess *FakeSession) {
		sess.Hook = func() { cancel() }
	})

	task := w.Start(ctx, Job{UnitID: 1, Roster: []string{"12", "34"}, Online: student.NewSet(), Lesson: LessonTheory})
	for range task.Progress() {
	}
	_, err := task.Wait()
	assert.Equal(t, context.Canceled, errors.Cause(err))
}

func TestWorker_midSequenceFailure(t *testing.T) {
	loc := TestSettings().Locators
	tests := []struct {
		name      string
		column    string
		wantFirst []string
		wantError string
	}{
		{name: "arrival status", column: loc.ArrivalColumn, wantFirst: []string{}, wantError: "setting arrival status"},
		{name: "attendance mode", column: loc.ModeColumn, wantFirst: []string{"ON_TIME"}, wantError: "setting attendance mode"},
		{name: "notebook", column: loc.NotebookColumn, wantFirst: []string{"ON_TIME", "1"}, wantError: "setting notebook"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, launcher := newTestWorker(func(sess *FakeSession) { sess.FailColumn["12"] = tt.column })

			failures, progress, err := runJob(t, w, Job{UnitID: 1, Roster: []string{"12", "34"}, Online: student.NewSet(), Lesson: LessonTheory})
			require.NoError(t, err)
			assert.Len(t, progress, 2)
			require.Len(t, failures, 1)
			assert.Equal(t, "12", failures[0].StudentID)
			assert.Contains(t, failures[0].Error, tt.wantError)

			// options set before the failure stay set
			sess := launcher.Sessions[0]
			assert.Equal(t, tt.wantFirst, sess.SelectionsOf("12"))
			assert.Equal(t, []string{"ON_TIME", "1", "1"}, sess.SelectionsOf("34"))
		})
	}
}

func TestWorker_settleDelays(t *testing.T) {
	tests := []struct {
		name   string
		lesson LessonType
		want   []time.Duration
	}{
		{name: "theory", lesson: LessonTheory, want: []time.Duration{time.Second, time.Second, 2 * time.Second}},
		{name: "practice", lesson: LessonPractice, want: []time.Duration{time.Second, time.Second, 2 * time.Second}},
		{name: "review", lesson: LessonReview, want: []time.Duration{time.Second, time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newTestWorker(nil)
			w.settings.Timing.SettleDelay = time.Second
			w.settings.Timing.NotebookSettleDelay = 2 * time.Second

			var delays []time.Duration
			w.sleep = func(_ context.Context, d time.Duration) error {
				delays = append(delays, d)
				return nil
			}

			_, _, err := runJob(t, w, Job{UnitID: 1, Roster: []string{"12"}, Online: student.NewSet(), Lesson: tt.lesson})
			require.NoError(t, err)
			assert.Equal(t, tt.want, delays)
		})
	}
}
