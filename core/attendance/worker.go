package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/diemdanh/core"
	"github.com/trezcool/diemdanh/core/student"
)

type (
	// WorkerSettings is everything a Worker needs to know about the remote application.
	WorkerSettings struct {
		AppURL   string
		Zoom     string
		Timing   core.TimingConfig
		Locators core.LocatorConfig
	}

	// Job is one roster to process. A nil Session makes the Worker open (and later close) its own.
	Job struct {
		UnitID  int
		Roster  []string
		Online  student.Set
		Lesson  LessonType
		Session Session
	}

	// Task is a running Job. Progress is closed once the roster is done.
	Task struct {
		progress chan Progress
		done     chan struct{}
		failures []Failure
		err      error
	}

	// Worker marks a roster present on the remote attendance page, one student at a time.
	Worker struct {
		launcher Launcher
		settings WorkerSettings
		logger   core.Logger
		sleep    func(ctx context.Context, d time.Duration) error // mockable
	}
)

func NewWorkerSettings(conf *core.Config) WorkerSettings {
	return WorkerSettings{
		AppURL:   conf.Browser.AppURL,
		Zoom:     conf.Browser.Zoom,
		Timing:   conf.Timing,
		Locators: conf.Locators,
	}
}

func NewWorker(launcher Launcher, settings WorkerSettings, logger core.Logger) *Worker {
	if settings.Timing.LookupAttempts < 1 {
		settings.Timing.LookupAttempts = 1
	}
	return &Worker{
		launcher: launcher,
		settings: settings,
		logger:   logger,
		sleep:    sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Progress returns the stream of per-student progress events.
func (t *Task) Progress() <-chan Progress { return t.progress }

// Wait blocks until the Task is over and returns the failed students.
// The error is a unit-level failure: the session could not be opened or ctx was cancelled.
func (t *Task) Wait() ([]Failure, error) {
	<-t.done
	return t.failures, t.err
}

// Open launches a browser on the application page, applies the display zoom and arms the reload listener.
func (w *Worker) Open(ctx context.Context) (Session, error) {
	sess, err := w.launcher.Launch(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "launching browser")
	}
	if err = w.prepare(ctx, sess); err != nil {
		_ = sess.Close()
		return nil, err
	}
	return sess, nil
}

func (w *Worker) prepare(ctx context.Context, sess Session) error {
	if err := sess.Navigate(ctx, w.settings.AppURL); err != nil {
		return errors.Wrapf(err, "navigating to %s", w.settings.AppURL)
	}
	if w.settings.Zoom != "" {
		if err := sess.RunScript(ctx, zoomScript(w.settings.Zoom), nil); err != nil {
			return errors.Wrap(err, "applying zoom")
		}
	}
	if err := sess.RunScript(ctx, armScript, nil); err != nil {
		return errors.Wrap(err, "arming reload listener")
	}
	return nil
}

// Start processes the Job in its own goroutine.
func (w *Worker) Start(ctx context.Context, job Job) *Task {
	t := &Task{
		progress: make(chan Progress, len(job.Roster)),
		done:     make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		defer close(t.progress)
		defer func() {
			if r := recover(); r != nil {
				t.err = errors.Errorf("unit %d: worker panic: %v", job.UnitID, r)
			}
		}()
		t.failures, t.err = w.process(ctx, job, t.progress)
	}()
	return t
}

func (w *Worker) process(ctx context.Context, job Job, progress chan<- Progress) ([]Failure, error) {
	sess := job.Session
	if sess == nil {
		var err error
		if sess, err = w.Open(ctx); err != nil {
			return nil, errors.Wrap(err, "opening browser session")
		}
		defer func() {
			if err := sess.Close(); err != nil {
				w.logger.Warn(fmt.Sprintf("unit %d: closing browser session: %v", job.UnitID, err), err)
			}
		}()
	}

	total := len(job.Roster)
	failures := make([]Failure, 0)
	for i, id := range job.Roster {
		if err := ctx.Err(); err != nil {
			return failures, err
		}
		w.recoverFromReload(ctx, sess, job.UnitID)

		if err := w.markStudent(ctx, sess, job, id); err != nil {
			if ctx.Err() != nil {
				return failures, ctx.Err()
			}
			w.logger.Warn(fmt.Sprintf("unit %d: student %s: %v", job.UnitID, id, err), err)
			failures = append(failures, Failure{UnitID: job.UnitID, StudentID: id, Error: err.Error()})
		}
		progress <- Progress{Done: i + 1, Total: total, StudentID: id}
	}
	return failures, nil
}

// recoverFromReload re-arms the reload listener after the page reloaded by itself.
// A reload is transient: it never fails the student.
func (w *Worker) recoverFromReload(ctx context.Context, sess Session, unitID int) {
	var reloaded bool
	if err := sess.RunScript(ctx, probeScript, &reloaded); err != nil {
		w.logger.Debug(fmt.Sprintf("unit %d: reload probe: %v", unitID, err))
		return
	}
	if !reloaded {
		return
	}
	w.logger.Info(fmt.Sprintf("unit %d: page was reloaded, re-arming", unitID))
	if err := w.sleep(ctx, w.settings.Timing.RefreshPause); err != nil {
		return
	}
	if err := sess.RunScript(ctx, armScript, nil); err != nil {
		w.logger.Warn(fmt.Sprintf("unit %d: re-arming reload listener: %v", unitID, err), err)
	}
}

// markStudent runs the fixed action sequence for one student.
// Steps are not transactional: a failure leaves the options already set on the remote page.
func (w *Worker) markStudent(ctx context.Context, sess Session, job Job, id string) error {
	loc := w.settings.Locators
	timing := w.settings.Timing

	input, err := w.findSearchInput(ctx, sess)
	if err != nil {
		return err
	}
	if err = sess.ClearAndType(ctx, input, id); err != nil {
		return errors.Wrap(err, "typing student id")
	}

	// fast check: the search filters the grid to the student's row, or to nothing
	if _, err = sess.FindElement(ctx, loc.ResultRow, timing.RowTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrStudentNotFound
	}

	if err = w.selectOption(ctx, sess, loc.ArrivalColumn, loc.ArrivalOnTime); err != nil {
		return errors.Wrap(err, "setting arrival status")
	}
	if err = w.sleep(ctx, timing.SettleDelay); err != nil {
		return err
	}

	mode := loc.ModeOffline
	if job.Lesson == LessonReview || job.Online.Contains(id) {
		mode = loc.ModeOnline
	}
	if err = w.selectOption(ctx, sess, loc.ModeColumn, mode); err != nil {
		return errors.Wrap(err, "setting attendance mode")
	}
	if err = w.sleep(ctx, timing.SettleDelay); err != nil {
		return err
	}

	if job.Lesson == LessonReview {
		return nil
	}
	notebook := loc.NotebookTheory
	if job.Lesson == LessonPractice {
		notebook = loc.NotebookPractice
	}
	if err = w.selectOption(ctx, sess, loc.NotebookColumn, notebook); err != nil {
		return errors.Wrap(err, "setting notebook")
	}
	return w.sleep(ctx, timing.NotebookSettleDelay)
}

func (w *Worker) findSearchInput(ctx context.Context, sess Session) (Element, error) {
	var lastErr error
	for attempt := 1; attempt <= w.settings.Timing.LookupAttempts; attempt++ {
		el, err := sess.FindElement(ctx, w.settings.Locators.SearchInput, w.settings.Timing.ElementTimeout)
		if err == nil {
			return el, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, errors.Wrapf(lastErr, "search input not found after %d attempts", w.settings.Timing.LookupAttempts)
}

// selectOption clicks the option `value` of the column cell of the first data row.
// The first cell matching a column locator belongs to the header row.
func (w *Worker) selectOption(ctx context.Context, sess Session, column, value string) error {
	cells, err := sess.FindElements(ctx, column, w.settings.Timing.ElementTimeout)
	if err != nil {
		return errors.Wrapf(err, "finding column %s", column)
	}
	if len(cells) < 2 {
		return errors.Errorf("column %s has no data row", column)
	}
	options, err := sess.FindWithin(ctx, cells[1], fmt.Sprintf(w.settings.Locators.OptionTemplate, value))
	if err != nil {
		return errors.Wrapf(err, "finding option %q", value)
	}
	if len(options) == 0 {
		return errors.Errorf("option %q not found in column %s", value, column)
	}
	return errors.Wrapf(sess.Click(ctx, options[0]), "clicking option %q", value)
}
