package attendance

import (
	"context"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"sync"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/diemdanh/core"
	"github.com/trezcool/diemdanh/core/student"
)

var (
	nowFunc = time.Now // mockable

	errNoUnits    = errors.New("add at least one class")
	screenshotTTL = 10 * time.Second
)

type (
	// Entry is a snapshot of a unit and the session tracked for it (nil if none).
	Entry struct {
		Unit    Unit
		Session Session
	}

	// Repository is the unit registry: the single writer of the unit identity -> session table.
	// Every method is atomic. Methods taking a key address a unit regardless of renumbering.
	Repository interface {
		AddUnit(now time.Time) Unit
		GetUnit(id int) (Unit, error)
		QueryAllUnits() []Unit
		UpdateUnit(unit Unit) (Unit, error)
		// DeleteUnit removes the unit, renumbers the following ones and returns the removed unit and its session.
		DeleteUnit(id int) (Unit, Session, error)

		GetSession(id int) (Session, error)
		SetSession(id int, sess Session) error
		// DropSession forgets sess if it is still the session tracked for the unit.
		DropSession(key uint64, sess Session) bool
		DropAllSessions() []Session

		// BeginRun marks the units running and snapshots them with their sessions.
		// It fails without side effects if any of them is already running.
		BeginRun(ids ...int) ([]Entry, error)
		// BeginRunAll is BeginRun over every unit, in identity order.
		BeginRunAll() ([]Entry, error)
		SetProgress(key uint64, done, total int)
		EndRun(key uint64, status UnitStatus)
	}

	// Service is the attendance orchestrator.
	Service struct {
		repo          Repository
		worker        *Worker
		validate      *validator.Validate
		validator     *student.Validator
		translator    ut.Translator
		logger        core.Logger
		mailSvc       core.EmailService
		reportTo      []mail.Address
		screenshotDir string

		mu     sync.RWMutex
		report Report
	}
)

func NewService(
	conf *core.Config,
	repo Repository,
	worker *Worker,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
	mailSvc core.EmailService,
) *Service {
	svc := &Service{
		repo:          repo,
		worker:        worker,
		validate:      validate,
		validator:     student.NewValidator(validate, translator),
		translator:    translator,
		logger:        logger,
		mailSvc:       mailSvc,
		screenshotDir: conf.Browser.ScreenshotDir,
	}
	if conf.Report.EmailTo != "" {
		addrs, err := mail.ParseAddressList(conf.Report.EmailTo)
		if err != nil {
			logger.Warn(fmt.Sprintf("invalid report recipients %q: %v", conf.Report.EmailTo, err), err)
		}
		for _, addr := range addrs {
			svc.reportTo = append(svc.reportTo, *addr)
		}
	}
	return svc
}

func (svc *Service) Units() []Unit {
	return svc.repo.QueryAllUnits()
}

func (svc *Service) Unit(id int) (Unit, error) {
	return svc.repo.GetUnit(id)
}

// AddUnit appends an empty unit; its identity is the current unit count + 1.
func (svc *Service) AddUnit() Unit {
	u := svc.repo.AddUnit(nowFunc().UTC())
	svc.logger.Info(fmt.Sprintf("unit %d added", u.ID))
	return u
}

// DeleteUnit closes the unit's session and removes it. Following units are renumbered:
// identities held by callers are stale afterwards.
func (svc *Service) DeleteUnit(id int) error {
	u, sess, err := svc.repo.DeleteUnit(id)
	if err != nil {
		return err
	}
	if sess != nil {
		if err := sess.Close(); err != nil {
			svc.logger.Warn(fmt.Sprintf("unit %d: closing browser session: %v", id, err), err)
		}
	}
	svc.logger.Info(fmt.Sprintf("unit %d (%s) deleted", id, u.DisplayName()))
	return nil
}

func (svc *Service) RenameUnit(id int, name string) (Unit, error) {
	return svc.ConfigureUnit(id, UpdateUnit{Name: &name})
}

// ConfigureUnit updates the unit form fields. Lists are validated when the unit runs.
func (svc *Service) ConfigureUnit(id int, data UpdateUnit) (Unit, error) {
	u, err := svc.repo.GetUnit(id)
	if err != nil {
		return Unit{}, err
	}
	if err = data.Validate(svc.validate, svc.translator); err != nil {
		return Unit{}, err
	}
	if data.Lesson != nil {
		u.Lesson, _ = ParseLessonType(core.CleanString(*data.Lesson, true))
	}
	if data.Name != nil {
		u.Name = core.CleanString(*data.Name)
	}
	if data.Roster != nil {
		u.Roster = *data.Roster
	}
	if data.Online != nil {
		u.Online = *data.Online
	}
	u.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUnit(u)
}

// EnsureSession makes sure a live browser session is tracked for the unit:
// a dead tracked session is dropped and replaced by a new one.
func (svc *Service) EnsureSession(ctx context.Context, id int) error {
	u, err := svc.repo.GetUnit(id)
	if err != nil {
		return err
	}

	sess, err := svc.repo.GetSession(id)
	switch {
	case err == nil:
		if sess.IsAlive(ctx) {
			return nil
		}
		svc.logger.Info(fmt.Sprintf("unit %d: browser session is gone, reopening", id))
		svc.repo.DropSession(u.Key, sess)
		_ = sess.Close()
	case errors.Cause(err) != ErrNoSession:
		return err
	}

	if sess, err = svc.worker.Open(ctx); err != nil {
		return errors.Wrap(err, "opening browser session")
	}
	if err = svc.repo.SetSession(id, sess); err != nil {
		_ = sess.Close()
		return err
	}
	svc.logger.Info(fmt.Sprintf("unit %d: browser session opened", id))
	return nil
}

// prepare validates the unit form into a Job.
func (svc *Service) prepare(u Unit) (Job, error) {
	roster, err := svc.validator.ParseRoster(u.Roster)
	if err != nil {
		return Job{}, err
	}
	online, err := svc.validator.ParseOnline(u.Online)
	if err != nil {
		return Job{}, err
	}
	lesson := u.Lesson
	if lesson == "" {
		lesson = LessonTheory
	}
	return Job{UnitID: u.ID, Roster: roster, Online: online, Lesson: lesson}, nil
}

// ValidateUnit checks the unit form as RunUnit would, without touching any browser.
func (svc *Service) ValidateUnit(id int) error {
	u, err := svc.repo.GetUnit(id)
	if err != nil {
		return err
	}
	_, err = svc.prepare(u)
	return err
}

// RunUnit validates the unit then marks its roster, using the unit's live session if any.
// Validation errors are returned before any browser is touched; everything else ends up in the Report.
func (svc *Service) RunUnit(ctx context.Context, id int) (Report, error) {
	entries, err := svc.repo.BeginRun(id)
	if err != nil {
		return Report{}, err
	}
	jobs, err := svc.prepareAll(entries, false)
	if err != nil {
		return Report{}, err
	}

	started := nowFunc().UTC()
	result := svc.runEntry(ctx, entries[0], jobs[0])

	report := NewReport(started, nowFunc().UTC(), result)
	svc.publish(report)
	return report, nil
}

// RunAll validates every unit, then runs them all concurrently, each on its own session.
// A single invalid unit aborts the whole run before any browser is touched.
func (svc *Service) RunAll(ctx context.Context) (Report, error) {
	// units and sessions are snapshotted once here; workers never look them up again
	entries, err := svc.repo.BeginRunAll()
	if err != nil {
		return Report{}, err
	}
	if len(entries) == 0 {
		return Report{}, core.NewValidationError(errNoUnits, core.FieldError{Field: "units", Error: errNoUnits.Error()})
	}
	jobs, err := svc.prepareAll(entries, true)
	if err != nil {
		return Report{}, err
	}

	started := nowFunc().UTC()
	results := make([]UnitReport, len(entries))
	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e Entry) {
			defer wg.Done()
			results[i] = svc.runEntry(ctx, e, jobs[i])
		}(i, e)
	}
	wg.Wait()

	report := NewReport(started, nowFunc().UTC(), results...)
	svc.publish(report)
	return report, nil
}

// prepareAll builds the jobs of a snapshot. On the first invalid unit every unit of
// the snapshot is released; `named` prefixes the error fields with that unit.
func (svc *Service) prepareAll(entries []Entry, named bool) ([]Job, error) {
	jobs := make([]Job, 0, len(entries))
	for _, e := range entries {
		job, err := svc.prepare(e.Unit)
		if err != nil {
			for _, other := range entries {
				svc.repo.EndRun(other.Unit.Key, StatusIdle)
			}
			if named {
				err = unitValidationError(e.Unit, err)
			}
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (svc *Service) runEntry(ctx context.Context, e Entry, job Job) UnitReport {
	key := e.Unit.Key
	result := UnitReport{UnitID: e.Unit.ID, Name: e.Unit.DisplayName(), Total: len(job.Roster)}
	svc.repo.SetProgress(key, 0, len(job.Roster))

	// an owned session only serves if still alive; otherwise the worker opens and closes its own
	if e.Session != nil && !e.Session.IsAlive(ctx) {
		svc.logger.Info(fmt.Sprintf("unit %d: browser session is gone, using a temporary one", e.Unit.ID))
		svc.repo.DropSession(key, e.Session)
		_ = e.Session.Close()
		e.Session = nil
	}
	job.Session = e.Session

	task := svc.worker.Start(ctx, job)
	for p := range task.Progress() {
		svc.repo.SetProgress(key, p.Done, p.Total)
	}
	failures, err := task.Wait()
	for i := range failures {
		failures[i].UnitID = e.Unit.ID
	}
	result.Failures = failures

	switch {
	case err != nil:
		svc.logger.Error(fmt.Sprintf("unit %d: run aborted: %v", e.Unit.ID, err), err, unitData(e.Unit))
		result.Failures = append(result.Failures, Failure{UnitID: e.Unit.ID, Error: err.Error()})
		result.Status = StatusErrored
		if e.Session != nil {
			result.Screenshot = svc.discardSession(key, e)
		}
	case len(failures) > 0:
		result.Status = StatusFailed
	default:
		result.Status = StatusDone
	}
	svc.repo.EndRun(key, result.Status)
	svc.logger.Info(fmt.Sprintf("unit %d: %s, %d/%d failed", e.Unit.ID, result.Status, len(result.Failures), result.Total))
	return result
}

// discardSession saves a screenshot of a session that broke mid-run, then closes and forgets it.
func (svc *Service) discardSession(key uint64, e Entry) string {
	ctx, cancel := context.WithTimeout(context.Background(), screenshotTTL)
	defer cancel()

	path := filepath.Join(svc.screenshotDir, fmt.Sprintf("error_screenshot_unit%d.png", e.Unit.ID))
	if err := e.Session.Screenshot(ctx, path); err != nil {
		svc.logger.Warn(fmt.Sprintf("unit %d: screenshot: %v", e.Unit.ID, err), err)
		path = ""
	}
	svc.repo.DropSession(key, e.Session)
	if err := e.Session.Close(); err != nil {
		svc.logger.Warn(fmt.Sprintf("unit %d: closing browser session: %v", e.Unit.ID, err), err)
	}
	return path
}

// Report returns the report of the last run.
func (svc *Service) Report() Report {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.report
}

func (svc *Service) RenderReport(report Report) string {
	return report.Render(svc.translator)
}

func (svc *Service) publish(report Report) {
	svc.mu.Lock()
	svc.report = report
	svc.mu.Unlock()

	if report.HasFailures() {
		svc.mailReport(report)
	}
}

func (svc *Service) mailReport(report Report) {
	if svc.mailSvc == nil || len(svc.reportTo) == 0 {
		return
	}
	msg := &core.EmailMessage{
		To:      svc.reportTo,
		Subject: fmt.Sprintf("Attendance report %s", report.StartedAt.Format("2006-01-02 15:04")),
		BodyStr: report.Render(svc.translator),
	}
	for _, u := range report.Units {
		if u.Screenshot == "" {
			continue
		}
		if _, err := os.Stat(u.Screenshot); err != nil {
			continue
		}
		if err := msg.AttachFile(u.Screenshot, "image/png"); err != nil {
			svc.logger.Warn(fmt.Sprintf("attaching %s: %v", u.Screenshot, err), err)
		}
	}
	svc.mailSvc.SendMessages(msg)
}

// Close closes every tracked session. In-flight student actions are not rolled back.
func (svc *Service) Close() {
	for _, sess := range svc.repo.DropAllSessions() {
		if err := sess.Close(); err != nil {
			svc.logger.Warn(fmt.Sprintf("closing browser session: %v", err), err)
		}
	}
}

// unitValidationError names the unit in a validation error of its form.
func unitValidationError(u Unit, err error) error {
	verr, ok := errors.Cause(err).(*core.ValidationError)
	if !ok {
		return err
	}
	flds := make([]core.FieldError, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		flds = append(flds, core.FieldError{Field: fmt.Sprintf("units.%d.%s", u.ID, f.Field), Error: f.Error})
	}
	return core.NewValidationError(errors.Errorf("%s: %s", u.DisplayName(), verr.Error()), flds...)
}

// unitData is the custom data logged with unit level events.
func unitData(u Unit) map[string]interface{} {
	return map[string]interface{}{"unit_id": u.ID, "unit_name": u.DisplayName(), "lesson": u.Lesson}
}
