package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/diemdanh/core"
)

var errFakeNotFound = errors.New("fake: no such node")

type (
	// FakeElement is a node of a FakeSession page.
	FakeElement struct {
		Path   string
		Column string
		Value  string
	}

	// Selection is one option clicked on a FakeSession page.
	Selection struct {
		StudentID string
		Column    string
		Value     string
	}

	// FakeSession emulates the remote attendance page in memory.
	FakeSession struct {
		mu       sync.Mutex
		locators core.LocatorConfig

		// Missing lists the typed ids for which the grid shows no row.
		Missing map[string]bool
		// SearchFailures is the number of search input lookups to fail before succeeding.
		SearchFailures int
		// Reloads is the number of reload probes reporting a reload.
		Reloads int
		// Dead makes every call fail, as if the browser window was closed.
		Dead bool
		// NavigateErr is returned by Navigate.
		NavigateErr error
		// FailColumn maps a typed id to the column whose cells cannot be found for it.
		FailColumn map[string]string
		// Hook runs before every search input lookup.
		Hook func()

		URL         string
		Zoom        string
		Typed       []string
		Selections  []Selection
		Armed       int
		Lookups     int
		Closes      int
		Screenshots []string
		typed       string
	}

	// FakeLauncher launches FakeSessions.
	FakeLauncher struct {
		mu       sync.Mutex
		locators core.LocatorConfig

		Err      error
		Setup    func(sess *FakeSession) // runs on every launched session
		Sessions []*FakeSession
	}

	// TestLogger records every logged message.
	TestLogger struct {
		mu       sync.Mutex
		Messages []string
	}
)

var (
	_ Session     = (*FakeSession)(nil)
	_ Launcher    = (*FakeLauncher)(nil)
	_ core.Logger = (*TestLogger)(nil)
)

func NewFakeSession(locators core.LocatorConfig) *FakeSession {
	return &FakeSession{locators: locators, Missing: make(map[string]bool), FailColumn: make(map[string]string)}
}

func (e FakeElement) Locator() string { return e.Path }

func (s *FakeSession) check() error {
	if s.Dead || s.Closes > 0 {
		return errors.New("fake: session is gone")
	}
	return nil
}

func (s *FakeSession) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	if s.NavigateErr != nil {
		return s.NavigateErr
	}
	s.URL = url
	return nil
}

func (s *FakeSession) FindElement(ctx context.Context, locator string, _ time.Duration) (Element, error) {
	if locator == s.locators.SearchInput && s.Hook != nil {
		s.Hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch locator {
	case s.locators.SearchInput:
		s.Lookups++
		if s.SearchFailures > 0 {
			s.SearchFailures--
			return nil, errFakeNotFound
		}
	case s.locators.ResultRow:
		if s.Missing[s.typed] {
			return nil, errFakeNotFound
		}
	default:
		return nil, errFakeNotFound
	}
	return FakeElement{Path: locator}, nil
}

// FindElements returns the header cell and one data cell of a column.
func (s *FakeSession) FindElements(_ context.Context, locator string, _ time.Duration) ([]Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.FailColumn[s.typed] == locator {
		return nil, errFakeNotFound
	}
	switch locator {
	case s.locators.ArrivalColumn, s.locators.ModeColumn, s.locators.NotebookColumn:
		return []Element{
			FakeElement{Path: "(" + locator + ")[1]", Column: locator},
			FakeElement{Path: "(" + locator + ")[2]", Column: locator},
		}, nil
	}
	return nil, errFakeNotFound
}

func (s *FakeSession) FindWithin(_ context.Context, parent Element, locator string) ([]Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	cell, ok := parent.(FakeElement)
	if !ok {
		return nil, errors.Errorf("fake: unexpected element %T", parent)
	}
	values := []string{
		s.locators.ArrivalOnTime,
		s.locators.ModeOffline, s.locators.ModeOnline,
		s.locators.NotebookTheory, s.locators.NotebookPractice,
	}
	for _, v := range values {
		if fmt.Sprintf(s.locators.OptionTemplate, v) == locator {
			return []Element{FakeElement{Path: cell.Path + locator, Column: cell.Column, Value: v}}, nil
		}
	}
	return []Element{}, nil
}

func (s *FakeSession) Click(_ context.Context, el Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	opt := el.(FakeElement)
	s.Selections = append(s.Selections, Selection{StudentID: s.typed, Column: opt.Column, Value: opt.Value})
	return nil
}

func (s *FakeSession) ClearAndType(_ context.Context, _ Element, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.typed = text
	s.Typed = append(s.Typed, text)
	return nil
}

func (s *FakeSession) RunScript(_ context.Context, script string, res interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	switch script {
	case armScript:
		s.Armed++
	case probeScript:
		reloaded := s.Reloads > 0
		if reloaded {
			s.Reloads--
		}
		if b, ok := res.(*bool); ok {
			*b = reloaded
		}
	default:
		s.Zoom = script
	}
	return nil
}

func (s *FakeSession) Screenshot(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Closes > 0 {
		return errors.New("fake: session is closed")
	}
	s.Screenshots = append(s.Screenshots, path)
	return nil
}

func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closes++
	return nil
}

func (s *FakeSession) IsAlive(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check() == nil
}

// Kill emulates the user closing the browser window.
func (s *FakeSession) Kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Dead = true
}

func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Closes > 0
}

// SelectionsOf returns the option values clicked for a student, in click order.
func (s *FakeSession) SelectionsOf(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make([]string, 0)
	for _, sel := range s.Selections {
		if sel.StudentID == id {
			values = append(values, sel.Value)
		}
	}
	return values
}

func NewFakeLauncher(locators core.LocatorConfig) *FakeLauncher {
	return &FakeLauncher{locators: locators}
}

func (l *FakeLauncher) Launch(ctx context.Context) (Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess := NewFakeSession(l.locators)
	if l.Setup != nil {
		l.Setup(sess)
	}
	l.Sessions = append(l.Sessions, sess)
	return sess, nil
}

func (l *FakeLauncher) Launched() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Sessions)
}

func (l *TestLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, level+": "+msg)
}

func (l *TestLogger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *TestLogger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *TestLogger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *TestLogger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *TestLogger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }

// TestSettings returns the default worker settings without any delay.
func TestSettings() WorkerSettings {
	return WorkerSettings{
		AppURL: "http://attendance.test/",
		Zoom:   "67%",
		Timing: core.TimingConfig{
			ElementTimeout: 10 * time.Millisecond,
			RowTimeout:     time.Millisecond,
			LookupAttempts: 3,
		},
		Locators: core.LocatorConfig{
			SearchInput:      "//input[@id='search']",
			ResultRow:        "//div[@role='row']",
			OptionTemplate:   "//option[@value=%q]",
			ArrivalColumn:    "//div[@col-id='arrivalStatus']",
			ArrivalOnTime:    "ON_TIME",
			ModeColumn:       "//div[@col-id='4']",
			ModeOffline:      "1",
			ModeOnline:       "2",
			NotebookColumn:   "//div[@col-id='10']",
			NotebookTheory:   "1",
			NotebookPractice: "2",
		},
	}
}
