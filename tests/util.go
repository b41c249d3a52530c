package testutil

import (
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/diemdanh/core"
	"github.com/trezcool/diemdanh/core/attendance"
	"github.com/trezcool/diemdanh/core/student"
	inmemdb "github.com/trezcool/diemdanh/storage/inmem"
)

// Fixture is an attendance service wired to fake browsers and an in-memory registry.
type Fixture struct {
	Conf       *core.Config
	Validate   *validator.Validate
	Translator ut.Translator
	Logger     *attendance.TestLogger
	Launcher   *attendance.FakeLauncher
	Repo       attendance.Repository
	Svc        *attendance.Service
}

// NewFixture builds a Fixture. conf may be nil; its screenshot dir defaults to a temp dir.
func NewFixture(t *testing.T, conf *core.Config, mailSvc core.EmailService) *Fixture {
	if conf == nil {
		conf = &core.Config{AppName: "Diem Danh", Language: "en"}
	}
	if conf.Browser.ScreenshotDir == "" {
		conf.Browser.ScreenshotDir = t.TempDir()
	}
	settings := attendance.TestSettings()

	validate := validator.New()
	translator := core.NewTranslator(conf.Language)
	core.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	f := &Fixture{
		Conf:       conf,
		Validate:   validate,
		Translator: translator,
		Logger:     new(attendance.TestLogger),
		Launcher:   attendance.NewFakeLauncher(settings.Locators),
		Repo:       inmemdb.NewUnitRepository(inmemdb.Open()),
	}
	worker := attendance.NewWorker(f.Launcher, settings, f.Logger)
	f.Svc = attendance.NewService(conf, f.Repo, worker, validate, translator, f.Logger, mailSvc)
	t.Cleanup(f.Svc.Close)
	return f
}
