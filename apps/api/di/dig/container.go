package dig_container

import (
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/diemdanh/apps/api/echo"
	"github.com/trezcool/diemdanh/core"
	"github.com/trezcool/diemdanh/core/attendance"
	"github.com/trezcool/diemdanh/services/browser"
	emailsvc "github.com/trezcool/diemdanh/services/email"
	logsvc "github.com/trezcool/diemdanh/services/logger"
	inmemdb "github.com/trezcool/diemdanh/storage/inmem"
)

// ShutdownChan receives the signals that stop the API.
type ShutdownChan chan os.Signal

// LogFile is the operational log file, closed on exit.
type LogFile struct {
	io.Closer
}

func newLogger(conf *core.Config) (core.Logger, LogFile, error) {
	stdLogger, closer, err := logsvc.NewStdLogger(conf)
	if err != nil {
		return nil, LogFile{}, err
	}
	stdLogger.SetPrefix("API : ")
	return logsvc.NewRollbarLogger(stdLogger, conf), LogFile{closer}, nil
}

func newTranslator(conf *core.Config) ut.Translator {
	return core.NewTranslator(conf.Language)
}

func newLauncher(conf *core.Config, logger core.Logger) attendance.Launcher {
	return browser.NewLauncher(conf, logger)
}

func newShutdownChan() ShutdownChan {
	shutdown := make(ShutdownChan, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	return shutdown
}

func newServer(conf *core.Config, logger core.Logger, svc *attendance.Service, shutdown ShutdownChan) echoapi.Server {
	return echoapi.NewServer(
		&echoapi.Options{
			Address:  conf.Server.Address,
			AppName:  conf.AppName,
			Debug:    conf.Debug,
			TestMode: conf.TestMode,
		},
		&echoapi.Deps{
			Logger:        logger,
			AttendanceSvc: svc,
		},
		func() { shutdown <- syscall.SIGTERM },
	)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newTranslator))
	must(c.Provide(validator.New))
	must(c.Provide(newShutdownChan))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(inmemdb.Open))
	must(c.Provide(inmemdb.NewUnitRepository))
	must(c.Provide(newLauncher))
	must(c.Provide(attendance.NewWorkerSettings))
	must(c.Provide(attendance.NewWorker))
	must(c.Provide(attendance.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
