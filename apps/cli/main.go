package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/diemdanh/core"
	"github.com/trezcool/diemdanh/core/attendance"
	"github.com/trezcool/diemdanh/core/student"
	"github.com/trezcool/diemdanh/services/browser"
	emailsvc "github.com/trezcool/diemdanh/services/email"
	logsvc "github.com/trezcool/diemdanh/services/logger"
	inmemdb "github.com/trezcool/diemdanh/storage/inmem"
)

func main() {
	os.Exit(start())
}

func start() int {
	conf := core.NewConfig()

	stdLogger, logFile, err := logsvc.NewStdLogger(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = logFile.Close() }()
	stdLogger.SetPrefix("CLI : ")
	logger := logsvc.NewRollbarLogger(stdLogger, conf)

	validate := validator.New()
	translator := core.NewTranslator(conf.Language)
	core.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	worker := attendance.NewWorker(browser.NewLauncher(conf, logger), attendance.NewWorkerSettings(conf), logger)
	repo := inmemdb.NewUnitRepository(inmemdb.Open())
	svc := attendance.NewService(conf, repo, worker, validate, translator, logger, emailsvc.NewService(conf, logger))
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := commandLine{
		svc:       svc,
		validator: student.NewValidator(validate, translator),
		out:       os.Stdout,
	}
	if err := cli.run(ctx, os.Args); err != nil {
		switch {
		case err == errHelp:
		case core.IsValidationError(err):
			fmt.Fprintf(os.Stderr, "\n%s\n", errors.Cause(err))
		case err == errFailures:
			logger.Warn(err.Error())
		default:
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		return 1
	}
	return 0
}
