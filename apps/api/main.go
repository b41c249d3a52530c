package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	dig_container "github.com/trezcool/diemdanh/apps/api/di/dig"
	echoapi "github.com/trezcool/diemdanh/apps/api/echo"
	"github.com/trezcool/diemdanh/core"
	"github.com/trezcool/diemdanh/core/attendance"
	"github.com/trezcool/diemdanh/core/student"
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		logFile dig_container.LogFile,
		validate *validator.Validate,
		translator ut.Translator,
		svc *attendance.Service,
		server echoapi.Server,
		shutdown dig_container.ShutdownChan,
	) {
		// =========================================================================
		// Initialize App

		logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.InitValidators(validate, translator)
		student.InitValidators(validate, translator)
		attendance.InitValidators(validate, translator)

		defer func() { _ = logFile.Close() }()
		defer logger.Info("Application stopped")

		// every browser opened by the app dies with it
		defer svc.Close()

		// =========================================================================
		// Start API Service

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address))
			serverErrors <- server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-serverErrors:
			if err != nil && err != http.ErrServerClosed {
				logger.Error(fmt.Sprintf("server error: %v", err), err)
			}

		case sig := <-shutdown:
			logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			if err := server.Stop(ctx); err != nil {
				logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
