package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/diemdanh/core/attendance"
)

type unitApi struct {
	svc    *attendance.Service
	runCtx context.Context
}

func registerUnitAPI(g *echo.Group, runCtx context.Context, svc *attendance.Service) {
	api := unitApi{svc: svc, runCtx: runCtx}

	ug := g.Group("/units")
	ug.GET("", api.query)
	ug.POST("", api.create)

	// detail endpoints
	dg := ug.Group("/:id", unitMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/browser", api.openBrowser)
	dg.POST("/run", api.run)

	g.POST("/run-all", api.runAll)
	g.GET("/report", api.report)
	g.GET("/report.txt", api.reportText)
}

// Handlers

func (api *unitApi) query(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Units())
}

func (api *unitApi) create(ctx echo.Context) error {
	return ctx.JSON(http.StatusCreated, api.svc.AddUnit())
}

func (api *unitApi) retrieve(ctx echo.Context) error {
	u, err := getContextUnit(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, u)
}

func (api *unitApi) update(ctx echo.Context) error {
	u, err := getContextUnit(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}

	var data attendance.UpdateUnit
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUnit")
	}
	if u, err = api.svc.ConfigureUnit(u.ID, data); err != nil {
		return errors.Wrap(err, "configuring unit")
	}
	return ctx.JSON(http.StatusOK, u)
}

func (api *unitApi) destroy(ctx echo.Context) error {
	u, err := getContextUnit(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	if err = api.svc.DeleteUnit(u.ID); err != nil {
		return errors.Wrap(err, "deleting unit")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// openBrowser opens (or reopens) the unit's browser so that the user can log in before running.
func (api *unitApi) openBrowser(ctx echo.Context) error {
	u, err := getContextUnit(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	if err = api.svc.EnsureSession(ctx.Request().Context(), u.ID); err != nil {
		return errors.Wrap(err, "opening browser")
	}
	if u, err = api.svc.Unit(u.ID); err != nil {
		return errors.Wrap(err, "getting unit")
	}
	return ctx.JSON(http.StatusOK, u)
}

func (api *unitApi) run(ctx echo.Context) error {
	u, err := getContextUnit(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	report, err := api.svc.RunUnit(api.runCtx, u.ID)
	if err != nil {
		return errors.Wrap(err, "running unit")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *unitApi) runAll(ctx echo.Context) error {
	report, err := api.svc.RunAll(api.runCtx)
	if err != nil {
		return errors.Wrap(err, "running all units")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *unitApi) report(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Report())
}

func (api *unitApi) reportText(ctx echo.Context) error {
	return ctx.String(http.StatusOK, api.svc.RenderReport(api.svc.Report()))
}
