package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/diemdanh/core/attendance"
)

const contextUnitKey = "object"

// unitMiddleware loads the unit named by the `:id` path param into the context.
func unitMiddleware(svc *attendance.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := strconv.Atoi(ctx.Param("id"))
			if err != nil {
				return errHttpNotFound
			}
			u, err := svc.Unit(id)
			if err != nil {
				if errors.Cause(err) == attendance.ErrUnitNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "getting unit")
			}
			ctx.Set(contextUnitKey, u)
			return next(ctx)
		}
	}
}

func getContextUnit(ctx echo.Context) (attendance.Unit, error) {
	u, ok := ctx.Get(contextUnitKey).(attendance.Unit)
	if !ok {
		return attendance.Unit{}, errors.New("unit object not found in echo.Context")
	}
	return u, nil
}
