package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	applogger "RegimeLab/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover turns a handler panic into a 500 carrying the API envelope, so a
// failed analysis never drops the connection.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				perr, ok := r.(error)
				if !ok {
					perr = fmt.Errorf("%v", r)
				}
				l.Error("http handler panic",
					applogger.String("route", c.Path()),
					applogger.Error(perr),
					applogger.String("stack", string(debug.Stack())),
				)
				if c.Response().Committed {
					return
				}
				err = c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"status":  http.StatusInternalServerError,
					"message": http.StatusText(http.StatusInternalServerError),
					"data":    "analysis failed",
				})
			}()
			return next(c)
		}
	}
}
