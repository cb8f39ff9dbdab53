package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const maxStackBytes = 4096

// Recovery turns a panic in a handler into a logged 500 carrying the same
// {success:false} body as any other failed form post.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				stack := debug.Stack()
				if len(stack) > maxStackBytes {
					stack = stack[:maxStackBytes]
				}
				rid, _ := c.Get("request_id").(string)
				logger.Error().
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("path", c.Request().URL.Path).
					Interface("panic", r).
					Bytes("stack", stack).
					Msg("handler panicked")

				err = failure(c, http.StatusInternalServerError, "Something went wrong, please try again")
			}()
			return next(c)
		}
	}
}

// failure is the JSON body the form endpoints use for errors.
func failure(c echo.Context, status int, msg string) error {
	if c.Response().Committed {
		return nil
	}
	return c.JSON(status, map[string]any{"success": false, "message": msg})
}
