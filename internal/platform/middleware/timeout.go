package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// RequestTimeout puts a deadline on the request context. The handler runs on
// the request goroutine and is expected to honour the context; when it
// returns after the deadline has passed, the request fails with a 504 and a
// JSON error body. A timeout of zero or less disables the middleware.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	if timeout <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
		Timeout:      timeout,
		ErrorHandler: timeoutError,
	})
}

func timeoutError(err error, c echo.Context) error {
	if c.Response().Committed {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(c.Request().Context().Err(), context.DeadlineExceeded) {
		// keep the cause but not a nested HTTPError, which the error
		// handler would render in place of the 504
		cause := err
		var he *echo.HTTPError
		if errors.As(err, &he) {
			cause = he.Internal
		}
		return newError(http.StatusGatewayTimeout, "timeout",
			"request processing exceeded the allowed time limit").SetInternal(cause)
	}
	return err
}
