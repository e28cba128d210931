package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// errorBody mirrors the error envelope the API handlers return.
type errorBody struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

func newError(code int, kind, detail string) *echo.HTTPError {
	return echo.NewHTTPError(code, errorBody{Kind: kind, Detail: detail})
}

// statusOf reports the status a request will finish with. Errors returned up
// the chain have not been rendered yet, so their code wins over the recorder.
func statusOf(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return http.StatusInternalServerError
}
