package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ETag buffers successful GET responses, tags them with a weak ETag derived
// from the body and answers 304 when If-None-Match already holds it.
func ETag() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}

			res := c.Response()
			orig := res.Writer
			buf := &bufferedWriter{header: orig.Header(), status: http.StatusOK}
			res.Writer = buf

			err := next(c)
			res.Writer = orig
			if err != nil || buf.status != http.StatusOK {
				return flush(orig, buf, err)
			}

			tag := weakETag(buf.body.Bytes())
			orig.Header().Set("ETag", tag)
			if etagMatch(c.Request().Header.Get("If-None-Match"), tag) {
				orig.Header().Del(echo.HeaderContentType)
				orig.Header().Del(echo.HeaderContentLength)
				orig.WriteHeader(http.StatusNotModified)
				return nil
			}
			return flush(orig, buf, nil)
		}
	}
}

type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (w *bufferedWriter) Header() http.Header { return w.header }

func (w *bufferedWriter) WriteHeader(code int) { w.status = code }

func (w *bufferedWriter) Write(b []byte) (int, error) { return w.body.Write(b) }

func flush(w http.ResponseWriter, buf *bufferedWriter, err error) error {
	if buf.body.Len() == 0 && err != nil {
		// nothing was written; let the error handler render the response
		return err
	}
	w.WriteHeader(buf.status)
	if _, werr := w.Write(buf.body.Bytes()); werr != nil && err == nil {
		err = werr
	}
	return err
}

func weakETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + hex.EncodeToString(sum[:16]) + `"`
}

// etagMatch handles comma separated lists, "*" and weak comparison.
func etagMatch(header, tag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(tag, "W/") {
			return true
		}
	}
	return false
}
