package api

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"tasks-api/storage"
)

func gzipBody(t *testing.T, s string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return &buf
}

func TestDecompressRequestsDecompresses(t *testing.T) {
	e := echo.New()
	var got string
	h := DecompressRequests()(func(c echo.Context) error {
		data, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		got = string(data)
		if c.Request().Header.Get(echo.HeaderContentEncoding) != "" {
			t.Fatalf("content encoding header should be removed")
		}
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", gzipBody(t, `{"title":"zip"}`))
	req.Header.Set(echo.HeaderContentEncoding, "identity, GZIP")
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if got != `{"title":"zip"}` {
		t.Fatalf("unexpected body: %q", got)
	}
}

func TestDecompressRequestsRejectsInvalidPayload(t *testing.T) {
	e := echo.New()
	h := DecompressRequests()(func(c echo.Context) error {
		t.Fatalf("next handler must not run")
		return nil
	})

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader("plain"))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	err := h(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %#v", err)
	}
}

func TestDecompressRequestsKeepsHandlerErrors(t *testing.T) {
	e := echo.New()
	h := DecompressRequests()(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "busy")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", gzipBody(t, `{}`))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	err := h(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("expected the handler's 409, got %#v", err)
	}
}

func TestOnlyGzip(t *testing.T) {
	cases := []struct {
		values []string
		want   bool
	}{
		{nil, false},
		{[]string{"gzip"}, true},
		{[]string{"identity, GZIP"}, true},
		{[]string{"identity", "x-gzip"}, true},
		{[]string{"identity"}, false},
		{[]string{"gzip, br"}, false},
	}
	for _, tc := range cases {
		if got := onlyGzip(tc.values); got != tc.want {
			t.Fatalf("onlyGzip(%q) = %v, want %v", tc.values, got, tc.want)
		}
	}
}

func TestGzippedCreateThroughRouter(t *testing.T) {
	e := newTestServer(t, storage.NewMemory())
	e.Pre(DecompressRequests())

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", gzipBody(t, `{"title":"compressed"}`))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"title":"compressed"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/missing", func(c echo.Context) error { return c.NoContent(http.StatusNotFound) })
	e.GET("/fail", func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError, "boom") })
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	cases := []struct {
		path  string
		level log.Level
	}{
		{"/ok", log.DebugLevel},
		{"/missing", log.WarnLevel},
		{"/fail", log.ErrorLevel},
	}
	for _, tc := range cases {
		hook.Reset()
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))
		entry := hook.LastEntry()
		if entry == nil {
			t.Fatalf("%s: expected a log entry", tc.path)
		}
		if entry.Level != tc.level {
			t.Fatalf("%s: expected level %v got %v", tc.path, tc.level, entry.Level)
		}
		if entry.Data["uri"] != tc.path || entry.Data["method"] != http.MethodGet {
			t.Fatalf("%s: unexpected fields %#v", tc.path, entry.Data)
		}
	}

	hook.Reset()
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if len(hook.AllEntries()) != 0 {
		t.Fatalf("health checks should not be logged")
	}
}
