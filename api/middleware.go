package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

const inflatedKey = "tasks.body_inflated"

// DecompressRequests inflates gzip task bodies with echo's Decompress.
// A coding list made only of gzip and identity is collapsed to "gzip" first.
// A body that is not gzip at all is answered with 400.
func DecompressRequests() echo.MiddlewareFunc {
	decompress := middleware.Decompress()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		inflate := decompress(func(c echo.Context) error {
			c.Set(inflatedKey, true)
			c.Request().Header.Del(echo.HeaderContentEncoding)
			c.Request().ContentLength = -1
			return next(c)
		})
		return func(c echo.Context) error {
			req := c.Request()
			if !onlyGzip(req.Header.Values(echo.HeaderContentEncoding)) {
				return next(c)
			}
			req.Header.Set(echo.HeaderContentEncoding, middleware.GZIPEncoding)
			err := inflate(c)
			if err != nil && c.Get(inflatedKey) == nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body").SetInternal(err)
			}
			return err
		}
	}
}

func onlyGzip(values []string) bool {
	gzipped := false
	for _, v := range values {
		for _, coding := range strings.Split(v, ",") {
			switch strings.ToLower(strings.TrimSpace(coding)) {
			case "gzip", "x-gzip":
				gzipped = true
			case "identity", "":
			default:
				return false
			}
		}
	}
	return gzipped
}

// RequestLogger logs one line per request through logrus. Server errors log
// at error level, client errors at warn.
func RequestLogger(logger *log.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/healthz" || c.Path() == "/metrics"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.WithFields(log.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": durationToMillis(v.Latency),
				"remote_ip":  v.RemoteIP,
			})
			if v.RequestID != "" {
				entry = entry.WithField("request_id", v.RequestID)
			}
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			switch {
			case v.Status >= http.StatusInternalServerError:
				entry.Error("request")
			case v.Status >= http.StatusBadRequest:
				entry.Warn("request")
			default:
				entry.Debug("request")
			}
			return nil
		},
	})
}
