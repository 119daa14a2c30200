package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"tasks-api/domain"
)

// Register wires up all page and API routes on the provided Echo instance.
// A nil deduper disables Idempotency-Key handling on task creation.
func Register(e *echo.Echo, tasks Tasks, dedup Deduper, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e.JSONSerializer = sonicSerializer{}
	e.Renderer = NewRenderer()
	e.HTTPErrorHandler = errorHandler(logger)

	e.GET("/", indexPage(tasks, logger))
	e.GET("/add", addPage())
	e.GET("/tasks/:id", taskDetailPage(tasks, logger))

	e.GET("/api/tasks", listTasks(tasks, logger))
	e.POST("/api/tasks", createTask(tasks, dedup, logger))
	e.PATCH("/api/tasks/reorder", reorderTasks(tasks, logger))
	e.GET("/api/tasks/:id", getTask(tasks, logger))
	e.PATCH("/api/tasks/:id", updateTask(tasks, logger))
	e.DELETE("/api/tasks/:id", deleteTask(tasks, logger))

	e.POST("/admin/seed-order", seedOrder(tasks, logger))
	e.GET("/healthz", healthz(tasks))
}

// startMetrics opens request metrics and moves the request onto the span context.
func startMetrics(c echo.Context, logger *log.Logger, route string) *requestMetrics {
	req := c.Request()
	metrics, spanCtx := newRequestMetrics(req.Context(), logger, req.Method, route)
	if spanCtx != nil {
		c.SetRequest(req.WithContext(spanCtx))
	}
	return metrics
}

// writeError maps service errors onto the JSON error bodies of the API.
func writeError(c echo.Context, metrics *requestMetrics, err error) error {
	var verr *domain.ValidationError
	var rerr *domain.ReorderIDError
	switch {
	case errors.As(err, &verr):
		metrics.Fail("validation", nil)
		return c.JSON(http.StatusBadRequest, errorsResponse{Errors: verr.Errors})
	case errors.As(err, &rerr):
		metrics.Fail("bad_id", nil)
		return c.JSON(http.StatusBadRequest, errorResponse{Error: rerr.Error()})
	case errors.Is(err, domain.ErrInvalidID):
		metrics.Fail("invalid_id", nil)
		return c.JSON(http.StatusBadRequest, errorResponse{Error: domain.ErrInvalidID.Error()})
	case errors.Is(err, domain.ErrEmptyReorder):
		metrics.Fail("validation", nil)
		return c.JSON(http.StatusBadRequest, errorResponse{Error: domain.ErrEmptyReorder.Error()})
	case errors.Is(err, domain.ErrNotFound):
		metrics.Fail("not_found", nil)
		return c.JSON(http.StatusNotFound, errorResponse{Error: domain.ErrNotFound.Error()})
	default:
		metrics.Fail("storage", err)
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "db_error", Detail: err.Error()})
	}
}

func listTasks(tasks Tasks, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := startMetrics(c, logger, "/api/tasks")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		start := time.Now()
		views, listErr := tasks.List(c.Request().Context())
		metrics.ObserveStore(time.Since(start))
		if listErr != nil {
			return writeError(c, metrics, listErr)
		}
		metrics.SetTasksReturned(len(views))
		return c.JSON(http.StatusOK, views)
	}
}

func getTask(tasks Tasks, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := startMetrics(c, logger, "/api/tasks/:id")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		start := time.Now()
		view, getErr := tasks.Get(c.Request().Context(), c.Param("id"))
		metrics.ObserveStore(time.Since(start))
		if getErr != nil {
			return writeError(c, metrics, getErr)
		}
		return c.JSON(http.StatusOK, view)
	}
}

func createTask(tasks Tasks, dedup Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := startMetrics(c, logger, "/api/tasks")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()
		ctx := c.Request().Context()

		payload, typeErrs := decodeTaskPayload(decodeObject(readBody(c)))
		nt, verr := domain.ValidateCreate(payload)
		if len(typeErrs) > 0 || verr != nil {
			var msgs []string
			msgs = append(msgs, typeErrs...)
			var ve *domain.ValidationError
			if errors.As(verr, &ve) {
				msgs = append(msgs, ve.Errors...)
			}
			return writeError(c, metrics, &domain.ValidationError{Errors: msgs})
		}

		key := c.Request().Header.Get(idempotencyHeader)
		if dedup == nil {
			key = ""
		}
		if key != "" {
			taskID, fresh, dedupErr := dedup.Reserve(ctx, key)
			switch {
			case dedupErr != nil:
				logger.WithError(dedupErr).Warn("idempotency reserve failed; creating without dedup")
				key = ""
			case !fresh && taskID == "":
				metrics.Fail("idempotency_in_flight", nil)
				return c.JSON(http.StatusConflict, errorResponse{Error: "request with this idempotency key is in progress"})
			case !fresh:
				view, getErr := tasks.Get(ctx, taskID)
				if getErr != nil {
					return writeError(c, metrics, getErr)
				}
				c.Response().Header().Set("Idempotent-Replayed", "true")
				return c.JSON(http.StatusCreated, view)
			}
		}

		start := time.Now()
		view, createErr := tasks.Create(ctx, nt)
		metrics.ObserveStore(time.Since(start))
		if createErr != nil {
			if key != "" {
				if relErr := dedup.Release(ctx, key); relErr != nil {
					logger.WithError(relErr).Warn("idempotency release failed")
				}
			}
			return writeError(c, metrics, createErr)
		}
		if key != "" {
			if compErr := dedup.Complete(ctx, key, view.ID); compErr != nil {
				logger.WithError(compErr).WithField("task", view.ID).Warn("idempotency complete failed")
			}
		}
		return c.JSON(http.StatusCreated, view)
	}
}

func updateTask(tasks Tasks, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := startMetrics(c, logger, "/api/tasks/:id")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		changes, verr := decodeUpdate(decodeObject(readBody(c)))
		if verr != nil {
			return writeError(c, metrics, verr)
		}

		start := time.Now()
		view, patchErr := tasks.Patch(c.Request().Context(), c.Param("id"), changes)
		metrics.ObserveStore(time.Since(start))
		if patchErr != nil {
			return writeError(c, metrics, patchErr)
		}
		return c.JSON(http.StatusOK, view)
	}
}

func reorderTasks(tasks Tasks, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := startMetrics(c, logger, "/api/tasks/reorder")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		obj := decodeObject(readBody(c))
		if schemaErr := validateReorderBody(obj); schemaErr != nil {
			logger.WithError(schemaErr).Debug("reorder body rejected")
			return writeError(c, metrics, domain.ErrEmptyReorder)
		}
		raw, _ := obj["ids"].([]any)
		ids := make([]string, len(raw))
		for i, v := range raw {
			s, ok := v.(string)
			if !ok {
				return writeError(c, metrics, &domain.ReorderIDError{Index: i, Value: renderValue(v), Err: domain.ErrInvalidID})
			}
			ids[i] = s
		}

		start := time.Now()
		reorderErr := tasks.Reorder(c.Request().Context(), ids)
		metrics.ObserveStore(time.Since(start))
		if reorderErr != nil {
			return writeError(c, metrics, reorderErr)
		}
		return c.JSON(http.StatusOK, okResponse{OK: true})
	}
}

func deleteTask(tasks Tasks, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := startMetrics(c, logger, "/api/tasks/:id")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		start := time.Now()
		deleteErr := tasks.Delete(c.Request().Context(), c.Param("id"))
		metrics.ObserveStore(time.Since(start))
		if deleteErr != nil {
			return writeError(c, metrics, deleteErr)
		}
		return c.JSON(http.StatusOK, okResponse{OK: true})
	}
}

func seedOrder(tasks Tasks, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := startMetrics(c, logger, "/admin/seed-order")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		start := time.Now()
		n, seedErr := tasks.SeedOrder(c.Request().Context())
		metrics.ObserveStore(time.Since(start))
		if seedErr != nil {
			return writeError(c, metrics, seedErr)
		}
		metrics.SetTasksReturned(n)
		return c.JSON(http.StatusOK, seedResponse{OK: true, Updated: n})
	}
}

func healthz(tasks Tasks) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := tasks.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusInternalServerError, healthResponse{OK: false, Error: err.Error()})
		}
		return c.JSON(http.StatusOK, healthResponse{OK: true})
	}
}

// errorHandler renders errors that escape handlers, including recovered
// panics, as JSON bodies.
func errorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg, ok := he.Message.(string)
			if !ok {
				msg = http.StatusText(he.Code)
			}
			if c.Request().Method == http.MethodHead {
				err = c.NoContent(he.Code)
			} else {
				err = c.JSON(he.Code, errorResponse{Error: msg})
			}
		} else {
			logger.WithError(err).Error("unhandled request error")
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: "server_error", Detail: err.Error()})
		}
		if err != nil {
			logger.WithError(err).Warn("write error response")
		}
	}
}
