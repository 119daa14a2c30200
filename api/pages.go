package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"tasks-api/domain"
)

type indexData struct {
	Tasks []domain.TaskView
}

type detailData struct {
	Task      domain.TaskView
	IsOverdue bool
}

func indexPage(tasks Tasks, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		views, err := tasks.List(c.Request().Context())
		if err != nil {
			logger.WithError(err).Error("render index")
			return echo.NewHTTPError(http.StatusInternalServerError, "db_error").SetInternal(err)
		}
		return c.Render(http.StatusOK, "index.html", indexData{Tasks: views})
	}
}

func addPage() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, "add_task.html", nil)
	}
}

func taskDetailPage(tasks Tasks, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		view, err := tasks.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, domain.ErrInvalidID) || errors.Is(err, domain.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, domain.ErrNotFound.Error())
			}
			logger.WithError(err).WithField("task", c.Param("id")).Error("render task detail")
			return echo.NewHTTPError(http.StatusInternalServerError, "db_error").SetInternal(err)
		}
		return c.Render(http.StatusOK, "task_detail.html", detailData{
			Task:      view,
			IsOverdue: domain.IsOverdue(view, time.Now()),
		})
	}
}
