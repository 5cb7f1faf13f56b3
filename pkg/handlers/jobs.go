package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lwelte/gozp/pkg/jobs"
)

type JobHandler struct {
	logger *slog.Logger
	jobs   *jobs.Manager
}

func NewJobHandler(logger *slog.Logger, manager *jobs.Manager) *JobHandler {
	return &JobHandler{
		logger: logger.With("handler", "jobs"),
		jobs:   manager,
	}
}

func (h *JobHandler) Register(g *echo.Group) {
	g.GET("/jobs/:id", h.Get)
	g.GET("/jobs/:id/events", h.Events)
}

func (h *JobHandler) Get(c echo.Context) error {
	id := c.Param("id")
	job, ok := h.jobs.Get(id)
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody{Error: "no such job", Kind: "not_found"})
	}
	return c.JSON(http.StatusOK, job.Snapshot())
}

// Events replays the journaled progress stream for a job, including jobs
// that finished in a previous run of the daemon.
func (h *JobHandler) Events(c echo.Context) error {
	id := c.Param("id")
	events, err := h.jobs.Events(id)
	if err != nil {
		h.logger.Error("failed to read job events", "job_id", id, "error", err)
		return writeError(c, err)
	}
	if events == nil {
		events = []jobs.Event{}
	}
	return c.JSON(http.StatusOK, map[string][]jobs.Event{"events": events})
}
