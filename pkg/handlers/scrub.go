package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lwelte/gozp/pkg/db"
	"github.com/lwelte/gozp/pkg/db/queries"
	"github.com/lwelte/gozp/pkg/jobs"
	"github.com/lwelte/gozp/pkg/zfs"
)

type ScrubHandler struct {
	logger *slog.Logger
	zfs    *zfs.Manager
	jobs   *jobs.Manager
	db     *db.DB
}

func NewScrubHandler(logger *slog.Logger, manager *zfs.Manager, jobManager *jobs.Manager, database *db.DB) *ScrubHandler {
	return &ScrubHandler{
		logger: logger.With("handler", "scrub"),
		zfs:    manager,
		jobs:   jobManager,
		db:     database,
	}
}

func (h *ScrubHandler) Register(g *echo.Group) {
	g.POST("/pools/:name/scrub", h.Start)
	g.GET("/pools/:name/scrub/history", h.History)
}

// Start runs a scrub end to end: the response is not written until the
// monitor observes a terminal scan state. Progress lands in the job
// journal and can be replayed via the jobs endpoint while this request is
// still in flight. Scrubs on the same pool are serialized by the job
// manager's keyed lock.
func (h *ScrubHandler) Start(c echo.Context) error {
	name := c.Param("name")
	h.logger.Info("start scrub", "pool", name)

	job, err := h.jobs.Run("pool.scrub", name, func(job *jobs.Job) error {
		rec := &queries.ScrubRecord{
			JobID:     job.ID,
			Pool:      name,
			StartedAt: time.Now(),
			Status:    string(jobs.StateRunning),
		}
		if err := queries.InsertScrub(h.db.Conn(), rec); err != nil {
			h.logger.Warn("failed to record scrub start", "error", err)
		}

		err := h.zfs.Scrub(c.Request().Context(), name, job.SetProgress)

		info := job.Snapshot()
		status := string(jobs.StateSuccess)
		if err != nil {
			status = string(jobs.StateFailed)
		}
		if dbErr := queries.FinishScrub(h.db.Conn(), job.ID, status, info.Progress); dbErr != nil {
			h.logger.Warn("failed to record scrub finish", "error", dbErr)
		}
		if err != nil {
			h.fileAlert("ScrubFailed", "Scrub of pool "+name+" failed: "+err.Error())
		}
		return err
	})
	if err != nil {
		h.logger.Error("scrub failed", "pool", name, "error", err)
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, job.Snapshot())
}

func (h *ScrubHandler) History(c echo.Context) error {
	name := c.Param("name")
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	records, err := queries.ListScrubHistory(h.db.Conn(), name, limit)
	if err != nil {
		h.logger.Error("failed to list scrub history", "pool", name, "error", err)
		return writeError(c, err)
	}

	type entry struct {
		JobID      string  `json:"job_id"`
		Pool       string  `json:"pool"`
		StartedAt  int64   `json:"started_at"`
		FinishedAt int64   `json:"finished_at,omitempty"`
		Status     string  `json:"status"`
		Progress   float64 `json:"progress"`
	}
	entries := make([]entry, 0, len(records))
	for _, r := range records {
		e := entry{
			JobID:     r.JobID,
			Pool:      r.Pool,
			StartedAt: r.StartedAt.Unix(),
			Status:    r.Status,
			Progress:  r.Progress,
		}
		if r.FinishedAt.Valid {
			e.FinishedAt = r.FinishedAt.Time.Unix()
		}
		entries = append(entries, e)
	}
	return c.JSON(http.StatusOK, map[string]any{"entries": entries})
}

func (h *ScrubHandler) fileAlert(source, message string) {
	err := queries.InsertAlert(h.db.Conn(), &queries.Alert{
		Source:    source,
		Level:     "CRITICAL",
		Message:   sql.NullString{String: message, Valid: true},
		Timestamp: time.Now(),
	})
	if err != nil {
		h.logger.Warn("failed to file alert", "source", source, "error", err)
	}
}
