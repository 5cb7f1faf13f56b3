package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/lwelte/gozp/pkg/db"
	"github.com/lwelte/gozp/pkg/db/queries"
)

type AlertHandler struct {
	logger *slog.Logger
	db     *db.DB
}

func NewAlertHandler(logger *slog.Logger, database *db.DB) *AlertHandler {
	return &AlertHandler{
		logger: logger.With("handler", "alerts"),
		db:     database,
	}
}

func (h *AlertHandler) Register(g *echo.Group) {
	g.GET("/alerts", h.List)
	g.GET("/alerts/sources", h.Sources)
	g.POST("/alerts/:id/dismiss", h.Dismiss)
}

type alertView struct {
	ID        int64  `json:"id"`
	Source    string `json:"source"`
	Level     string `json:"level"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Dismissed bool   `json:"dismissed"`
}

func (h *AlertHandler) List(c echo.Context) error {
	includeDismissed := c.QueryParam("all") == "true"
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	alerts, err := queries.ListAlerts(h.db.Conn(), includeDismissed, limit)
	if err != nil {
		h.logger.Error("failed to list alerts", "error", err)
		return writeError(c, err)
	}

	views := make([]alertView, 0, len(alerts))
	for _, a := range alerts {
		views = append(views, alertView{
			ID:        a.ID,
			Source:    a.Source,
			Level:     a.Level,
			Message:   a.Message.String,
			Timestamp: a.Timestamp.Unix(),
			Dismissed: a.Dismissed,
		})
	}
	return c.JSON(http.StatusOK, map[string][]alertView{"alerts": views})
}

func (h *AlertHandler) Sources(c echo.Context) error {
	sources, err := queries.ListAlertSources(h.db.Conn())
	if err != nil {
		h.logger.Error("failed to list alert sources", "error", err)
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"sources": sources})
}

func (h *AlertHandler) Dismiss(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid alert id", Kind: "invalid_argument"})
	}
	h.logger.Info("dismiss alert", "id", id)

	if err := queries.DismissAlert(h.db.Conn(), id); err != nil {
		h.logger.Error("failed to dismiss alert", "id", id, "error", err)
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"dismissed": true})
}
