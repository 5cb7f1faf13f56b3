package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lwelte/gozp/pkg/disk"
)

type MirrorHandler struct {
	logger *slog.Logger
	disks  *disk.Scanner
}

func NewMirrorHandler(logger *slog.Logger, scanner *disk.Scanner) *MirrorHandler {
	return &MirrorHandler{
		logger: logger.With("handler", "mirror"),
		disks:  scanner,
	}
}

func (h *MirrorHandler) Register(g *echo.Group) {
	g.GET("/mirrors", h.List)
	g.POST("/mirrors", h.Create)
	g.POST("/mirrors/stop", h.Stop)
}

func (h *MirrorHandler) List(c echo.Context) error {
	mirrors, err := h.disks.ListMirrors()
	if err != nil {
		h.logger.Error("failed to list mirrors", "error", err)
		return writeError(c, err)
	}
	if mirrors == nil {
		mirrors = []*disk.Mirror{}
	}
	return c.JSON(http.StatusOK, map[string][]*disk.Mirror{"mirrors": mirrors})
}

type createMirrorRequest struct {
	Name  string   `json:"name"`
	Level int      `json:"level"`
	Paths []string `json:"paths"`
}

func (h *MirrorHandler) Create(c echo.Context) error {
	var req createMirrorRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, fmt.Errorf("invalid request body: %w", err))
	}
	h.logger.Info("create mirror", "name", req.Name, "level", req.Level, "members", len(req.Paths))

	if err := h.disks.CreateMirror(c.Request().Context(), req.Name, req.Level, req.Paths); err != nil {
		h.logger.Error("failed to create mirror", "name", req.Name, "error", err)
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"created": true})
}

type stopMirrorRequest struct {
	Path string `json:"path"`
}

func (h *MirrorHandler) Stop(c echo.Context) error {
	var req stopMirrorRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, fmt.Errorf("invalid request body: %w", err))
	}
	h.logger.Info("stop mirror", "path", req.Path)

	if err := h.disks.StopMirror(c.Request().Context(), req.Path); err != nil {
		h.logger.Error("failed to stop mirror", "path", req.Path, "error", err)
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"stopped": true})
}
