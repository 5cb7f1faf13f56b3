package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lwelte/gozp/pkg/zfs"
)

type SnapshotHandler struct {
	logger *slog.Logger
	zfs    *zfs.Manager
}

func NewSnapshotHandler(logger *slog.Logger, manager *zfs.Manager) *SnapshotHandler {
	return &SnapshotHandler{
		logger: logger.With("handler", "snapshot"),
		zfs:    manager,
	}
}

func (h *SnapshotHandler) Register(g *echo.Group) {
	g.GET("/snapshots", h.List)
	g.POST("/snapshots", h.Create)
	g.DELETE("/snapshots", h.Destroy)
	g.POST("/snapshots/clone", h.Clone)
}

func (h *SnapshotHandler) List(c echo.Context) error {
	dataset := c.QueryParam("dataset")
	h.logger.Debug("list snapshots", "dataset", dataset)

	names, err := h.zfs.ListSnapshots(c.Request().Context(), dataset)
	if err != nil {
		h.logger.Error("failed to list snapshots", "dataset", dataset, "error", err)
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"snapshots": names})
}

type createSnapshotRequest struct {
	Dataset   string `json:"dataset"`
	Name      string `json:"name"`
	Recursive bool   `json:"recursive"`
	VMSync    bool   `json:"vmsync"`
}

func (h *SnapshotHandler) Create(c echo.Context) error {
	var req createSnapshotRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, fmt.Errorf("invalid request body: %w", err))
	}
	h.logger.Info("create snapshot", "dataset", req.Dataset, "name", req.Name, "recursive", req.Recursive)

	opts := zfs.SnapshotOptions{Recursive: req.Recursive, VMSync: req.VMSync}
	if err := h.zfs.CreateSnapshot(c.Request().Context(), req.Dataset, req.Name, opts); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"created": true})
}

type destroySnapshotRequest struct {
	Dataset string `json:"dataset"`
	Name    string `json:"name"`
}

func (h *SnapshotHandler) Destroy(c echo.Context) error {
	var req destroySnapshotRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, fmt.Errorf("invalid request body: %w", err))
	}
	h.logger.Info("destroy snapshot", "dataset", req.Dataset, "name", req.Name)

	if err := h.zfs.DestroySnapshot(c.Request().Context(), req.Dataset, req.Name); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"destroyed": true})
}

type cloneSnapshotRequest struct {
	Snapshot string `json:"snapshot"`
	Target   string `json:"target"`
}

func (h *SnapshotHandler) Clone(c echo.Context) error {
	var req cloneSnapshotRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, fmt.Errorf("invalid request body: %w", err))
	}
	h.logger.Info("clone snapshot", "snapshot", req.Snapshot, "target", req.Target)

	if err := h.zfs.CloneSnapshot(c.Request().Context(), req.Snapshot, req.Target); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"cloned": true})
}
