package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/lwelte/gozp/pkg/zfs"
)

type PoolHandler struct {
	logger *slog.Logger
	zfs    *zfs.Manager
}

func NewPoolHandler(logger *slog.Logger, manager *zfs.Manager) *PoolHandler {
	return &PoolHandler{
		logger: logger.With("handler", "pool"),
		zfs:    manager,
	}
}

func (h *PoolHandler) Register(g *echo.Group) {
	g.GET("/pools/:name", h.Status)
	g.GET("/pools/:name/disks", h.Disks)
	g.POST("/pools/:name/extend", h.Extend)
	g.POST("/pools/:name/detach", h.Detach)
	g.POST("/pools/:name/replace", h.Replace)
}

type vdevView struct {
	Name     string     `json:"name"`
	GUID     string     `json:"guid,omitempty"`
	Type     string     `json:"type"`
	Path     string     `json:"path,omitempty"`
	State    string     `json:"state,omitempty"`
	Children []vdevView `json:"children,omitempty"`
}

type poolView struct {
	Name  string     `json:"name"`
	State string     `json:"state"`
	Scan  *scanView  `json:"scan,omitempty"`
	Vdevs []vdevView `json:"vdevs"`
}

type scanView struct {
	Function   string  `json:"function"`
	State      string  `json:"state"`
	Percentage float64 `json:"percentage"`
}

func vdevToView(v *zfs.Vdev) vdevView {
	view := vdevView{
		Name:  v.Name,
		Type:  v.Type,
		Path:  v.Path,
		State: v.State,
	}
	if v.GUID != 0 {
		view.GUID = strconv.FormatUint(v.GUID, 10)
	}
	for _, c := range v.Children {
		view.Children = append(view.Children, vdevToView(c))
	}
	return view
}

func scanToView(s *zfs.ScanStatus) *scanView {
	if s == nil {
		return nil
	}
	view := &scanView{Percentage: s.Percentage}
	switch s.Function {
	case zfs.ScanFunctionScrub:
		view.Function = "scrub"
	case zfs.ScanFunctionResilver:
		view.Function = "resilver"
	default:
		view.Function = "none"
	}
	switch s.State {
	case zfs.ScanStateScanning:
		view.State = "scanning"
	case zfs.ScanStateFinished:
		view.State = "finished"
	case zfs.ScanStateCanceled:
		view.State = "canceled"
	default:
		view.State = "none"
	}
	return view
}

func (h *PoolHandler) Status(c echo.Context) error {
	name := c.Param("name")
	h.logger.Debug("pool status", "pool", name)

	pool, err := h.zfs.GetPool(c.Request().Context(), name)
	if err != nil {
		h.logger.Error("failed to load pool", "pool", name, "error", err)
		return writeError(c, err)
	}

	view := poolView{
		Name:  pool.Name,
		State: pool.State,
		Scan:  scanToView(pool.Scan),
	}
	for _, v := range pool.Root.Children {
		view.Vdevs = append(view.Vdevs, vdevToView(v))
	}
	return c.JSON(http.StatusOK, view)
}

func (h *PoolHandler) Disks(c echo.Context) error {
	name := c.Param("name")
	h.logger.Debug("pool disks", "pool", name)

	disks, err := h.zfs.Disks(c.Request().Context(), name)
	if err != nil {
		h.logger.Error("failed to enumerate disks", "pool", name, "error", err)
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"disks": disks})
}

type extendRequest struct {
	New      []string         `json:"new"`
	Existing []zfs.AttachVdev `json:"existing"`
}

func (h *PoolHandler) Extend(c echo.Context) error {
	name := c.Param("name")

	var req extendRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, fmt.Errorf("invalid request body: %w", err))
	}
	h.logger.Info("extend pool", "pool", name, "new", len(req.New), "existing", len(req.Existing))

	if err := h.zfs.Extend(c.Request().Context(), name, req.New, req.Existing); err != nil {
		h.logger.Error("extend failed", "pool", name, "error", err)
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"extended": true})
}

type detachRequest struct {
	Label string `json:"label"`
}

func (h *PoolHandler) Detach(c echo.Context) error {
	name := c.Param("name")

	var req detachRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, fmt.Errorf("invalid request body: %w", err))
	}
	h.logger.Info("detach device", "pool", name, "label", req.Label)

	if err := h.zfs.Detach(c.Request().Context(), name, req.Label); err != nil {
		h.logger.Error("detach failed", "pool", name, "label", req.Label, "error", err)
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"detached": true})
}

type replaceRequest struct {
	Label string `json:"label"`
	Dev   string `json:"dev"`
}

func (h *PoolHandler) Replace(c echo.Context) error {
	name := c.Param("name")

	var req replaceRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, fmt.Errorf("invalid request body: %w", err))
	}
	h.logger.Info("replace device", "pool", name, "label", req.Label, "dev", req.Dev)

	if err := h.zfs.Replace(c.Request().Context(), name, req.Label, req.Dev); err != nil {
		h.logger.Error("replace failed", "pool", name, "label", req.Label, "error", err)
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"replaced": true})
}
