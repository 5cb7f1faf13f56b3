package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lwelte/gozp/pkg/zfs"
)

// errorBody is the JSON error shape returned by every handler. Engine
// errors keep the engine's own numeric code.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Code  int    `json:"code,omitempty"`
}

// writeError maps domain errors onto HTTP statuses: invalid-argument 400,
// not-found 404, not-implemented 501, engine failure 502, everything
// else 500.
func writeError(c echo.Context, err error) error {
	if e, ok := zfs.AsError(err); ok {
		status := http.StatusInternalServerError
		switch e.Kind {
		case zfs.KindInvalidArgument:
			status = http.StatusBadRequest
		case zfs.KindNotFound:
			status = http.StatusNotFound
		case zfs.KindNotImplemented:
			status = http.StatusNotImplemented
		case zfs.KindEngine:
			status = http.StatusBadGateway
		}
		return c.JSON(status, errorBody{Error: e.Message, Kind: e.Kind.String(), Code: e.Code})
	}
	return c.JSON(http.StatusInternalServerError, errorBody{Error: err.Error(), Kind: "internal"})
}
