package query

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/queries", h.RunQuery)
}

type queryRequest struct {
	Query string `json:"query"`
}

// RunQuery answers one natural-language question. Always 200 with a
// structured outcome; failures are reported in the body.
func (h *Handler) RunQuery(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	outcome := h.svc.RunQuery(c.Request().Context(), req.Query)
	return c.JSON(http.StatusOK, outcome)
}
