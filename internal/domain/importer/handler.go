package importer

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/imports", h.RunImport)
	api.GET("/imports/:id", h.GetImport)
}

type importRequest struct {
	Directory string `json:"directory"`
}

// RunImport kicks off a full import of the health data files found in the
// requested directory. The outcome is always 200 with a structured result;
// import failures are reported in the body, not as HTTP errors.
func (h *Handler) RunImport(c echo.Context) error {
	var req importRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Directory) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "directory is required")
	}
	result := h.svc.ImportDirectory(c.Request().Context(), req.Directory)
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) GetImport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	run, err := h.svc.GetImport(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "import not found")
	}
	return c.JSON(http.StatusOK, run)
}
