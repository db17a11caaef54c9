package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/antrikuy/antrikuy-backend/internal/model"
	"github.com/antrikuy/antrikuy-backend/internal/repository"
)

// SchoolHandler serves the minimal school registry.  Membership
// management itself lives in an external workflow; the backend only
// needs the schools that scope events and admin accounts.
type SchoolHandler struct {
	Schools *repository.SchoolRepo
}

func NewSchoolHandler(s *repository.SchoolRepo) *SchoolHandler {
	return &SchoolHandler{Schools: s}
}

type schoolReq struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func schoolJSON(s *model.School) echo.Map {
	return echo.Map{"id": s.ID, "code": s.Code, "name": s.Name}
}

// Create registers a new school.
func (h *SchoolHandler) Create(c echo.Context) error {
	var req schoolReq
	if err := c.Bind(&req); err != nil || req.Code == "" || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "code dan name wajib diisi"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	s := &model.School{Code: req.Code, Name: req.Name}
	if err := h.Schools.Create(ctx, s); err != nil {
		if repository.IsDuplicateKey(err) {
			return c.JSON(http.StatusConflict, echo.Map{"message": "Kode sekolah sudah terdaftar"})
		}
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, schoolJSON(s))
}

// List returns every registered school.
func (h *SchoolHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	schools, err := h.Schools.List(ctx)
	if err != nil {
		return respondErr(c, err)
	}
	out := make([]echo.Map, 0, len(schools))
	for i := range schools {
		out = append(out, schoolJSON(&schools[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"schools": out})
}

// Get returns one school by ID.
func (h *SchoolHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid school id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	s, err := h.Schools.GetByID(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, schoolJSON(s))
}
