package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"campusgo/internal/db"
	"campusgo/internal/models"
)

type CountryHandler struct {
	countries *db.CountryRepository
}

func NewCountryHandler(countries *db.CountryRepository) *CountryHandler {
	return &CountryHandler{countries: countries}
}

// GET /api/v1/countries
func (h *CountryHandler) List(w http.ResponseWriter, r *http.Request) {
	countries, err := h.countries.FindAll(r.URL.Query().Get("search"))
	if err != nil {
		slog.Error("error listing countries", "error", err)
		internalError(w)
		return
	}
	if countries == nil {
		countries = []*models.Country{}
	}

	writeJSON(w, http.StatusOK, countries)
}

// GET /api/v1/countries/{id}
func (h *CountryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid country id")
		return
	}

	country, err := h.countries.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Country not found")
		return
	}
	if err != nil {
		slog.Error("error finding country", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, country)
}

// POST /api/v1/countries
type CountryRequest struct {
	Name         string  `json:"name" validate:"required,min=1,max=100"`
	Description  *string `json:"description" validate:"omitempty,max=10000"`
	ImageURL     *string `json:"imageUrl" validate:"omitempty,max=512"`
	VisaInfo     *string `json:"visaInfo" validate:"omitempty,max=10000"`
	CostOfLiving *string `json:"costOfLiving" validate:"omitempty,max=10000"`
}

func (h *CountryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CountryRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	country := &models.Country{
		Name:         req.Name,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		VisaInfo:     req.VisaInfo,
		CostOfLiving: req.CostOfLiving,
	}

	if err := h.countries.Create(country); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			conflict(w, "Country already exists")
			return
		}
		slog.Error("error creating country", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, country)
}

// PUT /api/v1/countries/{id}
func (h *CountryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid country id")
		return
	}

	var req CountryRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	country, err := h.countries.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Country not found")
		return
	}
	if err != nil {
		slog.Error("error finding country", "error", err)
		internalError(w)
		return
	}

	country.Name = req.Name
	country.Description = req.Description
	country.ImageURL = req.ImageURL
	country.VisaInfo = req.VisaInfo
	country.CostOfLiving = req.CostOfLiving

	if err := h.countries.Update(country); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			conflict(w, "Country already exists")
			return
		}
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Country not found")
			return
		}
		slog.Error("error updating country", "error", err, "country_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, country)
}

// DELETE /api/v1/countries/{id}
func (h *CountryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid country id")
		return
	}

	if err := h.countries.Delete(id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Country not found")
			return
		}
		slog.Error("error deleting country", "error", err, "country_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Country deleted"})
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
