package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"campusgo/internal/db"
	"campusgo/internal/models"
)

type CityHandler struct {
	cities *db.CityRepository
}

func NewCityHandler(cities *db.CityRepository) *CityHandler {
	return &CityHandler{cities: cities}
}

// GET /api/v1/cities
func (h *CityHandler) List(w http.ResponseWriter, r *http.Request) {
	var countryID int64
	if v := r.URL.Query().Get("countryId"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(w, "invalid countryId")
			return
		}
		countryID = parsed
	}

	cities, err := h.cities.FindAll(countryID, r.URL.Query().Get("search"))
	if err != nil {
		slog.Error("error listing cities", "error", err)
		internalError(w)
		return
	}
	if cities == nil {
		cities = []*models.City{}
	}

	writeJSON(w, http.StatusOK, cities)
}

// GET /api/v1/cities/{id}
func (h *CityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid city id")
		return
	}

	city, err := h.cities.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "City not found")
		return
	}
	if err != nil {
		slog.Error("error finding city", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, city)
}

// POST /api/v1/cities
type CityRequest struct {
	CountryID   int64   `json:"countryId" validate:"required,gt=0"`
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,max=512"`
}

func (h *CityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CityRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	city := &models.City{
		CountryID:   req.CountryID,
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	}

	if err := h.cities.Create(city); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			conflict(w, "City already exists")
			return
		}
		slog.Error("error creating city", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, city)
}

// PUT /api/v1/cities/{id}
func (h *CityHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid city id")
		return
	}

	var req CityRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	city, err := h.cities.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "City not found")
		return
	}
	if err != nil {
		slog.Error("error finding city", "error", err)
		internalError(w)
		return
	}

	city.CountryID = req.CountryID
	city.Name = req.Name
	city.Description = req.Description
	city.ImageURL = req.ImageURL

	if err := h.cities.Update(city); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "City not found")
			return
		}
		slog.Error("error updating city", "error", err, "city_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, city)
}

// DELETE /api/v1/cities/{id}
func (h *CityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid city id")
		return
	}

	if err := h.cities.Delete(id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "City not found")
			return
		}
		slog.Error("error deleting city", "error", err, "city_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "City deleted"})
}
