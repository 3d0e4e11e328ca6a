package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"campusgo/internal/db"
	"campusgo/internal/models"
)

type UniversityHandler struct {
	universities *db.UniversityRepository
}

func NewUniversityHandler(universities *db.UniversityRepository) *UniversityHandler {
	return &UniversityHandler{universities: universities}
}

// GET /api/v1/universities
func (h *UniversityHandler) List(w http.ResponseWriter, r *http.Request) {
	var countryID int64
	if v := r.URL.Query().Get("countryId"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(w, "invalid countryId")
			return
		}
		countryID = parsed
	}

	universities, err := h.universities.FindAll(countryID, r.URL.Query().Get("search"))
	if err != nil {
		slog.Error("error listing universities", "error", err)
		internalError(w)
		return
	}
	if universities == nil {
		universities = []*models.University{}
	}

	writeJSON(w, http.StatusOK, universities)
}

// GET /api/v1/universities/{id}
func (h *UniversityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid university id")
		return
	}

	university, err := h.universities.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "University not found")
		return
	}
	if err != nil {
		slog.Error("error finding university", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, university)
}

// POST /api/v1/universities
type UniversityRequest struct {
	CountryID   int64   `json:"countryId" validate:"required,gt=0"`
	CityID      *int64  `json:"cityId" validate:"omitempty,gt=0"`
	Name        string  `json:"name" validate:"required,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
	Website     *string `json:"website" validate:"omitempty,url,max=512"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,max=512"`
	Ranking     *int64  `json:"ranking" validate:"omitempty,gt=0"`
}

func (h *UniversityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req UniversityRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	university := &models.University{
		CountryID:   req.CountryID,
		CityID:      req.CityID,
		Name:        req.Name,
		Description: req.Description,
		Website:     req.Website,
		ImageURL:    req.ImageURL,
		Ranking:     req.Ranking,
	}

	if err := h.universities.Create(university); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			conflict(w, "University already exists")
			return
		}
		slog.Error("error creating university", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, university)
}

// PUT /api/v1/universities/{id}
func (h *UniversityHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid university id")
		return
	}

	var req UniversityRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	university, err := h.universities.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "University not found")
		return
	}
	if err != nil {
		slog.Error("error finding university", "error", err)
		internalError(w)
		return
	}

	university.CountryID = req.CountryID
	university.CityID = req.CityID
	university.Name = req.Name
	university.Description = req.Description
	university.Website = req.Website
	university.ImageURL = req.ImageURL
	university.Ranking = req.Ranking

	if err := h.universities.Update(university); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "University not found")
			return
		}
		slog.Error("error updating university", "error", err, "university_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, university)
}

// DELETE /api/v1/universities/{id}
func (h *UniversityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid university id")
		return
	}

	if err := h.universities.Delete(id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "University not found")
			return
		}
		slog.Error("error deleting university", "error", err, "university_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "University deleted"})
}
