package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"campusgo/internal/db"
	"campusgo/internal/models"
)

type AdHandler struct {
	ads *db.AdRepository
}

func NewAdHandler(ads *db.AdRepository) *AdHandler {
	return &AdHandler{ads: ads}
}

// GET /api/v1/ads
func (h *AdHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"

	ads, err := h.ads.FindAll(activeOnly)
	if err != nil {
		slog.Error("error listing ads", "error", err)
		internalError(w)
		return
	}
	if ads == nil {
		ads = []*models.Ad{}
	}

	writeJSON(w, http.StatusOK, ads)
}

// GET /api/v1/ads/{id}
func (h *AdHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid ad id")
		return
	}

	ad, err := h.ads.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Ad not found")
		return
	}
	if err != nil {
		slog.Error("error finding ad", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, ad)
}

// POST /api/v1/ads
type AdRequest struct {
	Title     string  `json:"title" validate:"required,min=1,max=200"`
	ImageURL  *string `json:"imageUrl" validate:"omitempty,max=512"`
	TargetURL *string `json:"targetUrl" validate:"omitempty,url,max=512"`
	Active    bool    `json:"active"`
	StartsAt  *string `json:"startsAt" validate:"omitempty,datetime=2006-01-02"`
	EndsAt    *string `json:"endsAt" validate:"omitempty,datetime=2006-01-02"`
}

func (h *AdHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req AdRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	ad := &models.Ad{
		Title:     req.Title,
		ImageURL:  req.ImageURL,
		TargetURL: req.TargetURL,
		Active:    req.Active,
	}
	if err := applyAdWindow(ad, req.StartsAt, req.EndsAt); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.ads.Create(ad); err != nil {
		slog.Error("error creating ad", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, ad)
}

// PUT /api/v1/ads/{id}
func (h *AdHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid ad id")
		return
	}

	var req AdRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	ad, err := h.ads.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Ad not found")
		return
	}
	if err != nil {
		slog.Error("error finding ad", "error", err)
		internalError(w)
		return
	}

	ad.Title = req.Title
	ad.ImageURL = req.ImageURL
	ad.TargetURL = req.TargetURL
	ad.Active = req.Active
	ad.StartsAt = nil
	ad.EndsAt = nil
	if err := applyAdWindow(ad, req.StartsAt, req.EndsAt); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.ads.Update(ad); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Ad not found")
			return
		}
		slog.Error("error updating ad", "error", err, "ad_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, ad)
}

// DELETE /api/v1/ads/{id}
func (h *AdHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid ad id")
		return
	}

	if err := h.ads.Delete(id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Ad not found")
			return
		}
		slog.Error("error deleting ad", "error", err, "ad_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Ad deleted"})
}

func applyAdWindow(ad *models.Ad, startsAt, endsAt *string) error {
	if startsAt != nil {
		t, err := time.Parse("2006-01-02", *startsAt)
		if err != nil {
			return errors.New("invalid startsAt format")
		}
		ad.StartsAt = &t
	}
	if endsAt != nil {
		t, err := time.Parse("2006-01-02", *endsAt)
		if err != nil {
			return errors.New("invalid endsAt format")
		}
		ad.EndsAt = &t
	}
	if ad.StartsAt != nil && ad.EndsAt != nil && ad.EndsAt.Before(*ad.StartsAt) {
		return errors.New("endsAt must be after startsAt")
	}
	return nil
}
