package api

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	"campusgo/internal/db"
	"campusgo/internal/models"
)

// guideContentPolicy strips script content and event handlers from the
// rich-text guide body while keeping common formatting tags.
var guideContentPolicy = bluemonday.UGCPolicy()

var slugCleanupRegex = regexp.MustCompile(`[^a-z0-9]+`)

type GuideHandler struct {
	guides *db.GuideRepository
}

func NewGuideHandler(guides *db.GuideRepository) *GuideHandler {
	return &GuideHandler{guides: guides}
}

// GET /api/v1/guides
func (h *GuideHandler) List(w http.ResponseWriter, r *http.Request) {
	publishedOnly := r.URL.Query().Get("all") != "true"

	guides, err := h.guides.FindAll(publishedOnly, r.URL.Query().Get("search"))
	if err != nil {
		slog.Error("error listing guides", "error", err)
		internalError(w)
		return
	}
	if guides == nil {
		guides = []*models.Guide{}
	}

	writeJSON(w, http.StatusOK, guides)
}

// GET /api/v1/guides/{id}
func (h *GuideHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid guide id")
		return
	}

	guide, err := h.guides.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Guide not found")
		return
	}
	if err != nil {
		slog.Error("error finding guide", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, guide)
}

// GET /api/v1/guides/slug/{slug}
func (h *GuideHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		badRequest(w, "slug is required")
		return
	}

	guide, err := h.guides.FindBySlug(slug)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Guide not found")
		return
	}
	if err != nil {
		slog.Error("error finding guide by slug", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, guide)
}

// POST /api/v1/guides
type GuideRequest struct {
	Title     string  `json:"title" validate:"required,min=1,max=200"`
	Slug      *string `json:"slug" validate:"omitempty,min=1,max=200"`
	Content   string  `json:"content" validate:"required,max=100000"`
	ImageURL  *string `json:"imageUrl" validate:"omitempty,max=512"`
	Published bool    `json:"published"`
}

func (h *GuideHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req GuideRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	slug := slugify(req.Title)
	if req.Slug != nil {
		slug = slugify(*req.Slug)
	}
	if slug == "" {
		badRequest(w, "title does not produce a valid slug")
		return
	}

	guide := &models.Guide{
		Title:     req.Title,
		Slug:      slug,
		Content:   guideContentPolicy.Sanitize(req.Content),
		ImageURL:  req.ImageURL,
		Published: req.Published,
	}

	if err := h.guides.Create(guide); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			conflict(w, "A guide with this slug already exists")
			return
		}
		slog.Error("error creating guide", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, guide)
}

// PUT /api/v1/guides/{id}
func (h *GuideHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid guide id")
		return
	}

	var req GuideRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	guide, err := h.guides.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Guide not found")
		return
	}
	if err != nil {
		slog.Error("error finding guide", "error", err)
		internalError(w)
		return
	}

	guide.Title = req.Title
	if req.Slug != nil {
		slug := slugify(*req.Slug)
		if slug == "" {
			badRequest(w, "invalid slug")
			return
		}
		guide.Slug = slug
	}
	guide.Content = guideContentPolicy.Sanitize(req.Content)
	guide.ImageURL = req.ImageURL
	guide.Published = req.Published

	if err := h.guides.Update(guide); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			conflict(w, "A guide with this slug already exists")
			return
		}
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Guide not found")
			return
		}
		slog.Error("error updating guide", "error", err, "guide_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, guide)
}

// DELETE /api/v1/guides/{id}
func (h *GuideHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid guide id")
		return
	}

	if err := h.guides.Delete(id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Guide not found")
			return
		}
		slog.Error("error deleting guide", "error", err, "guide_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Guide deleted"})
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugCleanupRegex.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
