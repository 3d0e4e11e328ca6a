package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"campusgo/internal/blob"
	"campusgo/internal/constants"
)

// uploadURLPrefix is where stored files are exposed over HTTP. Profile and
// catalog image URLs in the database are all under this prefix.
const uploadURLPrefix = "/upload/"

type UploadHandler struct {
	blobs *blob.Service
}

func NewUploadHandler(blobs *blob.Service) *UploadHandler {
	return &UploadHandler{blobs: blobs}
}

type UploadResponse struct {
	URL      string `json:"url"`
	Path     string `json:"path"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// POST /api/v1/uploads/{kind}
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	kind := blob.Kind(chi.URLParam(r, "kind"))

	// The multipart framing adds overhead on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.blobs.MaxUploadBytes()+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, constants.ErrCodePayloadTooLarge, "Uploaded file too large")
			return
		}
		badRequest(w, "file field is required")
		return
	}
	defer file.Close()

	stored, err := h.blobs.Save(r.Context(), kind, header.Filename, file)
	switch {
	case errors.Is(err, blob.ErrInvalidKind):
		badRequest(w, "invalid upload kind")
		return
	case errors.Is(err, blob.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, constants.ErrCodePayloadTooLarge, "Uploaded file too large")
		return
	case errors.Is(err, blob.ErrExecutableFile), errors.Is(err, blob.ErrDisallowedType):
		badRequest(w, "only image files are accepted")
		return
	case err != nil:
		slog.Error("error storing upload", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		URL:      uploadURLPrefix + stored.StoragePath,
		Path:     stored.StoragePath,
		MimeType: stored.MimeType,
		Size:     stored.SizeBytes,
	})
}

// GET /upload/*
func (h *UploadHandler) Serve(w http.ResponseWriter, r *http.Request) {
	relPath := chi.URLParam(r, "*")
	if relPath == "" {
		notFound(w, "File not found")
		return
	}

	f, err := h.blobs.Open(relPath)
	if errors.Is(err, blob.ErrInvalidPath) {
		badRequest(w, "invalid file path")
		return
	}
	if err != nil {
		notFound(w, "File not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		notFound(w, "File not found")
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// uploadRelativePath maps a stored image URL back to the blob storage path,
// for cleanup when the image is replaced or its owner deleted.
func uploadRelativePath(imageURL string) (string, bool) {
	if !strings.HasPrefix(imageURL, uploadURLPrefix) {
		return "", false
	}
	relPath := strings.TrimPrefix(imageURL, uploadURLPrefix)
	if relPath == "" {
		return "", false
	}
	return relPath, true
}
