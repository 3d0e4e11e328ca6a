package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"campusgo/internal/db"
	"campusgo/internal/models"
)

type ProgramHandler struct {
	programs *db.ProgramRepository
}

func NewProgramHandler(programs *db.ProgramRepository) *ProgramHandler {
	return &ProgramHandler{programs: programs}
}

// GET /api/v1/programs
func (h *ProgramHandler) List(w http.ResponseWriter, r *http.Request) {
	var universityID int64
	if v := r.URL.Query().Get("universityId"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(w, "invalid universityId")
			return
		}
		universityID = parsed
	}

	programs, err := h.programs.FindAll(universityID, r.URL.Query().Get("level"), r.URL.Query().Get("search"))
	if err != nil {
		slog.Error("error listing programs", "error", err)
		internalError(w)
		return
	}
	if programs == nil {
		programs = []*models.Program{}
	}

	writeJSON(w, http.StatusOK, programs)
}

// GET /api/v1/programs/{id}
func (h *ProgramHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid program id")
		return
	}

	program, err := h.programs.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Program not found")
		return
	}
	if err != nil {
		slog.Error("error finding program", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, program)
}

// POST /api/v1/programs
type ProgramRequest struct {
	UniversityID   int64    `json:"universityId" validate:"required,gt=0"`
	Name           string   `json:"name" validate:"required,min=1,max=200"`
	Level          string   `json:"level" validate:"required,oneof=licence master doctorat"`
	Field          *string  `json:"field" validate:"omitempty,max=100"`
	Language       *string  `json:"language" validate:"omitempty,max=50"`
	DurationMonths *int64   `json:"durationMonths" validate:"omitempty,gt=0,lte=120"`
	TuitionFee     *float64 `json:"tuitionFee" validate:"omitempty,gte=0"`
	Description    *string  `json:"description" validate:"omitempty,max=10000"`
}

func (h *ProgramHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProgramRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	program := &models.Program{
		UniversityID:   req.UniversityID,
		Name:           req.Name,
		Level:          req.Level,
		Field:          req.Field,
		Language:       req.Language,
		DurationMonths: req.DurationMonths,
		TuitionFee:     req.TuitionFee,
		Description:    req.Description,
	}

	if err := h.programs.Create(program); err != nil {
		slog.Error("error creating program", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, program)
}

// PUT /api/v1/programs/{id}
func (h *ProgramHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid program id")
		return
	}

	var req ProgramRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	program, err := h.programs.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Program not found")
		return
	}
	if err != nil {
		slog.Error("error finding program", "error", err)
		internalError(w)
		return
	}

	program.UniversityID = req.UniversityID
	program.Name = req.Name
	program.Level = req.Level
	program.Field = req.Field
	program.Language = req.Language
	program.DurationMonths = req.DurationMonths
	program.TuitionFee = req.TuitionFee
	program.Description = req.Description

	if err := h.programs.Update(program); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Program not found")
			return
		}
		slog.Error("error updating program", "error", err, "program_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, program)
}

// DELETE /api/v1/programs/{id}
func (h *ProgramHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid program id")
		return
	}

	if err := h.programs.Delete(id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Program not found")
			return
		}
		slog.Error("error deleting program", "error", err, "program_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Program deleted"})
}
