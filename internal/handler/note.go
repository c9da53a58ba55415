package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/securenotepad/notepad/internal/auth"
	"github.com/securenotepad/notepad/internal/handler/dto"
	"github.com/securenotepad/notepad/internal/middleware"
	"github.com/securenotepad/notepad/internal/model"
	"github.com/securenotepad/notepad/internal/service"
)

// NoteManager is the note operations the handler depends on.
type NoteManager interface {
	List(ctx context.Context, userID string, input service.ListNotesInput) ([]*model.Note, error)
	Create(ctx context.Context, userID string, input service.CreateNoteInput) (*model.Note, error)
	Get(ctx context.Context, userID, noteID string) (*model.Note, error)
	Update(ctx context.Context, userID, noteID string, patch model.NotePatch) (*model.Note, error)
	Delete(ctx context.Context, userID, noteID string) error
}

// NoteHandler handles the /notes endpoints.
// Every route must sit behind middleware.Auth.
type NoteHandler struct {
	svc    NoteManager
	logger *slog.Logger
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(svc NoteManager, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{
		svc:    svc,
		logger: logger,
	}
}

// List handles GET /notes.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserIDFromContext(r.Context())

	var input service.ListNotesInput
	if raw := r.URL.Query().Get("archived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "archived must be true or false")
			return
		}
		input.Archived = &archived
	}

	notes, err := h.svc.List(r.Context(), userID, input)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToNoteListResponse(notes))
}

// Create handles POST /notes.
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserIDFromContext(r.Context())

	var req dto.CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	note, err := h.svc.Create(r.Context(), userID, service.CreateNoteInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("note_created",
		slog.String("note_id", note.ID),
		slog.String("user_id", userID),
	)

	writeJSON(w, http.StatusCreated, dto.NoteEnvelope{Note: dto.ToNoteResponse(note)})
}

// Get handles GET /notes/{id}.
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserIDFromContext(r.Context())

	note, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NoteEnvelope{Note: dto.ToNoteResponse(note)})
}

// Update handles PUT /notes/{id}.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserIDFromContext(r.Context())
	noteID := chi.URLParam(r, "id")

	var req dto.UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := req.ToPatch()
	note, err := h.svc.Update(r.Context(), userID, noteID, patch)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("note_updated",
		slog.String("note_id", note.ID),
		slog.String("user_id", userID),
		slog.String("state", string(note.State())),
		slog.Bool("touch_only", patch.IsEmpty()),
	)

	writeJSON(w, http.StatusOK, dto.NoteEnvelope{Note: dto.ToNoteResponse(note)})
}

// Delete handles DELETE /notes/{id}.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserIDFromContext(r.Context())
	noteID := chi.URLParam(r, "id")

	if err := h.svc.Delete(r.Context(), userID, noteID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("note_deleted",
		slog.String("note_id", noteID),
		slog.String("user_id", userID),
	)

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

func (h *NoteHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:  ve.Message,
			Code:   "VALIDATION_ERROR",
			Fields: ve.Fields,
		})
	case errors.Is(err, service.ErrNoteNotFound):
		writeError(w, http.StatusNotFound, "NOTE_NOT_FOUND", "Note not found")
	default:
		h.logger.Error("internal_error",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
