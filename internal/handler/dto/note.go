package dto

import (
	"time"

	"github.com/securenotepad/notepad/internal/model"
)

// CreateNoteRequest is the body of POST /notes.
// Absent fields fall back to the defaults.
type CreateNoteRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// UpdateNoteRequest is the body of PUT /notes/{id}.
// Only non-nil fields are applied.
type UpdateNoteRequest struct {
	Title      *string `json:"title,omitempty"`
	Content    *string `json:"content,omitempty"`
	IsArchived *bool   `json:"isArchived,omitempty"`
}

// ToPatch converts the request into a model.NotePatch.
func (r UpdateNoteRequest) ToPatch() model.NotePatch {
	return model.NotePatch{
		Title:      r.Title,
		Content:    r.Content,
		IsArchived: r.IsArchived,
	}
}

// NoteResponse is the public view of a note.
type NoteResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	IsArchived bool      `json:"isArchived"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NoteEnvelope wraps a single note.
type NoteEnvelope struct {
	Note NoteResponse `json:"note"`
}

// NoteListResponse wraps a list of notes.
type NoteListResponse struct {
	Notes []NoteResponse `json:"notes"`
}

// SuccessResponse acknowledges an operation with no payload.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ToNoteResponse converts a model note to its response form.
func ToNoteResponse(note *model.Note) NoteResponse {
	return NoteResponse{
		ID:         note.ID,
		UserID:     note.OwnerID,
		Title:      note.Title,
		Content:    note.Content,
		IsArchived: note.IsArchived,
		CreatedAt:  note.CreatedAt,
		UpdatedAt:  note.UpdatedAt,
	}
}

// ToNoteListResponse converts model notes to a list response.
// An empty input yields an empty, non-null array.
func ToNoteListResponse(notes []*model.Note) NoteListResponse {
	items := make([]NoteResponse, 0, len(notes))
	for _, note := range notes {
		items = append(items, ToNoteResponse(note))
	}
	return NoteListResponse{Notes: items}
}
