package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/securenotepad/notepad/internal/metrics"
	"github.com/securenotepad/notepad/internal/model"
	"github.com/securenotepad/notepad/internal/repository"
)

// NoteStore persists notes scoped to their owner.
type NoteStore interface {
	CreateNote(ctx context.Context, n repository.NewNote) (*model.Note, error)
	GetNoteByID(ctx context.Context, ownerID, id string) (*model.Note, error)
	ListNotes(ctx context.Context, filter repository.NoteFilter) ([]*model.Note, error)
	UpdateNote(ctx context.Context, ownerID, id string, patch model.NotePatch) (*model.Note, error)
	DeleteNote(ctx context.Context, ownerID, id string) error
}

// NoteService handles note business logic.
// Every operation is scoped to the calling user; notes owned by others are not found.
type NoteService struct {
	repo    NoteStore
	metrics metrics.Recorder
}

// NewNoteService creates a new NoteService.
func NewNoteService(repo NoteStore, recorder metrics.Recorder) *NoteService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &NoteService{
		repo:    repo,
		metrics: recorder,
	}
}

// ListNotesInput defines filters for listing notes.
type ListNotesInput struct {
	Archived *bool
}

// CreateNoteInput defines input for creating a note.
type CreateNoteInput struct {
	Title   *string
	Content *string
}

// List returns the user's notes, newest first.
func (s *NoteService) List(ctx context.Context, userID string, input ListNotesInput) ([]*model.Note, error) {
	notes, err := s.repo.ListNotes(ctx, repository.NoteFilter{
		OwnerID:  userID,
		Archived: input.Archived,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// Create stores a new note owned by userID.
func (s *NoteService) Create(ctx context.Context, userID string, input CreateNoteInput) (*model.Note, error) {
	title := model.DefaultNoteTitle
	if input.Title != nil {
		if trimmed := strings.TrimSpace(*input.Title); trimmed != "" {
			title = trimmed
		}
	}
	if err := validateTitleLength(title); err != nil {
		return nil, err
	}

	var content string
	if input.Content != nil {
		content = *input.Content
	}
	if err := rejectNULs(&title, &content); err != nil {
		return nil, err
	}

	note, err := s.repo.CreateNote(ctx, repository.NewNote{
		OwnerID: userID,
		Title:   title,
		Content: content,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	s.metrics.IncNoteCreated()

	return note, nil
}

// Get returns a single note owned by userID.
func (s *NoteService) Get(ctx context.Context, userID, noteID string) (*model.Note, error) {
	note, err := s.repo.GetNoteByID(ctx, userID, noteID)
	if err != nil {
		return nil, mapNoteError(err, "get")
	}

	// The store scopes by owner; this guards against a store that does not.
	if !note.OwnedBy(userID) {
		return nil, ErrNoteNotFound
	}

	return note, nil
}

// Update applies a partial patch to a note owned by userID.
// An empty patch only refreshes updatedAt.
func (s *NoteService) Update(ctx context.Context, userID, noteID string, patch model.NotePatch) (*model.Note, error) {
	if err := rejectNULs(patch.Title, patch.Content); err != nil {
		return nil, err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, &ValidationError{
				Message: "title: cannot be blank",
				Fields:  map[string]string{"title": "cannot be blank"},
			}
		}
		if err := validateTitleLength(title); err != nil {
			return nil, err
		}
		patch.Title = &title
	}

	note, err := s.repo.UpdateNote(ctx, userID, noteID, patch)
	if err != nil {
		return nil, mapNoteError(err, "update")
	}

	s.metrics.IncNoteUpdated()

	return note, nil
}

// Delete permanently removes a note owned by userID.
func (s *NoteService) Delete(ctx context.Context, userID, noteID string) error {
	if err := s.repo.DeleteNote(ctx, userID, noteID); err != nil {
		return mapNoteError(err, "delete")
	}

	s.metrics.IncNoteDeleted()

	return nil
}

func validateTitleLength(title string) error {
	if utf8.RuneCountInString(title) > model.MaxNoteTitleLength {
		msg := fmt.Sprintf("must be at most %d characters", model.MaxNoteTitleLength)
		return &ValidationError{
			Message: "title: " + msg,
			Fields:  map[string]string{"title": msg},
		}
	}
	return nil
}

// rejectNULs fails when title or content holds a NUL byte, which PostgreSQL
// text columns cannot store. Nil values are skipped.
func rejectNULs(title, content *string) error {
	fields := make(map[string]string, 2)
	var msgs []string
	for _, f := range []struct {
		name  string
		value *string
	}{{"content", content}, {"title", title}} {
		if f.value != nil && containsNUL(*f.value) {
			fields[f.name] = errNULMessage
			msgs = append(msgs, f.name+": "+errNULMessage)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Message: strings.Join(msgs, "; "), Fields: fields}
}

func mapNoteError(err error, op string) error {
	if errors.Is(err, repository.ErrNoteNotFound) {
		return ErrNoteNotFound
	}
	return fmt.Errorf("failed to %s note: %w", op, err)
}
