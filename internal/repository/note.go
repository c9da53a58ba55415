package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/securenotepad/notepad/internal/model"
)

// ErrNoteNotFound is returned when no note matches the id and owner.
var ErrNoteNotFound = errors.New("note not found")

// NoteFilter narrows a note listing.
type NoteFilter struct {
	OwnerID  string
	Archived *bool
}

// NewNote holds the fields supplied when creating a note.
type NewNote struct {
	OwnerID    string
	Title      string
	Content    string
	IsArchived bool
}

const noteColumns = `id, owner_id, title, content, is_archived, created_at, updated_at`

// CreateNote inserts a note and returns the stored record.
func (r *Repository) CreateNote(ctx context.Context, n NewNote) (*model.Note, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO notes (id, owner_id, title, content, is_archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING ` + noteColumns

	note, err := scanNote(r.pool.QueryRow(ctx, query,
		ulid.Make().String(),
		n.OwnerID,
		n.Title,
		n.Content,
		n.IsArchived,
		now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	return note, nil
}

// GetNoteByID retrieves a note by ID scoped to its owner.
// A note owned by someone else is reported as ErrNoteNotFound.
func (r *Repository) GetNoteByID(ctx context.Context, ownerID, id string) (*model.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = $1 AND owner_id = $2`

	note, err := scanNote(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note by ID: %w", err)
	}

	return note, nil
}

// ListNotes returns the owner's notes, newest first.
func (r *Repository) ListNotes(ctx context.Context, filter NoteFilter) ([]*model.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE owner_id = $1`
	args := []any{filter.OwnerID}

	if filter.Archived != nil {
		query += ` AND is_archived = $2`
		args = append(args, *filter.Archived)
	}

	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]*model.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}

	return notes, nil
}

// UpdateNote applies the patch to an owned note and refreshes updated_at.
// Nil patch fields keep their stored values.
func (r *Repository) UpdateNote(ctx context.Context, ownerID, id string, patch model.NotePatch) (*model.Note, error) {
	query := `
		UPDATE notes
		SET title = COALESCE($3, title),
		    content = COALESCE($4, content),
		    is_archived = COALESCE($5, is_archived),
		    updated_at = GREATEST(NOW(), updated_at)
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + noteColumns

	note, err := scanNote(r.pool.QueryRow(ctx, query,
		id,
		ownerID,
		patch.Title,
		patch.Content,
		patch.IsArchived,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	return note, nil
}

// DeleteNote permanently removes an owned note.
func (r *Repository) DeleteNote(ctx context.Context, ownerID, id string) error {
	query := `DELETE FROM notes WHERE id = $1 AND owner_id = $2`

	result, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNoteNotFound
	}

	return nil
}

func scanNote(row pgx.Row) (*model.Note, error) {
	var note model.Note
	err := row.Scan(
		&note.ID,
		&note.OwnerID,
		&note.Title,
		&note.Content,
		&note.IsArchived,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	return &note, err
}
