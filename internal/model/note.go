// Package model defines domain entities for the application.
package model

import "time"

// DefaultNoteTitle is used when a note is created without a title.
const DefaultNoteTitle = "Untitled Note"

// MaxNoteTitleLength is the maximum title length in runes.
const MaxNoteTitleLength = 200

// NoteState is the computed lifecycle state of a note.
type NoteState string

const (
	NoteStateActive   NoteState = "active"
	NoteStateArchived NoteState = "archived"
)

// Note represents a text note owned by a single user.
type Note struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"userId"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	IsArchived bool      `json:"isArchived"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// State returns the lifecycle state derived from the archived flag.
func (n *Note) State() NoteState {
	if n.IsArchived {
		return NoteStateArchived
	}
	return NoteStateActive
}

// OwnedBy reports whether the note belongs to userID.
func (n *Note) OwnedBy(userID string) bool {
	return userID != "" && n.OwnerID == userID
}

// NotePatch holds the optional fields of a partial note update.
// Nil fields are left unchanged.
type NotePatch struct {
	Title      *string
	Content    *string
	IsArchived *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p NotePatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.IsArchived == nil
}
