package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/securenotepad/notepad/internal/model"
	"github.com/securenotepad/notepad/internal/repository"
)

// fakeUserStore is an in-memory UserStore.
type fakeUserStore struct {
	mu        sync.Mutex
	byEmail   map[string]*model.User
	lookupErr error
	// raceOnCreate makes CreateUser fail as if a concurrent insert won.
	raceOnCreate bool
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: make(map[string]*model.User)}
}

func (f *fakeUserStore) CreateUser(_ context.Context, email, passwordHash string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.raceOnCreate {
		return nil, repository.ErrEmailExists
	}
	if _, ok := f.byEmail[email]; ok {
		return nil, repository.ErrEmailExists
	}

	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	f.byEmail[email] = user
	return user, nil
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	user, ok := f.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// fakeNoteStore is an in-memory NoteStore with owner scoping.
type fakeNoteStore struct {
	mu    sync.Mutex
	notes map[string]*model.Note
	seq   int
	err   error
}

func newFakeNoteStore() *fakeNoteStore {
	return &fakeNoteStore{notes: make(map[string]*model.Note)}
}

func (f *fakeNoteStore) now() time.Time {
	f.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.seq) * time.Second)
}

func (f *fakeNoteStore) CreateNote(_ context.Context, n repository.NewNote) (*model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	now := f.now()
	note := &model.Note{
		ID:         ulid.Make().String(),
		OwnerID:    n.OwnerID,
		Title:      n.Title,
		Content:    n.Content,
		IsArchived: n.IsArchived,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.notes[note.ID] = note
	copied := *note
	return &copied, nil
}

func (f *fakeNoteStore) GetNoteByID(_ context.Context, ownerID, id string) (*model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	note, ok := f.notes[id]
	if !ok || note.OwnerID != ownerID {
		return nil, repository.ErrNoteNotFound
	}
	copied := *note
	return &copied, nil
}

func (f *fakeNoteStore) ListNotes(_ context.Context, filter repository.NoteFilter) ([]*model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	notes := make([]*model.Note, 0)
	for _, note := range f.notes {
		if note.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Archived != nil && note.IsArchived != *filter.Archived {
			continue
		}
		copied := *note
		notes = append(notes, &copied)
	}

	sort.Slice(notes, func(i, j int) bool {
		if notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].ID > notes[j].ID
		}
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})

	return notes, nil
}

func (f *fakeNoteStore) UpdateNote(_ context.Context, ownerID, id string, patch model.NotePatch) (*model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	note, ok := f.notes[id]
	if !ok || note.OwnerID != ownerID {
		return nil, repository.ErrNoteNotFound
	}
	applyPatch(note, patch)
	note.UpdatedAt = f.now()
	copied := *note
	return &copied, nil
}

func (f *fakeNoteStore) DeleteNote(_ context.Context, ownerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	note, ok := f.notes[id]
	if !ok || note.OwnerID != ownerID {
		return repository.ErrNoteNotFound
	}
	delete(f.notes, id)
	return nil
}

// fakeTokens issues predictable tokens.
type fakeTokens struct {
	err error
}

func (f *fakeTokens) Issue(userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-for-" + userID, nil
}

var errStoreDown = errors.New("connection refused")

// applyPatch copies the non-nil patch fields onto note, as the store's COALESCE does.
func applyPatch(note *model.Note, patch model.NotePatch) {
	if patch.Title != nil {
		note.Title = *patch.Title
	}
	if patch.Content != nil {
		note.Content = *patch.Content
	}
	if patch.IsArchived != nil {
		note.IsArchived = *patch.IsArchived
	}
}
