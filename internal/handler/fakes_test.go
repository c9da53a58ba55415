package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/securenotepad/notepad/internal/auth"
	"github.com/securenotepad/notepad/internal/handler/dto"
	"github.com/securenotepad/notepad/internal/middleware"
	"github.com/securenotepad/notepad/internal/model"
	"github.com/securenotepad/notepad/internal/repository"
	"github.com/securenotepad/notepad/internal/service"
)

var errDatabaseDown = errors.New("pq: connection to 10.0.0.5:5432 refused")

// memStore is an in-memory user and note store.
// Every call returns err when it is set.
type memStore struct {
	mu    sync.Mutex
	users map[string]*model.User
	notes map[string]*model.Note
	seq   int
	base  time.Time
	err   error
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]*model.User),
		notes: make(map[string]*model.Note),
		base:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// tick returns a strictly increasing timestamp. Caller holds mu.
func (s *memStore) tick() time.Time {
	s.seq++
	return s.base.Add(time.Duration(s.seq) * time.Second)
}

func (s *memStore) CreateUser(ctx context.Context, email, passwordHash string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if _, ok := s.users[email]; ok {
		return nil, repository.ErrEmailExists
	}

	created := s.tick()
	user := &model.User{
		ID:           fmt.Sprintf("user-%03d", s.seq),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    created,
	}
	s.users[email] = user
	copied := *user
	return &copied, nil
}

func (s *memStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *memStore) CreateNote(ctx context.Context, n repository.NewNote) (*model.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	now := s.tick()
	note := &model.Note{
		ID:         fmt.Sprintf("note-%03d", s.seq),
		OwnerID:    n.OwnerID,
		Title:      n.Title,
		Content:    n.Content,
		IsArchived: n.IsArchived,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.notes[note.ID] = note
	copied := *note
	return &copied, nil
}

func (s *memStore) GetNoteByID(ctx context.Context, ownerID, id string) (*model.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	note, ok := s.notes[id]
	if !ok || note.OwnerID != ownerID {
		return nil, repository.ErrNoteNotFound
	}
	copied := *note
	return &copied, nil
}

func (s *memStore) ListNotes(ctx context.Context, filter repository.NoteFilter) ([]*model.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	notes := make([]*model.Note, 0)
	for _, note := range s.notes {
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
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.After(notes[j].CreatedAt)
		}
		return notes[i].ID > notes[j].ID
	})

	return notes, nil
}

func (s *memStore) UpdateNote(ctx context.Context, ownerID, id string, patch model.NotePatch) (*model.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	note, ok := s.notes[id]
	if !ok || note.OwnerID != ownerID {
		return nil, repository.ErrNoteNotFound
	}

	applyPatch(note, patch)
	note.UpdatedAt = s.tick()
	copied := *note
	return &copied, nil
}

func (s *memStore) DeleteNote(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	note, ok := s.notes[id]
	if !ok || note.OwnerID != ownerID {
		return repository.ErrNoteNotFound
	}
	delete(s.notes, id)
	return nil
}

// testAPI wires the handlers behind a router the way the server does.
type testAPI struct {
	router http.Handler
	store  *memStore
	tokens *auth.TokenService
	logs   *bytes.Buffer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := newMemStore()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))

	tokens, err := auth.NewTokenService("handler-test-secret-at-least-32-bytes", 0)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	identity, err := service.NewIdentityService(store, auth.NewPasswordHasher(bcrypt.MinCost), tokens, nil)
	if err != nil {
		t.Fatalf("NewIdentityService: %v", err)
	}

	authHandler := NewAuthHandler(identity, logger)
	noteHandler := NewNoteHandler(service.NewNoteService(store, nil), logger)

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})
	r.Route("/notes", func(r chi.Router) {
		r.Use(middleware.Auth(middleware.AuthConfig{Logger: logger, Verifier: tokens}))
		r.Get("/", noteHandler.List)
		r.Post("/", noteHandler.Create)
		r.Get("/{id}", noteHandler.Get)
		r.Put("/{id}", noteHandler.Update)
		r.Delete("/{id}", noteHandler.Delete)
	})

	return &testAPI{router: r, store: store, tokens: tokens, logs: logs}
}

// do sends a request; body is JSON-encoded unless it is a string.
func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// register creates an account and returns its auth response.
func (a *testAPI) register(t *testing.T, email, password string) dto.AuthResponse {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/auth/register", "", dto.CredentialsRequest{Email: email, Password: password})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", email, rec.Code, rec.Body.String())
	}

	return decodeAuth(t, rec)
}

func decodeAuth(t *testing.T, rec *httptest.ResponseRecorder) dto.AuthResponse {
	t.Helper()

	var resp dto.AuthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	return resp
}

// createNote creates a note for token and returns it.
func (a *testAPI) createNote(t *testing.T, token string, req dto.CreateNoteRequest) dto.NoteResponse {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/notes", token, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create note: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeNote(t, rec)
}

func decodeNote(t *testing.T, rec *httptest.ResponseRecorder) dto.NoteResponse {
	t.Helper()

	var env dto.NoteEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode note response: %v", err)
	}
	return env.Note
}

func ptr[T any](v T) *T {
	return &v
}

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
