package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/securenotepad/notepad/internal/auth"
	"github.com/securenotepad/notepad/internal/metrics"
	"github.com/securenotepad/notepad/internal/model"
	"github.com/securenotepad/notepad/internal/repository"
)

const (
	minPasswordLength = 6
	maxEmailLength    = 254
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// TokenIssuer issues bearer tokens for a user.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// AuthResult is returned by a successful register or login.
type AuthResult struct {
	User  model.PublicUser
	Token string
}

// IdentityService handles registration and login.
type IdentityService struct {
	users     UserStore
	hasher    PasswordHasher
	tokens    TokenIssuer
	metrics   metrics.Recorder
	dummyHash string
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(users UserStore, hasher PasswordHasher, tokens TokenIssuer, recorder metrics.Recorder) (*IdentityService, error) {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	// Verified against on login when the email is unknown.
	dummyHash, err := hasher.Hash("notepad-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &IdentityService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		metrics:   recorder,
		dummyHash: dummyHash,
	}, nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *credentials) validateRegister() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Email,
			validation.Required,
			validation.RuneLength(0, maxEmailLength),
			validation.Match(emailPattern).Error("must be a valid email address"),
			validation.By(noNUL),
		),
		validation.Field(&c.Password,
			validation.Required,
			validation.RuneLength(minPasswordLength, 0).Error(fmt.Sprintf("must be at least %d characters", minPasswordLength)),
			validation.By(maxBytes(auth.MaxPasswordBytes)),
		),
	)
}

func (c *credentials) validateLogin() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Email, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
}

func maxBytes(limit int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > limit {
			return fmt.Errorf("must be at most %d bytes", limit)
		}
		return nil
	}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user and returns a token for it.
func (s *IdentityService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	creds := &credentials{Email: NormalizeEmail(email), Password: password}
	if err := newValidationError(creds.validateRegister()); err != nil {
		return nil, err
	}

	_, err := s.users.GetUserByEmail(ctx, creds.Email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := s.hasher.Hash(creds.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, creds.Email, hash)
	if err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.metrics.IncUserRegistered()

	return &AuthResult{User: user.Public(), Token: token}, nil
}

// Login verifies credentials and returns a fresh token.
// Unknown email and wrong password both return ErrInvalidCredentials.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	creds := &credentials{Email: NormalizeEmail(email), Password: password}
	if err := newValidationError(creds.validateLogin()); err != nil {
		return nil, err
	}

	// No stored address holds a NUL byte, and PostgreSQL rejects one as a parameter.
	if containsNUL(creds.Email) {
		s.hasher.Verify(creds.Password, s.dummyHash)
		s.metrics.IncLoginFailed()
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.Verify(creds.Password, s.dummyHash)
			s.metrics.IncLoginFailed()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !s.hasher.Verify(creds.Password, user.PasswordHash) {
		s.metrics.IncLoginFailed()
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.metrics.IncLoginSucceeded()

	return &AuthResult{User: user.Public(), Token: token}, nil
}
