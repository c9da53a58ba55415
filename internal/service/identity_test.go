package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/securenotepad/notepad/internal/auth"
	"github.com/securenotepad/notepad/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type identityEnv struct {
	svc     *IdentityService
	users   *fakeUserStore
	metrics *metrics.InMemoryRecorder
}

func newIdentityEnv(t *testing.T) *identityEnv {
	t.Helper()

	users := newFakeUserStore()
	recorder := metrics.NewInMemory()
	svc, err := NewIdentityService(users, auth.NewPasswordHasher(bcrypt.MinCost), &fakeTokens{}, recorder)
	require.NoError(t, err)

	return &identityEnv{svc: svc, users: users, metrics: recorder}
}

func TestIdentityService_RegisterThenLogin(t *testing.T) {
	t.Parallel()
	env := newIdentityEnv(t)
	ctx := context.Background()

	reg, err := env.svc.Register(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, reg.User.ID)
	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.Equal(t, "token-for-"+reg.User.ID, reg.Token)

	login, err := env.svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	s := env.metrics.Snapshot()
	assert.EqualValues(t, 1, s.UsersRegistered)
	assert.EqualValues(t, 1, s.LoginsSucceeded)
}

func TestIdentityService_StoresHashNotPassword(t *testing.T) {
	t.Parallel()
	env := newIdentityEnv(t)

	_, err := env.svc.Register(context.Background(), "hash@example.com", "secret1")
	require.NoError(t, err)

	stored := env.users.byEmail["hash@example.com"]
	require.NotNil(t, stored)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$2a$"))
}

func TestIdentityService_NormalizesEmail(t *testing.T) {
	t.Parallel()
	env := newIdentityEnv(t)
	ctx := context.Background()

	reg, err := env.svc.Register(ctx, "  Bob@Example.COM ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", reg.User.Email)

	_, err = env.svc.Login(ctx, "BOB@example.com", "secret1")
	require.NoError(t, err)

	_, err = env.svc.Register(ctx, "bob@example.com", "secret2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestIdentityService_DuplicateRegister(t *testing.T) {
	t.Parallel()
	env := newIdentityEnv(t)
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "dup@example.com", "original")
	require.NoError(t, err)

	_, err = env.svc.Register(ctx, "dup@example.com", "replacement")
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = env.svc.Login(ctx, "dup@example.com", "original")
	assert.NoError(t, err, "original password must still work")

	_, err = env.svc.Login(ctx, "dup@example.com", "replacement")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "second password must not work")
}

func TestIdentityService_RegisterRaceMapsToEmailTaken(t *testing.T) {
	t.Parallel()
	env := newIdentityEnv(t)
	env.users.raceOnCreate = true

	_, err := env.svc.Register(context.Background(), "race@example.com", "secret1")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestIdentityService_RegisterValidation(t *testing.T) {
	t.Parallel()
	env := newIdentityEnv(t)

	tests := []struct {
		name      string
		email     string
		password  string
		wantField string
	}{
		{"missing email", "", "secret1", "email"},
		{"blank email", "   ", "secret1", "email"},
		{"missing password", "a@b.com", "", "password"},
		{"no at sign", "not-an-email", "secret1", "email"},
		{"no domain dot", "a@b", "secret1", "email"},
		{"whitespace inside", "a b@c.com", "secret1", "email"},
		{"email too long", strings.Repeat("a", 250) + "@b.com", "secret1", "email"},
		{"short password", "a@b.com", "12345", "password"},
		{"password over 72 bytes", "a@b.com", strings.Repeat("p", 73), "password"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := env.svc.Register(context.Background(), tt.email, tt.password)
			require.Error(t, err)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.wantField)
		})
	}
}

func TestIdentityService_PasswordBoundaries(t *testing.T) {
	t.Parallel()
	env := newIdentityEnv(t)
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "six@example.com", "123456")
	assert.NoError(t, err, "6 characters is the minimum")

	_, err = env.svc.Register(ctx, "max@example.com", strings.Repeat("p", 72))
	assert.NoError(t, err, "72 bytes is the maximum")
}

func TestIdentityService_LoginFailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()
	env := newIdentityEnv(t)
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "carol@example.com", "secret1")
	require.NoError(t, err)

	_, wrongPassword := env.svc.Login(ctx, "carol@example.com", "wrong-password")
	_, unknownEmail := env.svc.Login(ctx, "nobody@example.com", "secret1")

	require.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	require.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.EqualValues(t, 2, env.metrics.Snapshot().LoginsFailed)
}

func TestIdentityService_LoginUnknownEmailStillHashes(t *testing.T) {
	t.Parallel()

	users := newFakeUserStore()
	hasher := &countingHasher{PasswordHasher: auth.NewPasswordHasher(bcrypt.MinCost)}
	svc, err := NewIdentityService(users, hasher, &fakeTokens{}, nil)
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "ghost@example.com", "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, hasher.verifies)
}

func TestIdentityService_LoginRequiresFields(t *testing.T) {
	t.Parallel()
	env := newIdentityEnv(t)

	_, err := env.svc.Login(context.Background(), "", "")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "email")
	assert.Contains(t, ve.Fields, "password")
}

func TestIdentityService_LoginSkipsShapeValidation(t *testing.T) {
	t.Parallel()
	env := newIdentityEnv(t)

	// Short passwords and odd emails are not validation errors at login.
	_, err := env.svc.Login(context.Background(), "odd", "123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestIdentityService_StoreErrorIsInternal(t *testing.T) {
	t.Parallel()
	env := newIdentityEnv(t)
	env.users.lookupErr = errStoreDown

	_, err := env.svc.Login(context.Background(), "a@b.com", "secret1")
	require.ErrorIs(t, err, errStoreDown)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.svc.Register(context.Background(), "a@b.com", "secret1")
	assert.ErrorIs(t, err, errStoreDown)
}

func TestIdentityService_WithRealTokens(t *testing.T) {
	t.Parallel()

	tokens, err := auth.NewTokenService("test-secret-that-is-at-least-32-bytes-long", auth.DefaultTokenTTL)
	require.NoError(t, err)
	svc, err := NewIdentityService(newFakeUserStore(), auth.NewPasswordHasher(bcrypt.MinCost), tokens, nil)
	require.NoError(t, err)

	reg, err := svc.Register(context.Background(), "dave@example.com", "secret1")
	require.NoError(t, err)

	userID, err := tokens.Verify(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, userID)
	assert.Equal(t, 7*24*time.Hour, tokens.TTL())
}

type countingHasher struct {
	*auth.PasswordHasher
	verifies int
}

func (h *countingHasher) Verify(password, hash string) bool {
	h.verifies++
	return h.PasswordHasher.Verify(password, hash)
}

func TestIdentityService_NULInEmail(t *testing.T) {
	t.Parallel()
	env := newIdentityEnv(t)

	_, err := env.svc.Register(context.Background(), "a\x00b@example.com", "secret1")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "email")

	// The lookup must not be attempted; a store call would return errStoreDown.
	env.users.lookupErr = errStoreDown
	_, err = env.svc.Login(context.Background(), "a\x00b@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.EqualValues(t, 1, env.metrics.Snapshot().LoginsFailed)
}
