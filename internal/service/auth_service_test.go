package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"authgate/internal/models"
	"authgate/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// mockUsers is a lightweight in-test mock for repository.Users.
type mockUsers struct {
	CreateFn        func(username, hash string) (*models.User, error)
	GetByUsernameFn func(username string) (*models.User, error)

	createCalls []struct {
		username string
		hash     string
	}
	getCalls []string
}

func (m *mockUsers) Create(_ context.Context, username, hash string) (*models.User, error) {
	m.createCalls = append(m.createCalls, struct {
		username string
		hash     string
	}{username: username, hash: hash})
	return m.CreateFn(username, hash)
}

func (m *mockUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	m.getCalls = append(m.getCalls, username)
	return m.GetByUsernameFn(username)
}

// memUsers is a tiny map-backed store honoring the unique-username contract.
type memUsers struct {
	byName map[string]*models.User
	nextID int
}

func newMemUsers() *memUsers { return &memUsers{byName: map[string]*models.User{}} }

func (m *memUsers) Create(_ context.Context, username, hash string) (*models.User, error) {
	if _, ok := m.byName[username]; ok {
		return nil, repository.ErrDuplicateUsername
	}
	m.nextID++
	u := &models.User{ID: m.nextID, Username: username, PasswordHash: hash}
	m.byName[username] = u
	return u, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return m.byName[username], nil
}

func testHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	return h
}

func notFound(string) (*models.User, error) { return nil, nil }

// --- Register tests ---

func TestAuthService_Register_SuccessHashesPasswordAndCallsRepo(t *testing.T) {
	mock := &mockUsers{
		GetByUsernameFn: notFound,
		CreateFn: func(username, hash string) (*models.User, error) {
			return &models.User{ID: 42, Username: username, PasswordHash: hash}, nil
		},
	}
	svc := NewAuthService(mock, testHasher(t), nil)

	u, err := svc.Register(context.Background(), "alice", "s3cr3t")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if u.ID != 42 || u.Username != "alice" {
		t.Fatalf("unexpected user: %+v", u)
	}

	if len(mock.createCalls) != 1 {
		t.Fatalf("expected 1 Create call, got %d", len(mock.createCalls))
	}
	call := mock.createCalls[0]
	if call.hash == "s3cr3t" {
		t.Errorf("expected hashed password not equal to raw password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(call.hash), []byte("s3cr3t")); err != nil {
		t.Errorf("stored hash does not verify with original password: %v", err)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "empty username", username: "", password: "12345", wantErr: ErrUsernameRequired},
		{name: "blank username", username: "   ", password: "12345", wantErr: ErrUsernameRequired},
		{name: "empty password", username: "sue", password: "", wantErr: ErrPasswordTooShort},
		{name: "three chars", username: "sue", password: "123", wantErr: ErrPasswordTooShort},
		{name: "three runes", username: "sue", password: "äöü", wantErr: ErrPasswordTooShort},
		{name: "73 bytes", username: "sue", password: strings.Repeat("a", 73), wantErr: ErrPasswordTooLong},
		{name: "multibyte over 72 bytes", username: "sue", password: strings.Repeat("ä", 37), wantErr: ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockUsers{
				GetByUsernameFn: func(string) (*models.User, error) {
					t.Fatal("store must not be consulted for invalid input")
					return nil, nil
				},
				CreateFn: func(string, string) (*models.User, error) {
					t.Fatal("Create must not be called for invalid input")
					return nil, nil
				},
			}
			svc := NewAuthService(mock, testHasher(t), nil)

			_, err := svc.Register(context.Background(), tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if KindOf(err) != KindValidation {
				t.Fatalf("expected validation kind, got %v", KindOf(err))
			}
		})
	}
}

func TestAuthService_Register_UsernameTakenPrecheck(t *testing.T) {
	mock := &mockUsers{
		GetByUsernameFn: func(username string) (*models.User, error) {
			return &models.User{ID: 1, Username: username}, nil
		},
		CreateFn: func(string, string) (*models.User, error) {
			t.Fatal("Create must not be called for a taken username")
			return nil, nil
		},
	}
	svc := NewAuthService(mock, testHasher(t), nil)

	_, err := svc.Register(context.Background(), "sue", "1234")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict kind, got %v", KindOf(err))
	}
}

func TestAuthService_Register_DuplicateOnInsertMapsToConflict(t *testing.T) {
	mock := &mockUsers{
		GetByUsernameFn: notFound,
		CreateFn: func(string, string) (*models.User, error) {
			return nil, repository.ErrDuplicateUsername
		},
	}
	svc := NewAuthService(mock, testHasher(t), nil)

	_, err := svc.Register(context.Background(), "sue", "1234")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestAuthService_Register_RepoErrors(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		mock := &mockUsers{
			GetByUsernameFn: func(string) (*models.User, error) { return nil, errors.New("db down") },
		}
		svc := NewAuthService(mock, testHasher(t), nil)
		_, err := svc.Register(context.Background(), "carl", "pass123")
		if err == nil || KindOf(err) != KindUnexpected {
			t.Fatalf("expected unexpected error, got %v", err)
		}
	})
	t.Run("insert", func(t *testing.T) {
		mock := &mockUsers{
			GetByUsernameFn: notFound,
			CreateFn:        func(string, string) (*models.User, error) { return nil, errors.New("disk full") },
		}
		svc := NewAuthService(mock, testHasher(t), nil)
		_, err := svc.Register(context.Background(), "carl", "pass123")
		if err == nil || !strings.Contains(err.Error(), "create user") {
			t.Fatalf("expected wrapped create error, got %v", err)
		}
	})
}

func TestAuthService_Register_SamePasswordDifferentHashes(t *testing.T) {
	store := newMemUsers()
	svc := NewAuthService(store, testHasher(t), nil)

	if _, err := svc.Register(context.Background(), "a", "same-pass"); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if _, err := svc.Register(context.Background(), "b", "same-pass"); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if store.byName["a"].PasswordHash == store.byName["b"].PasswordHash {
		t.Fatal("expected salted hashes to differ")
	}
}

// --- Login tests ---

func TestAuthService_RegisterThenLogin(t *testing.T) {
	svc := NewAuthService(newMemUsers(), testHasher(t), nil)
	ctx := context.Background()

	created, err := svc.Register(ctx, "sue", "1234")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	u, err := svc.Login(ctx, "127.0.0.1", "sue", "1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.ID != created.ID || u.Username != "sue" {
		t.Fatalf("unexpected user: %+v", u)
	}

	for _, pw := range []string{"wrong", "12345", "123", ""} {
		if _, err := svc.Login(ctx, "127.0.0.1", "sue", pw); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("password %q: expected ErrInvalidCredentials, got %v", pw, err)
		}
	}

	if _, err := svc.Register(ctx, "sue", "other-password"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken on re-register, got %v", err)
	}
}

func TestAuthService_Login_UnknownUserIsInvalidCredentials(t *testing.T) {
	mock := &mockUsers{GetByUsernameFn: notFound}
	svc := NewAuthService(mock, testHasher(t), nil)

	_, err := svc.Login(context.Background(), "k", "ghost", "pw")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("expected unauthorized kind, got %v", KindOf(err))
	}
}

func TestAuthService_Login_RepoError(t *testing.T) {
	mock := &mockUsers{
		GetByUsernameFn: func(string) (*models.User, error) { return nil, errors.New("query failed") },
	}
	svc := NewAuthService(mock, testHasher(t), nil)

	_, err := svc.Login(context.Background(), "k", "john", "pw")
	if err == nil || KindOf(err) != KindUnexpected {
		t.Fatalf("expected unexpected error, got %v", err)
	}
}

func TestAuthService_Login_MalformedStoredHash(t *testing.T) {
	mock := &mockUsers{
		GetByUsernameFn: func(username string) (*models.User, error) {
			return &models.User{ID: 1, Username: username, PasswordHash: "not-bcrypt"}, nil
		},
	}
	svc := NewAuthService(mock, testHasher(t), nil)

	_, err := svc.Login(context.Background(), "k", "eve", "pw")
	if err == nil || KindOf(err) != KindUnexpected {
		t.Fatalf("expected unexpected error for malformed hash, got %v", err)
	}
}

func TestAuthService_Login_LocksAfterMaxAttempts(t *testing.T) {
	limiter := NewMemoryAttemptLimiter(LimiterPolicy{MaxAttempts: 2, Window: time.Minute, LockDuration: time.Minute})
	svc := NewAuthService(newMemUsers(), testHasher(t), limiter)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "sue", "1234"); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Login(ctx, "10.0.0.1", "sue", "nope"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	_, err := svc.Login(ctx, "10.0.0.1", "sue", "1234")
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError, got %v", err)
	}
	if locked.RetryAfter <= 0 || KindOf(err) != KindThrottled {
		t.Fatalf("unexpected lock: %+v kind=%v", locked, KindOf(err))
	}

	// other clients are unaffected
	if _, err := svc.Login(ctx, "10.0.0.2", "sue", "1234"); err != nil {
		t.Fatalf("other client: %v", err)
	}
}

func TestAuthService_Login_SuccessResetsAttempts(t *testing.T) {
	limiter := NewMemoryAttemptLimiter(LimiterPolicy{MaxAttempts: 2, Window: time.Minute, LockDuration: time.Minute})
	svc := NewAuthService(newMemUsers(), testHasher(t), limiter)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "sue", "1234"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Login(ctx, "ip", "sue", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "ip", "sue", "1234"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.Login(ctx, "ip", "sue", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected counter reset after success, got %v", err)
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrUsernameRequired, KindValidation},
		{ErrPasswordTooShort, KindValidation},
		{ErrPasswordTooLong, KindValidation},
		{ErrUsernameTaken, KindConflict},
		{ErrInvalidCredentials, KindUnauthorized},
		{&LockedError{RetryAfter: time.Second}, KindThrottled},
		{errors.New("boom"), KindUnexpected},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Errorf("KindOf(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestAuthService_PasswordAtBcryptLimit(t *testing.T) {
	svc := NewAuthService(newMemUsers(), testHasher(t), nil)
	ctx := context.Background()
	pw := strings.Repeat("p", maxPasswordBytes)

	if _, err := svc.Register(ctx, "sue", pw); err != nil {
		t.Fatalf("register with %d-byte password: %v", len(pw), err)
	}
	if _, err := svc.Login(ctx, "ip", "sue", pw); err != nil {
		t.Fatalf("login with %d-byte password: %v", len(pw), err)
	}
}

func TestAuthService_Login_OverlongPasswordIsInvalidCredentials(t *testing.T) {
	mock := &mockUsers{
		GetByUsernameFn: func(string) (*models.User, error) {
			t.Fatal("store must not be consulted for an overlong password")
			return nil, nil
		},
	}
	limiter := NewMemoryAttemptLimiter(LimiterPolicy{MaxAttempts: 1, Window: time.Minute, LockDuration: time.Minute})
	svc := NewAuthService(mock, testHasher(t), limiter)

	_, err := svc.Login(context.Background(), "ip", "sue", strings.Repeat("x", 80))
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if locked, _ := limiter.Locked(context.Background(), "ip"); locked <= 0 {
		t.Fatal("overlong password must count as a failed attempt")
	}
}
