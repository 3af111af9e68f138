package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"login-api/internal/domain"
	"login-api/internal/repository"
)

type mockUserRepo struct {
	mu          sync.Mutex
	usersByID   map[string]domain.User
	usersByName map[string]string

	createErr error
	getErr    error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:   make(map[string]domain.User),
		usersByName: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.usersByName[user.Username]; exists {
		return repository.ErrUsernameTaken
	}
	m.usersByID[user.ID] = user
	m.usersByName[user.Username] = user.ID
	return nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.User{}, m.getErr
	}
	id, ok := m.usersByName[username]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.usersByID[id], nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

type countingSessionStore struct {
	SessionStore
	mu      sync.Mutex
	creates int
}

func (c *countingSessionStore) Create(ctx context.Context, userID, username string, ttl time.Duration) (domain.Session, error) {
	c.mu.Lock()
	c.creates++
	c.mu.Unlock()
	return c.SessionStore.Create(ctx, userID, username, ttl)
}

func newTestAuthService(repo repository.UserRepository, store SessionStore, sliding bool) *AuthService {
	hasher := NewPasswordHasher(bcrypt.MinCost)
	return NewAuthService(zap.NewNop(), repo, store, hasher, time.Minute, sliding)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	repo := newMockUserRepo()
	store := NewMemorySessionStore()
	svc := newTestAuthService(repo, store, false)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "S3cret!")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.ID == "" || user.Username != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordHash == "S3cret!" || user.PasswordHash == "" {
		t.Fatal("expected hashed password, never plaintext")
	}

	sess, err := svc.Login(ctx, "alice", "S3cret!")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if sess.UserID != user.ID || sess.Username != "alice" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	other, err := svc.Login(ctx, "alice", "S3cret!")
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}
	if other.Token == sess.Token {
		t.Fatal("expected distinct tokens per login")
	}
}

func TestAuthService_RegisterInvalidInput(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), NewMemorySessionStore(), false)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "", "S3cret!"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Register(ctx, "alice", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Register(ctx, "   ", "S3cret!"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), NewMemorySessionStore(), false)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "S3cret!"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "otherpass"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestAuthService_RegisterConcurrentSameUsername(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), NewMemorySessionStore(), false)
	ctx := context.Background()

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Register(ctx, "alice", "S3cret!")
			errs <- err
		}()
	}

	var ok, taken int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			ok++
		case errors.Is(err, ErrUsernameTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || taken != 1 {
		t.Fatalf("expected exactly one winner, got ok=%d taken=%d", ok, taken)
	}
}

func TestAuthService_LoginCollapsesFailures(t *testing.T) {
	repo := newMockUserRepo()
	store := &countingSessionStore{SessionStore: NewMemorySessionStore()}
	svc := newTestAuthService(repo, store, false)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "S3cret!"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, wrongPass := svc.Login(ctx, "alice", "wrongpass")
	_, unknownUser := svc.Login(ctx, "bob", "wrong")

	if !errors.Is(wrongPass, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", wrongPass)
	}
	if !errors.Is(unknownUser, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", unknownUser)
	}
	if wrongPass.Error() != unknownUser.Error() {
		t.Fatal("expected identical errors for both failure modes")
	}
	if store.creates != 0 {
		t.Fatalf("expected no session on failed login, got %d", store.creates)
	}
}

func TestAuthService_LoginSurfacesStoreFailure(t *testing.T) {
	repo := newMockUserRepo()
	repo.getErr = errors.New("connection timeout")
	svc := newTestAuthService(repo, NewMemorySessionStore(), false)

	_, err := svc.Login(context.Background(), "alice", "S3cret!")
	if errors.Is(err, ErrInvalidCredentials) || err == nil {
		t.Fatalf("expected backend error to surface, got %v", err)
	}
}

func TestAuthService_ValidateAndLogout(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, NewMemorySessionStore(), false)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "S3cret!"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	sess, err := svc.Login(ctx, "alice", "S3cret!")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	got, err := svc.Validate(ctx, sess.Token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if got.Username != "alice" {
		t.Fatalf("unexpected identity: %+v", got)
	}

	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("second logout failed: %v", err)
	}
	if _, err := svc.Validate(ctx, sess.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}

	if _, err := svc.Validate(ctx, ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for empty token, got %v", err)
	}
}

func TestAuthService_ValidateSlidingRearmsTTL(t *testing.T) {
	repo := newMockUserRepo()
	store := NewMemorySessionStore()
	hasher := NewPasswordHasher(bcrypt.MinCost)
	svc := NewAuthService(zap.NewNop(), repo, store, hasher, 80*time.Millisecond, true)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "S3cret!"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	sess, err := svc.Login(ctx, "alice", "S3cret!")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if _, err := svc.Validate(ctx, sess.Token); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := svc.Validate(ctx, sess.Token); err != nil {
		t.Fatalf("expected sliding session alive, got %v", err)
	}
}
