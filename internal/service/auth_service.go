package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"login-api/internal/domain"
	"login-api/internal/repository"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username taken")
)

// AuthService coordina registro, login y ciclo de vida de sesiones.
type AuthService struct {
	logger     *zap.Logger
	users      repository.UserRepository
	sessions   SessionStore
	hasher     *PasswordHasher
	sessionTTL time.Duration
	sliding    bool
	dummyHash  string
}

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	sessions SessionStore,
	hasher *PasswordHasher,
	sessionTTL time.Duration,
	sliding bool,
) *AuthService {
	// Hash de sacrificio: el camino usuario-inexistente cuesta un bcrypt
	// igual que el camino clave-incorrecta.
	dummyHash, err := hasher.Hash("placeholder")
	if err != nil && logger != nil {
		logger.Warn("dummy hash init failed", zap.Error(err))
	}
	return &AuthService{
		logger:     logger,
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		sessionTTL: sessionTTL,
		sliding:    sliding,
		dummyHash:  dummyHash,
	}
}

// Register crea un usuario nuevo con la clave hasheada; nunca persiste el plaintext.
func (s *AuthService) Register(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, ErrInvalidInput
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return domain.User{}, ErrUsernameTaken
		}
		return domain.User{}, err
	}
	return user, nil
}

// Login verifica credenciales y emite una sesión nueva por cada éxito.
// Usuario inexistente y clave incorrecta devuelven el mismo error.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.Session{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.hasher.Verify(password, s.dummyHash)
			return domain.Session{}, ErrInvalidCredentials
		}
		return domain.Session{}, err
	}
	if user.PasswordHash == "" || !s.hasher.Verify(password, user.PasswordHash) {
		return domain.Session{}, ErrInvalidCredentials
	}

	return s.sessions.Create(ctx, user.ID, user.Username, s.sessionTTL)
}

// Validate resuelve un token contra el store; con expiración deslizante
// habilitada además rearma el TTL.
func (s *AuthService) Validate(ctx context.Context, token string) (domain.Session, error) {
	if token == "" {
		return domain.Session{}, ErrSessionNotFound
	}
	sess, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return domain.Session{}, err
	}
	if s.sliding {
		if err := s.sessions.Touch(ctx, token, s.sessionTTL); err != nil && s.logger != nil {
			s.logger.Warn("session touch failed", zap.Error(err))
		}
	}
	return sess, nil
}

// Logout destruye la sesión; es idempotente.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Destroy(ctx, token)
}
