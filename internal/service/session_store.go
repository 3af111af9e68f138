package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"login-api/internal/domain"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// SessionStore guarda sesiones activas indexadas por token.
type SessionStore interface {
	Create(ctx context.Context, userID, username string, ttl time.Duration) (domain.Session, error)
	Resolve(ctx context.Context, token string) (domain.Session, error)
	Touch(ctx context.Context, token string, ttl time.Duration) error
	Destroy(ctx context.Context, token string) error
}

func generateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

type memorySessionStore struct {
	mu    sync.Mutex
	items map[string]domain.Session
}

// NewMemorySessionStore crea un store en memoria con expiración perezosa.
func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{
		items: make(map[string]domain.Session),
	}
}

func (s *memorySessionStore) Create(_ context.Context, userID, username string, ttl time.Duration) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		token, err := generateSessionToken()
		if err != nil {
			return domain.Session{}, err
		}
		if _, exists := s.items[token]; exists {
			continue
		}
		now := time.Now().UTC()
		sess := domain.Session{
			Token:     token,
			UserID:    userID,
			Username:  username,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		s.items[token] = sess
		return sess, nil
	}
}

func (s *memorySessionStore) Resolve(_ context.Context, token string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[token]
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		delete(s.items, token)
		return domain.Session{}, ErrSessionExpired
	}
	return sess, nil
}

func (s *memorySessionStore) Touch(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[token]
	if !ok {
		return ErrSessionNotFound
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		delete(s.items, token)
		return ErrSessionExpired
	}
	sess.ExpiresAt = time.Now().UTC().Add(ttl)
	s.items[token] = sess
	return nil
}

func (s *memorySessionStore) Destroy(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, token)
	return nil
}

type sessionPayload struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type redisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore crea un store durable sobre redis.
func NewRedisSessionStore(client *redis.Client) SessionStore {
	if client == nil {
		return nil
	}
	return &redisSessionStore{
		client: client,
		prefix: "auth:session:",
	}
}

func (s *redisSessionStore) Create(ctx context.Context, userID, username string, ttl time.Duration) (domain.Session, error) {
	now := time.Now().UTC()
	payload := sessionPayload{
		UserID:    userID,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.Session{}, err
	}

	for {
		token, err := generateSessionToken()
		if err != nil {
			return domain.Session{}, err
		}
		callCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		// SetNX evita pisar un token vivo si dos creaciones coinciden.
		ok, err := s.client.SetNX(callCtx, s.prefix+token, data, ttl).Result()
		cancel()
		if err != nil {
			return domain.Session{}, err
		}
		if !ok {
			continue
		}
		return domain.Session{
			Token:     token,
			UserID:    payload.UserID,
			Username:  payload.Username,
			CreatedAt: payload.CreatedAt,
			ExpiresAt: payload.ExpiresAt,
		}, nil
	}
}

func (s *redisSessionStore) Resolve(ctx context.Context, token string) (domain.Session, error) {
	callCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	data, err := s.client.Get(callCtx, s.prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}

	var payload sessionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.Session{}, ErrSessionNotFound
	}
	if time.Now().UTC().After(payload.ExpiresAt) {
		_ = s.client.Del(callCtx, s.prefix+token).Err()
		return domain.Session{}, ErrSessionExpired
	}
	return domain.Session{
		Token:     token,
		UserID:    payload.UserID,
		Username:  payload.Username,
		CreatedAt: payload.CreatedAt,
		ExpiresAt: payload.ExpiresAt,
	}, nil
}

func (s *redisSessionStore) Touch(ctx context.Context, token string, ttl time.Duration) error {
	sess, err := s.Resolve(ctx, token)
	if err != nil {
		return err
	}
	payload := sessionPayload{
		UserID:    sess.UserID,
		Username:  sess.Username,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Set(callCtx, s.prefix+token, data, ttl).Err()
}

func (s *redisSessionStore) Destroy(ctx context.Context, token string) error {
	callCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Del(callCtx, s.prefix+token).Err()
}
