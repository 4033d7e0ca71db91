// Package auth registers accounts, verifies passwords and manages
// server-side login sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

// Store is the persistence the service needs. *storage.SQLiteRepository
// satisfies it.
type Store interface {
	CreateUser(ctx context.Context, u core.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	GetSessionUser(ctx context.Context, token string, now time.Time) (core.User, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Options tunes the service. Zero values take the defaults.
type Options struct {
	SessionTTL time.Duration // default 14 days
	CacheSize  int           // default 1000 sessions
	CacheTTL   time.Duration // default 1 minute
	BcryptCost int           // default bcrypt.DefaultCost
}

// Session is an issued login.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}

type Service struct {
	store      Store
	sessionTTL time.Duration
	cost       int
	cache      *cache.LRUCache[core.User]
	now        func() time.Time
	logger     *applog.Logger
}

func NewService(store Store, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 14 * 24 * time.Hour
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		store:      store,
		sessionTTL: opts.SessionTTL,
		cost:       opts.BcryptCost,
		cache:      cache.NewLRUCache[core.User](opts.CacheSize, opts.CacheTTL),
		now:        time.Now,
		logger:     applog.ForComponent(applog.ComponentAuth),
	}
}

// SessionCache exposes the session cache so the server can sweep it.
func (s *Service) SessionCache() cache.Cleaner {
	return s.cache
}

// SessionTTL is the lifetime of new sessions.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// HashPassword returns a bcrypt hash of password.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Register validates the sign-up form and creates a user in the User role.
// Validation problems and a taken username come back as core.FieldErrors.
func (s *Service) Register(ctx context.Context, in RegisterInput) (core.User, error) {
	username, email, err := in.Validate()
	if err != nil {
		return core.User{}, err
	}
	return s.CreateUser(ctx, username, email, in.Password1, []core.Role{core.RoleUser}, false)
}

// CreateUser hashes password and stores the account. Operator tooling uses
// it directly to create managers, admins and superusers.
func (s *Service) CreateUser(ctx context.Context, username, email, password string, roles []core.Role, superuser bool) (core.User, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	u := core.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        roles,
		IsSuperuser:  superuser,
		IsActive:     true,
		DateJoined:   s.now().UTC(),
	}
	id, err := s.store.CreateUser(ctx, u)
	if errors.Is(err, core.ErrUsernameTaken) {
		return core.User{}, core.FieldErrors{"username": "A user with that username already exists."}
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user %q: %w", username, err)
	}
	u.ID = id

	s.logger.InfoContext(ctx, "User registered",
		applog.FieldUserID, id,
		applog.FieldUsername, username,
		"roles", roles)
	return u, nil
}

// Authenticate checks username and password. Unknown users, wrong passwords
// and inactive accounts all return core.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return core.User{}, core.ErrInvalidCredentials
	}

	u, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		s.logger.WarnContext(ctx, "Login failed", applog.FieldUsername, username, "reason", "unknown user")
		return core.User{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, fmt.Errorf("load user %q: %w", username, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Login failed", applog.FieldUsername, username, "reason", "bad password")
		return core.User{}, core.ErrInvalidCredentials
	}
	if !u.IsActive {
		s.logger.WarnContext(ctx, "Login failed", applog.FieldUsername, username, "reason", "inactive")
		return core.User{}, core.ErrInvalidCredentials
	}
	return u, nil
}

// Login opens a session for u.
func (s *Service) Login(ctx context.Context, u core.User) (Session, error) {
	sess := Session{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, sess.Token, u.ID, sess.ExpiresAt); err != nil {
		return Session{}, fmt.Errorf("create session for user %d: %w", u.ID, err)
	}
	s.cache.SetWithExpiry(sess.Token, u, sess.ExpiresAt)

	s.logger.InfoContext(ctx, "User logged in", applog.FieldUserID, u.ID, applog.FieldUsername, u.Username)
	return sess, nil
}

// Logout ends the session. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	s.cache.Delete(token)
	if err := s.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// UserForSession resolves a session token. A missing, expired or unknown
// token returns core.ErrNotFound.
func (s *Service) UserForSession(ctx context.Context, token string) (core.User, error) {
	if token == "" {
		return core.User{}, core.ErrNotFound
	}
	if u, ok := s.cache.Get(token); ok {
		return u, nil
	}

	u, err := s.store.GetSessionUser(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.User{}, core.ErrNotFound
		}
		return core.User{}, fmt.Errorf("resolve session: %w", err)
	}
	s.cache.Set(token, u)
	return u, nil
}

// PurgeExpiredSessions deletes expired sessions from the store.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Expired sessions purged", applog.FieldCount, n)
	}
	return n, nil
}
