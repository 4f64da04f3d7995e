package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"market-service/internal/models"
	"market-service/internal/redisclient"
	"market-service/internal/store"
	"market-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService manages accounts and bearer-token sessions. Sessions live
// in Redis under their token with a TTL; session-change listeners are
// invoked on sign-in and sign-out, which is what drives the sync
// controller's lifecycle.
type AuthService struct {
	store    *store.Store
	sessions *redisclient.Client
	ttl      time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	listeners map[uint64]func(*models.Session)
	nextID    uint64
}

// NewAuthService creates a new auth service
func NewAuthService(st *store.Store, sessions *redisclient.Client, ttl time.Duration) *AuthService {
	return &AuthService{
		store:     st,
		sessions:  sessions,
		ttl:       ttl,
		logger:    util.GetLogger(),
		listeners: make(map[uint64]func(*models.Session)),
	}
}

// OnSessionChange registers a listener invoked with the session on
// sign-in and with nil on sign-out. Returns an unsubscribe function.
func (as *AuthService) OnSessionChange(fn func(*models.Session)) func() {
	as.mu.Lock()
	id := as.nextID
	as.nextID++
	as.listeners[id] = fn
	as.mu.Unlock()

	return func() {
		as.mu.Lock()
		delete(as.listeners, id)
		as.mu.Unlock()
	}
}

func (as *AuthService) notifyListeners(session *models.Session) {
	as.mu.Lock()
	fns := make([]func(*models.Session), 0, len(as.listeners))
	for _, fn := range as.listeners {
		fns = append(fns, fn)
	}
	as.mu.Unlock()

	for _, fn := range fns {
		fn(session)
	}
}

// SignUp creates an account with a hashed password and a profile row.
// Role is restricted to farmer or buyer; admins are provisioned out of
// band.
func (as *AuthService) SignUp(ctx context.Context, email, password, role, name string) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.SignUp")
	defer span.End()

	if role != models.RoleFarmer && role != models.RoleBuyer {
		return nil, &models.ValidationError{Fields: []string{"role"}}
	}
	if email == "" || len(password) < 8 {
		return nil, &models.ValidationError{Fields: []string{"email", "password"}}
	}

	existing, _, err := as.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, &models.ValidationError{Fields: []string{"email"}}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{Email: email, Role: role}
	if err := as.store.CreateUser(ctx, user, string(hash)); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	profile := &models.Profile{UserID: user.ID, Name: name}
	if err := as.store.UpsertProfile(ctx, profile); err != nil {
		as.logger.Warn("Failed to create profile", zap.String("user_id", user.ID), zap.Error(err))
	}

	as.logger.Info("User registered",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role))
	return user, nil
}

// SignIn verifies credentials and issues a session token.
func (as *AuthService) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.SignIn")
	defer span.End()

	user, hash, err := as.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, models.ErrAuthRequired
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, models.ErrAuthRequired
	}

	session := &models.Session{
		Token:     uuid.New().String(),
		User:      *user,
		ExpiresAt: time.Now().Add(as.ttl),
	}
	if err := as.sessions.PutSession(ctx, session, as.ttl); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	as.logger.Info("User signed in", zap.String("user_id", user.ID))
	as.notifyListeners(session)
	return session, nil
}

// SignOut deletes the session token and notifies listeners with nil.
func (as *AuthService) SignOut(ctx context.Context, token string) error {
	ctx, span := util.StartSpan(ctx, "AuthService.SignOut")
	defer span.End()

	if err := as.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	as.notifyListeners(nil)
	return nil
}

// CurrentSession resolves a bearer token. Returns (nil, nil) when the
// token is unknown or expired.
func (as *AuthService) CurrentSession(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, nil
	}
	return as.sessions.GetSession(ctx, token)
}

// Identity loads the user and profile behind a session, the shape the
// catalog service requires for writes.
func (as *AuthService) Identity(ctx context.Context, session *models.Session) (*models.Identity, error) {
	if session == nil {
		return nil, models.ErrAuthRequired
	}

	profile, err := as.store.GetProfile(ctx, session.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	identity := &models.Identity{User: session.User}
	if profile != nil {
		identity.Profile = *profile
	}
	return identity, nil
}
