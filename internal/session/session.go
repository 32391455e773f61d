// Package session owns the authenticated session: sign-in, sign-up, sign-out
// and restoring a persisted session at startup. The bearer credential every
// authenticated request carries comes from Manager.Credentials, so the token
// store, the in-memory session and outgoing requests change together.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/IlyasAtabaev731/nickpay/internal/api"
	"github.com/IlyasAtabaev731/nickpay/internal/domain/apperr"
	"github.com/IlyasAtabaev731/nickpay/internal/domain/models"
	"github.com/IlyasAtabaev731/nickpay/internal/lib/jwt"
	"github.com/IlyasAtabaev731/nickpay/internal/lib/logger/sl"
)

// Keys in the token store.
const (
	TokenKey = "token"
	UserKey  = "user"
)

const devTokenTTL = 24 * time.Hour

type State int

const (
	StateUnknown State = iota
	StateSignedOut
	StateSignedIn
)

func (s State) String() string {
	switch s {
	case StateSignedOut:
		return "signed-out"
	case StateSignedIn:
		return "signed-in"
	default:
		return "unknown"
	}
}

type AuthClient interface {
	Login(ctx context.Context, nickname, password string) (*api.LoginResult, error)
	Register(ctx context.Context, req api.RegisterRequest) error
}

type TokenStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

type Option func(*Manager)

// WithDevAuth makes sign-in mint a local token signed with secret instead of
// calling the API. For development only.
func WithDevAuth(secret string) Option {
	return func(m *Manager) {
		m.devAuth = true
		m.devSecret = secret
	}
}

type Manager struct {
	client AuthClient
	store  TokenStore
	logger *slog.Logger

	devAuth   bool
	devSecret string

	mu      sync.RWMutex
	state   State
	session *models.Session
	loading bool
	// generation is bumped by SignOut; a sign-in started under an older
	// generation is not applied.
	generation uint64
}

func New(client AuthClient, store TokenStore, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		client: client,
		store:  store,
		logger: logger,
		state:  StateUnknown,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore loads the persisted session. It never fails: a missing or
// unreadable entry leaves the manager signed out.
func (m *Manager) Restore(ctx context.Context) State {
	const op = "session.Restore"

	log := m.logger.With(slog.String("op", op))

	sess, err := m.load(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			log.Debug("no stored session")
		} else {
			log.Error("failed to load stored session", sl.Err(err))
		}
		m.session = nil
		m.state = StateSignedOut
		return m.state
	}

	m.session = sess
	m.state = StateSignedIn
	log.Info("session restored", slog.String("nickname", sess.User.Nickname))

	return m.state
}

func (m *Manager) SignIn(ctx context.Context, nickname, password string) (*models.Session, error) {
	const op = "session.SignIn"

	nickname = strings.TrimSpace(nickname)
	if err := requireFields(field{"nickname", nickname}, field{"password", password}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := m.begin(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer m.end()

	sess, err := m.signIn(ctx, nickname, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sess, nil
}

// SignUp registers the account and then signs in with the same credentials.
// Sign-in is not attempted when registration fails.
func (m *Manager) SignUp(ctx context.Context, name, document, nickname, password string) (*models.Session, error) {
	const op = "session.SignUp"

	name = strings.TrimSpace(name)
	document = strings.TrimSpace(document)
	nickname = strings.TrimSpace(nickname)
	err := requireFields(
		field{"name", name},
		field{"document", document},
		field{"nickname", nickname},
		field{"password", password},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := m.begin(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer m.end()

	log := m.logger.With(slog.String("op", op), slog.String("nickname", nickname))

	if m.devAuth {
		log.Warn("dev auth enabled, skipping registration")
	} else {
		req := api.RegisterRequest{Name: name, Document: document, Nickname: nickname, Password: password}
		if err := m.client.Register(ctx, req); err != nil {
			log.Error("registration failed", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("user registered")
	}

	sess, err := m.signIn(ctx, nickname, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sess, nil
}

// SignOut clears the stored entries, the credential and the in-memory
// session. Store failures are logged; the session is cleared regardless.
// A sign-in still in flight is dropped when it returns.
func (m *Manager) SignOut(ctx context.Context) {
	const op = "session.SignOut"

	m.mu.Lock()
	m.generation++
	m.session = nil
	m.state = StateSignedOut
	m.mu.Unlock()

	if err := m.store.Delete(ctx, TokenKey, UserKey); err != nil {
		m.logger.Error("failed to clear stored session", slog.String("op", op), sl.Err(err))
	}

	m.logger.Info("signed out", slog.String("op", op))
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Current returns a copy of the active session.
func (m *Manager) Current() (models.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return models.Session{}, false
	}
	return *m.session, true
}

// Credentials is the bearer credential for the active session, or the zero
// value when signed out.
func (m *Manager) Credentials() api.Credentials {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return api.Credentials{}
	}
	return api.Bearer(m.session.Token)
}

func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

func (m *Manager) signIn(ctx context.Context, nickname, password string) (*models.Session, error) {
	log := m.logger.With(slog.String("nickname", nickname))

	m.mu.RLock()
	gen := m.generation
	m.mu.RUnlock()

	var (
		token string
		user  *models.User
	)
	if m.devAuth {
		var err error
		token, user, err = m.devLogin(nickname)
		if err != nil {
			return nil, err
		}
		log.Warn("dev auth enabled, issued local token")
	} else {
		res, err := m.client.Login(ctx, nickname, password)
		if err != nil {
			log.Error("login request failed", sl.Err(err))
			if errors.Is(err, apperr.ErrMalformedResponse) {
				return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidCredentialsResponse, err)
			}
			return nil, err
		}
		token, user = res.Token, res.User
	}

	if token == "" {
		log.Error("login response has no token")
		return nil, fmt.Errorf("token missing: %w", apperr.ErrInvalidCredentialsResponse)
	}
	if user == nil || !hasProfile(*user) {
		log.Error("login response has no user")
		return nil, fmt.Errorf("user missing: %w", apperr.ErrInvalidCredentialsResponse)
	}

	sess := &models.Session{User: *user, Token: token}
	if exp, ok := jwt.ExpiresAt(token); ok {
		sess.ExpiresAt = exp
	}

	if !m.current(gen) {
		log.Info("signed out while signing in, dropping session")
		return nil, apperr.ErrSignedOut
	}

	m.persist(ctx, sess)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		log.Info("signed out while signing in, dropping session")
		if err := m.store.Delete(ctx, TokenKey, UserKey); err != nil {
			log.Error("failed to clear stored session", sl.Err(err))
		}
		return nil, apperr.ErrSignedOut
	}
	m.session = sess
	m.state = StateSignedIn
	m.mu.Unlock()

	log.Info("signed in", slog.String("user_id", string(user.ID)))

	out := *sess
	return &out, nil
}

func (m *Manager) devLogin(nickname string) (string, *models.User, error) {
	user := &models.User{ID: "dev", Name: "Dev User", Nickname: nickname}

	token, err := jwt.NewToken(*user, m.devSecret, devTokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("dev token: %w", err)
	}

	return token, user, nil
}

// persist writes token and profile. A failed write is logged and any partial
// entry removed, so the next Restore never pairs a token with another user.
func (m *Manager) persist(ctx context.Context, sess *models.Session) {
	log := m.logger.With(slog.String("op", "session.persist"))

	rawUser, err := json.Marshal(sess.User)
	if err != nil {
		log.Error("failed to encode user", sl.Err(err))
		return
	}

	err = m.store.Set(ctx, TokenKey, sess.Token)
	if err == nil {
		err = m.store.Set(ctx, UserKey, string(rawUser))
	}
	if err == nil {
		return
	}

	log.Error("failed to persist session, it will not survive a restart", sl.Err(err))
	if err := m.store.Delete(ctx, TokenKey, UserKey); err != nil {
		log.Error("failed to roll back partial session", sl.Err(err))
	}
}

func (m *Manager) load(ctx context.Context) (*models.Session, error) {
	token, err := m.store.Get(ctx, TokenKey)
	if err != nil {
		return nil, err
	}
	rawUser, err := m.store.Get(ctx, UserKey)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", apperr.ErrNotFound)
	}

	var user models.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return nil, &apperr.StorageError{Op: "session.load", Err: fmt.Errorf("decode user: %w", err)}
	}
	if !hasProfile(user) {
		return nil, fmt.Errorf("empty user: %w", apperr.ErrNotFound)
	}

	sess := &models.Session{User: user, Token: token}
	if exp, ok := jwt.ExpiresAt(token); ok {
		sess.ExpiresAt = exp
	}

	return sess, nil
}

func (m *Manager) current(gen uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return gen == m.generation
}

// hasProfile reports whether u identifies someone; "null" and "{}" decode to
// a user without a nickname.
func hasProfile(u models.User) bool {
	return strings.TrimSpace(u.Nickname) != ""
}

func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loading {
		return apperr.ErrBusy
	}
	m.loading = true
	return nil
}

func (m *Manager) end() {
	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
}

type field struct {
	name  string
	value string
}

func requireFields(fields ...field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return apperr.Validation(f.name, "is required")
		}
	}
	return nil
}
