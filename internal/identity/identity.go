// Package identity signs operators in and out and tells subscribers when that happens.
// Any signed-in operator is an administrator of the journey.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"journey/api/internal/auth"
	"journey/api/internal/config"
	"journey/api/internal/session"
	"journey/api/internal/store"
	"journey/api/internal/util"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("not signed in")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Identity is a signed-in operator.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	SessionID string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Event is published on every sign-in and sign-out. Current is nil after a sign-out.
type Event struct {
	Subject string
	Current *Identity
}

// OperatorStore is the subset of the account storage sign-in needs.
type OperatorStore interface {
	GetOperatorByEmail(ctx context.Context, email string) (store.Operator, error)
	TouchSignIn(ctx context.Context, operatorID string, at time.Time) error
}

type Service struct {
	operators   OperatorStore
	sessions    session.Store
	tokenSecret []byte
	tokenTTL    time.Duration
	now         func() time.Time

	mu        sync.Mutex
	nextID    int
	observers map[int]func(Event)
}

func NewService(operators OperatorStore, sessions session.Store, tokenSecret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &Service{
		operators:   operators,
		sessions:    sessions,
		tokenSecret: []byte(tokenSecret),
		tokenTTL:    tokenTTL,
		now:         time.Now,
		observers:   map[int]func(Event){},
	}
}

// dummyHash keeps the cost of a failed lookup close to a failed password check.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("journey-dummy-password"), bcrypt.MinCost)

// SignIn checks the credentials and returns the identity with a bearer token for it.
func (s *Service) SignIn(ctx context.Context, email, password string) (Identity, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Identity{}, "", ErrInvalidCredentials
	}

	op, err := s.operators.GetOperatorByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return Identity{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, "", fmt.Errorf("lookup operator: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return Identity{}, "", ErrInvalidCredentials
	}

	now := s.now()
	claims := auth.Claims{
		Sub:   op.ID,
		Email: op.Email,
		JTI:   util.NewID("ses"),
		Iat:   now.Unix(),
		Exp:   now.Add(s.tokenTTL).Unix(),
	}
	token, err := auth.IssueToken(s.tokenSecret, claims)
	if err != nil {
		return Identity{}, "", fmt.Errorf("issue token: %w", err)
	}
	data := session.Data{OperatorID: op.ID, Email: op.Email, CreatedAt: now.UTC()}
	if err := s.sessions.Save(ctx, auth.HashToken(claims.JTI), data, claims.ExpiresAt()); err != nil {
		return Identity{}, "", fmt.Errorf("save session: %w", err)
	}
	// Best effort; the operator is signed in either way.
	_ = s.operators.TouchSignIn(ctx, op.ID, now)

	id := Identity{ID: op.ID, Email: op.Email, SessionID: claims.JTI, ExpiresAt: claims.ExpiresAt()}
	current := id
	s.publish(Event{Subject: id.ID, Current: &current})
	return id, token, nil
}

// Authenticate resolves a bearer token to the identity it was issued for. Revoked or expired
// tokens fail with ErrUnauthenticated.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	claims, err := auth.ParseTokenAt(s.tokenSecret, token, s.now())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	data, err := s.sessions.Lookup(ctx, auth.HashToken(claims.JTI))
	if errors.Is(err, session.ErrNotFound) {
		return Identity{}, fmt.Errorf("%w: session revoked", ErrUnauthenticated)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("lookup session: %w", err)
	}
	if data.OperatorID != claims.Sub {
		return Identity{}, fmt.Errorf("%w: session mismatch", ErrUnauthenticated)
	}
	return Identity{ID: claims.Sub, Email: claims.Email, SessionID: claims.JTI, ExpiresAt: claims.ExpiresAt()}, nil
}

// SignOut revokes the session behind id and publishes an event with no current identity.
func (s *Service) SignOut(ctx context.Context, id Identity) error {
	if id.SessionID == "" {
		return ErrUnauthenticated
	}
	if err := s.sessions.Revoke(ctx, auth.HashToken(id.SessionID)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.publish(Event{Subject: id.ID})
	return nil
}

// Observe registers fn for identity changes until the returned func is called.
func (s *Service) Observe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	key := s.nextID
	s.observers[key] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, key)
	}
}

func (s *Service) publish(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// HashPassword returns the bcrypt hash stored for an operator.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Unconfigured refuses every call with config.ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) SignIn(context.Context, string, string) (Identity, string, error) {
	return Identity{}, "", config.ErrNotConfigured
}

func (Unconfigured) Authenticate(context.Context, string) (Identity, error) {
	return Identity{}, config.ErrNotConfigured
}

func (Unconfigured) SignOut(context.Context, Identity) error { return config.ErrNotConfigured }

func (Unconfigured) Observe(func(Event)) func() { return func() {} }
