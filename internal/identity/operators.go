package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"journey/api/internal/store"
)

// StaticOperator is an account that exists only in configuration.
type StaticOperator struct {
	Email        string
	PasswordHash string
}

// WithStaticOperators answers lookups for the configured accounts first and falls through to
// next, which may be nil when no database is available.
func WithStaticOperators(next OperatorStore, ops ...StaticOperator) OperatorStore {
	byEmail := map[string]store.Operator{}
	for _, op := range ops {
		email := strings.ToLower(strings.TrimSpace(op.Email))
		if email == "" || op.PasswordHash == "" {
			continue
		}
		byEmail[email] = store.Operator{ID: "op_static_" + email, Email: email, PasswordHash: op.PasswordHash}
	}
	return &staticOperators{next: next, byEmail: byEmail}
}

type staticOperators struct {
	next    OperatorStore
	byEmail map[string]store.Operator
}

func (s *staticOperators) GetOperatorByEmail(ctx context.Context, email string) (store.Operator, error) {
	if op, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]; ok {
		return op, nil
	}
	if s.next == nil {
		return store.Operator{}, store.ErrNotFound
	}
	return s.next.GetOperatorByEmail(ctx, email)
}

func (s *staticOperators) TouchSignIn(ctx context.Context, operatorID string, at time.Time) error {
	if strings.HasPrefix(operatorID, "op_static_") || s.next == nil {
		return nil
	}
	err := s.next.TouchSignIn(ctx, operatorID, at)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
