package store

import "time"

type Operator struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	LastSignInAt *time.Time
}
