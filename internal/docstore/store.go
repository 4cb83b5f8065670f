// Package docstore persists the journey as a single JSON document.
//
// The document lives at collection "journeyData", id "main". Put always replaces the whole
// document; there is no version check, so the last writer wins.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"journey/api/internal/journey"
)

const (
	Collection = "journeyData"
	DocumentID = "main"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrPermissionDenied = errors.New("permission denied")
)

// StoreError wraps any backend failure that is not a permission problem.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("docstore %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// Document is the stored shape of the journey.
type Document struct {
	Greetings    []journey.Greeting `json:"greetings"`
	UnlockedDays int                `json:"unlockedDays"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

func FromState(s journey.State, updatedAt time.Time) Document {
	c := s.Clone()
	return Document{Greetings: c.Greetings, UnlockedDays: c.UnlockedThroughDay, UpdatedAt: updatedAt.UTC()}
}

// State converts the document back without applying any load defaults.
func (d Document) State() journey.State {
	return journey.State{Greetings: d.Greetings, UnlockedThroughDay: d.UnlockedDays}.Clone()
}

func Encode(doc Document) ([]byte, error) {
	return json.Marshal(doc)
}

func Decode(body []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

type Store interface {
	Get(ctx context.Context) (Document, error)
	Put(ctx context.Context, doc Document) error
	Ping(ctx context.Context) error
	Close() error
}
