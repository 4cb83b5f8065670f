package journey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrEditorClosed  = errors.New("editor is closed")
	ErrSaveInFlight  = errors.New("save in progress")
	ErrDayOutOfRange = errors.New("day out of range")
	// ErrPermission is returned by a Committer when the caller has no identity or the store
	// rejected the write.
	ErrPermission = errors.New("permission denied")
)

// SavedAckWindow is how long Saved keeps reporting true after a successful commit.
const SavedAckWindow = 2 * time.Second

type Status string

const (
	StatusClosed Status = "closed"
	StatusOpen   Status = "open"
	StatusSaving Status = "saving"
)

// Committer persists a draft and, on success, makes it the live state.
type Committer interface {
	Commit(ctx context.Context, draft State) error
}

type CommitterFunc func(ctx context.Context, draft State) error

func (f CommitterFunc) Commit(ctx context.Context, draft State) error { return f(ctx, draft) }

// Editor is one operator's editing session over a private draft of the journey.
type Editor struct {
	mu      sync.Mutex
	status  Status
	draft   State
	savedAt time.Time
	lastErr error
	now     func() time.Time
}

// Open starts a session with a deep copy of live.
func Open(live State) *Editor {
	return &Editor{status: StatusOpen, draft: live.Clone(), now: time.Now}
}

// View is a point-in-time copy of the editor.
type View struct {
	Status    Status    `json:"status"`
	Draft     State     `json:"draft"`
	SavedAt   time.Time `json:"savedAt"`
	LastError string    `json:"lastError,omitempty"`
}

func (e *Editor) Snapshot() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := View{Status: e.status, Draft: e.draft.Clone(), SavedAt: e.savedAt}
	if e.lastErr != nil {
		v.LastError = e.lastErr.Error()
	}
	return v
}

func (e *Editor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Saved reports whether the last commit succeeded less than SavedAckWindow before now.
func (e *Editor) Saved(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.savedAt.IsZero() && now.Sub(e.savedAt) < SavedAckWindow
}

func (e *Editor) editableLocked() error {
	switch e.status {
	case StatusOpen:
		return nil
	case StatusSaving:
		return ErrSaveInFlight
	default:
		return ErrEditorClosed
	}
}

// ToggleUnlockThrough clicks day on the admin unlock row. A day inside the unlocked prefix
// relocks it and everything after; a locked day unlocks it and everything before. The draft
// always stays a contiguous prefix.
func (e *Editor) ToggleUnlockThrough(day int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.editableLocked(); err != nil {
		return err
	}
	if day < 1 || day > TotalDays {
		return fmt.Errorf("%w: %d", ErrDayOutOfRange, day)
	}
	if day <= e.draft.UnlockedThroughDay {
		e.draft.UnlockedThroughDay = day - 1
	} else {
		e.draft.UnlockedThroughDay = day
	}
	return nil
}

// EditField replaces one text field of the draft record for day. An unknown day is ignored.
func (e *Editor) EditField(day int, field Field, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.editableLocked(); err != nil {
		return err
	}
	switch field {
	case FieldEmoji, FieldTitle, FieldGreeting, FieldMessage:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	for i := range e.draft.Greetings {
		if e.draft.Greetings[i].Day == day {
			e.draft.Greetings[i].set(field, value)
			break
		}
	}
	return nil
}

// Commit hands the full draft to c. On success the session closes and the draft is dropped; on
// failure the draft is kept and the session is open again so the operator can retry.
func (e *Editor) Commit(ctx context.Context, c Committer) error {
	e.mu.Lock()
	if err := e.editableLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.status = StatusSaving
	e.lastErr = nil
	draft := e.draft.Clone()
	e.mu.Unlock()

	err := c.Commit(ctx, draft)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.status = StatusOpen
		e.lastErr = err
		return err
	}
	e.status = StatusClosed
	e.draft = State{}
	e.savedAt = e.now()
	return nil
}

// Cancel closes the session without writing. A session with a save in flight cannot be
// cancelled; the save decides how it ends.
func (e *Editor) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.status {
	case StatusSaving:
		return ErrSaveInFlight
	case StatusClosed:
		return ErrEditorClosed
	}
	e.status = StatusClosed
	e.draft = State{}
	return nil
}
