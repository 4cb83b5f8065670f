package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"journey/api/internal/ctxutil"
	"journey/api/internal/docstore"
	"journey/api/internal/export"
	"journey/api/internal/history"
	"journey/api/internal/identity"
	"journey/api/internal/journey"
	"journey/api/internal/metrics"
	"journey/api/internal/util"
)

const (
	SourceStore   = "store"
	SourceDefault = "default"
)

// Identities is the sign-in provider. identity.Service and identity.Unconfigured satisfy it.
type Identities interface {
	SignIn(ctx context.Context, email, password string) (identity.Identity, string, error)
	Authenticate(ctx context.Context, token string) (identity.Identity, error)
	SignOut(ctx context.Context, id identity.Identity) error
	Observe(fn func(identity.Event)) func()
}

type Options struct {
	Store        docstore.Store
	Identity     Identities
	History      *history.Service
	Cards        *export.Service
	Metrics      metrics.Provider
	Logger       zerolog.Logger
	StoreTimeout time.Duration
	Warnings     []string
}

type editorSession struct {
	id     string
	owner  string
	editor *journey.Editor
}

// Service owns the live journey. Handlers read copies of it; only Commit replaces it.
type Service struct {
	store        docstore.Store
	identity     Identities
	history      *history.Service
	cards        *export.Service
	metrics      metrics.Provider
	log          zerolog.Logger
	storeTimeout time.Duration
	warnings     []string
	now          func() time.Time

	// commitMu orders store writes with live swaps so the live journey always matches the
	// last document written.
	commitMu sync.Mutex

	mu         sync.RWMutex
	live       journey.State
	source     string
	completion journey.CompletionTrigger

	editorsMu sync.Mutex
	editors   map[string]*editorSession

	subsMu sync.Mutex
	nextSub int
	subs    map[int]chan struct{}

	unobserve func()
}

func NewService(opts Options) *Service {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 10 * time.Second
	}
	if opts.Cards == nil {
		opts.Cards = export.NewService(nil)
	}
	if opts.Identity == nil {
		opts.Identity = identity.Unconfigured{}
	}
	if opts.Store == nil {
		opts.Store = docstore.Unconfigured()
	}
	s := &Service{
		store:        opts.Store,
		identity:     opts.Identity,
		history:      opts.History,
		cards:        opts.Cards,
		metrics:      opts.Metrics,
		log:          opts.Logger,
		storeTimeout: opts.StoreTimeout,
		warnings:     opts.Warnings,
		now:          time.Now,
		live:         journey.DefaultState(),
		source:       SourceDefault,
		editors:      map[string]*editorSession{},
		subs:         map[int]chan struct{}{},
	}
	s.unobserve = s.identity.Observe(s.onIdentityEvent)
	return s
}

// Close stops listening for identity changes.
func (s *Service) Close() {
	if s.unobserve != nil {
		s.unobserve()
	}
}

// Bootstrap loads the stored journey. Any read failure, a missing document or a document with
// no greetings leaves the compiled default in place; the default is never written back.
func (s *Service) Bootstrap(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	started := s.now()
	doc, err := s.store.Get(ctx)
	s.metrics.ObserveStoreDuration("get", s.now().Sub(started))

	state, source := journey.DefaultState(), SourceDefault
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		s.log.Info().Msg("no stored journey, using defaults")
		s.metrics.IncLoadFallbacks()
	case err != nil:
		s.log.Warn().Err(err).Msg("failed to load journey, using defaults")
		s.metrics.IncLoadFallbacks()
	case len(doc.Greetings) == 0:
		s.log.Warn().Msg("stored journey has no greetings, using defaults")
		s.metrics.IncLoadFallbacks()
	default:
		state, source = doc.State(), SourceStore
		if state.UnlockedThroughDay <= 0 {
			state.UnlockedThroughDay = 1
		}
	}

	s.mu.Lock()
	s.live, s.source = state, source
	s.mu.Unlock()

	s.metrics.SetUnlockedDays(state.UnlockedThroughDay)
	s.log.Info().Str("source", source).Int("unlocked_days", state.UnlockedThroughDay).Msg("journey loaded")
	s.observeCompletion(state)
}

// State returns a copy of the live journey.
func (s *Service) State() journey.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live.Clone()
}

func (s *Service) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *Service) Warnings() []string {
	return append([]string{}, s.warnings...)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Metrics() metrics.Provider {
	return s.metrics
}

// Day returns the card for an unlocked day.
func (s *Service) Day(day int) (journey.Card, error) {
	state := s.State()
	for _, card := range journey.Cards(state) {
		if card.Day != day {
			continue
		}
		if !card.Unlocked {
			return journey.Card{}, domainError(http.StatusForbidden, "DAY_LOCKED", fmt.Sprintf("Day %d is still locked", day), map[string]any{"day": day})
		}
		return card, nil
	}
	return journey.Card{}, ErrDayNotFound
}

func (s *Service) RenderCard(ctx context.Context, day int, format export.Format) (*export.Result, error) {
	card, err := s.Day(day)
	if err != nil {
		return nil, err
	}
	return s.cards.RenderCard(ctx, card.Greeting, format)
}

// SignIn authenticates the operator and, when openEditor is set, opens an editor session for
// them in the same call.
func (s *Service) SignIn(ctx context.Context, email, password string, openEditor bool) (identity.Identity, string, *EditorView, error) {
	id, token, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		return identity.Identity{}, "", nil, err
	}
	s.log.Info().Str("operator", id.Email).Msg("operator signed in")
	if !openEditor {
		return id, token, nil, nil
	}
	view, err := s.OpenEditor(ctxutil.WithActor(ctx, actorFor(id)))
	if err != nil {
		return id, token, nil, err
	}
	return id, token, &view, nil
}

func (s *Service) Authenticate(ctx context.Context, token string) (identity.Identity, error) {
	return s.identity.Authenticate(ctx, token)
}

func (s *Service) SignOut(ctx context.Context, id identity.Identity) error {
	if err := s.identity.SignOut(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("operator", id.Email).Msg("operator signed out")
	return nil
}

func (s *Service) onIdentityEvent(ev identity.Event) {
	if ev.Current != nil {
		return
	}
	s.editorsMu.Lock()
	defer s.editorsMu.Unlock()
	for key, sess := range s.editors {
		if sess.owner != ev.Subject {
			continue
		}
		if err := sess.editor.Cancel(); err != nil && !errors.Is(err, journey.ErrEditorClosed) {
			s.log.Warn().Err(err).Str("editor", key).Msg("editor left open after sign-out")
		}
		delete(s.editors, key)
	}
}

func actorFor(id identity.Identity) ctxutil.Actor {
	return ctxutil.Actor{ID: id.ID, Email: id.Email}
}

// Commit persists draft as the whole stored document and, only when the store accepts it,
// makes it the live journey. The write is detached from ctx's cancellation so a client that
// goes away cannot leave the store and the live state disagreeing.
func (s *Service) Commit(ctx context.Context, draft journey.State) error {
	actor, ok := ctxutil.ActorFromContext(ctx)
	if !ok {
		s.metrics.IncCommits("denied")
		return journey.ErrPermission
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	doc := docstore.FromState(draft, s.now())
	started := s.now()
	err := s.store.Put(writeCtx, doc)
	s.metrics.ObserveStoreDuration("put", s.now().Sub(started))
	if err != nil {
		if errors.Is(err, docstore.ErrPermissionDenied) {
			s.metrics.IncCommits("denied")
			return fmt.Errorf("%w: %w", journey.ErrPermission, err)
		}
		s.metrics.IncCommits("error")
		s.log.Error().Err(err).Str("operator", actor.Email).Msg("failed to save journey")
		return err
	}

	live := draft.Clone()
	s.mu.Lock()
	s.live, s.source = live, SourceStore
	s.mu.Unlock()

	s.metrics.IncCommits("ok")
	s.metrics.SetUnlockedDays(live.UnlockedThroughDay)
	s.log.Info().Str("operator", actor.Email).Int("unlocked_days", live.UnlockedThroughDay).Msg("journey saved")

	if s.history.Enabled() {
		message := fmt.Sprintf("Save journey (%d of %d days unlocked)", live.UnlockedThroughDay, journey.TotalDays)
		if _, err := s.history.Record(doc, actor.Email, message); err != nil {
			s.log.Warn().Err(err).Msg("failed to record journey history")
		}
	}

	s.observeCompletion(live)
	return nil
}

func (s *Service) observeCompletion(state journey.State) {
	if !s.completion.Observe(state) {
		return
	}
	s.metrics.IncCompletions()
	s.log.Info().Msg("journey complete")
	s.broadcastCelebrate()
}

// subscribe returns a channel that receives a value each time the journey becomes complete.
func (s *Service) subscribe() (<-chan struct{}, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.nextSub++
	key := s.nextSub
	ch := make(chan struct{}, 1)
	s.subs[key] = ch
	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, key)
	}
}

func (s *Service) broadcastCelebrate() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// EditorView is an editor session as returned to the operator.
type EditorView struct {
	ID string `json:"id"`
	journey.View
	Saved bool `json:"saved"`
}

func requireActor(ctx context.Context) (ctxutil.Actor, error) {
	actor, ok := ctxutil.ActorFromContext(ctx)
	if !ok {
		return ctxutil.Actor{}, identity.ErrUnauthenticated
	}
	return actor, nil
}

// OpenEditor starts an editing session over a copy of the live journey for the actor in ctx.
func (s *Service) OpenEditor(ctx context.Context) (EditorView, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return EditorView{}, err
	}
	sess := &editorSession{
		id:     util.NewID("edt"),
		owner:  actor.ID,
		editor: journey.Open(s.State()),
	}
	s.editorsMu.Lock()
	s.editors[sess.id] = sess
	s.editorsMu.Unlock()
	return s.view(sess), nil
}

func (s *Service) session(ctx context.Context, editorID string) (*editorSession, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	s.editorsMu.Lock()
	defer s.editorsMu.Unlock()
	sess, ok := s.editors[editorID]
	if !ok || sess.owner != actor.ID {
		return nil, ErrEditorNotFound
	}
	return sess, nil
}

func (s *Service) view(sess *editorSession) EditorView {
	return EditorView{ID: sess.id, View: sess.editor.Snapshot(), Saved: sess.editor.Saved(s.now())}
}

func (s *Service) Editor(ctx context.Context, editorID string) (EditorView, error) {
	sess, err := s.session(ctx, editorID)
	if err != nil {
		return EditorView{}, err
	}
	return s.view(sess), nil
}

func (s *Service) ToggleUnlock(ctx context.Context, editorID string, day int) (EditorView, error) {
	sess, err := s.session(ctx, editorID)
	if err != nil {
		return EditorView{}, err
	}
	if err := sess.editor.ToggleUnlockThrough(day); err != nil {
		return EditorView{}, err
	}
	return s.view(sess), nil
}

// FieldEdit replaces one text field of a greeting.
type FieldEdit struct {
	Field journey.Field
	Value string
}

func (s *Service) EditGreeting(ctx context.Context, editorID string, day int, edits []FieldEdit) (EditorView, error) {
	sess, err := s.session(ctx, editorID)
	if err != nil {
		return EditorView{}, err
	}
	for _, edit := range edits {
		if err := sess.editor.EditField(day, edit.Field, edit.Value); err != nil {
			return EditorView{}, err
		}
	}
	return s.view(sess), nil
}

// Save commits the session's draft. On success the session ends; on failure it stays open with
// the draft intact so the operator can retry.
func (s *Service) Save(ctx context.Context, editorID string) (EditorView, error) {
	sess, err := s.session(ctx, editorID)
	if err != nil {
		return EditorView{}, err
	}
	if err := sess.editor.Commit(ctx, s); err != nil {
		return EditorView{}, err
	}
	view := s.view(sess)
	s.removeEditor(sess.id)
	return view, nil
}

// Cancel discards the session. A session with a save in flight cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, editorID string) error {
	sess, err := s.session(ctx, editorID)
	if err != nil {
		return err
	}
	if err := sess.editor.Cancel(); err != nil {
		return err
	}
	s.removeEditor(sess.id)
	return nil
}

func (s *Service) removeEditor(editorID string) {
	s.editorsMu.Lock()
	defer s.editorsMu.Unlock()
	delete(s.editors, editorID)
}

func (s *Service) History(ctx context.Context, limit int) ([]history.CommitInfo, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	return s.history.Log(limit)
}

func (s *Service) HistoryEntry(ctx context.Context, hash string) (docstore.Document, []history.Change, error) {
	if _, err := requireActor(ctx); err != nil {
		return docstore.Document{}, nil, err
	}
	return s.history.Show(hash)
}
