package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"journey/api/internal/ctxutil"
	"journey/api/internal/export"
	"journey/api/internal/identity"
	"journey/api/internal/journey"
	"journey/api/internal/metrics"
	"journey/api/internal/util"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        zerolog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, log zerolog.Logger) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, log: log}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(metrics.Middleware(s.service.Metrics(), http.HandlerFunc(s.handle)))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"store": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["store"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" {
		s.service.Metrics().Handler().ServeHTTP(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/config" {
		warnings := s.service.Warnings()
		writeJSON(w, http.StatusOK, map[string]any{
			"configured": len(warnings) == 0,
			"warnings":   warnings,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/journey" {
		writeJSON(w, http.StatusOK, s.journeyPayload())
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/journey/countdown" {
		s.handleCountdown(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleSignIn(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signout" {
		id, ok := s.requireIdentity(w, r)
		if !ok {
			return
		}
		if err := s.service.SignOut(r.Context(), id); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "isAdmin": false, "email": nil})
			return
		}
		id, err := s.service.Authenticate(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "isAdmin": false, "email": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "isAdmin": true, "email": id.Email, "expiresAt": id.ExpiresAt})
		return
	}

	parts := splitPath(r.URL.Path)

	// /api/journey/days/{day}[/card.html|/card.pdf]
	if len(parts) >= 4 && parts[0] == "api" && parts[1] == "journey" && parts[2] == "days" && r.Method == http.MethodGet {
		day, err := strconv.Atoi(parts[3])
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DAY", "day must be a number", nil)
			return
		}
		switch {
		case len(parts) == 4:
			card, err := s.service.Day(day)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, card)
		case len(parts) == 5 && strings.HasPrefix(parts[4], "card."):
			format, err := export.ParseFormat(strings.TrimPrefix(parts[4], "card."))
			if err != nil {
				writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
				return
			}
			s.handleCard(w, r, day, format)
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "editor" {
		id, ok := s.requireIdentity(w, r)
		if !ok {
			return
		}
		ctx := ctxutil.WithActor(r.Context(), actorFor(id))
		s.handleEditor(w, r.WithContext(ctx), parts[2:])
		return
	}

	if len(parts) >= 2 && len(parts) <= 3 && parts[0] == "api" && parts[1] == "history" && r.Method == http.MethodGet {
		id, ok := s.requireIdentity(w, r)
		if !ok {
			return
		}
		ctx := ctxutil.WithActor(r.Context(), actorFor(id))
		if len(parts) == 2 {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			items, err := s.service.History(ctx, limit)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
			return
		}
		doc, changes, err := s.service.HistoryEntry(ctx, parts[2])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"document": doc, "changes": changes})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) journeyPayload() map[string]any {
	state := s.service.State()
	now := s.service.now()
	payload := map[string]any{
		"greetings":    state.Greetings,
		"unlockedDays": state.UnlockedThroughDay,
		"totalDays":    journey.TotalDays,
		"cards":        journey.Cards(state),
		"progress":     journey.Progress(state),
		"complete":     journey.IsJourneyComplete(state),
		"nextUnlockAt": nil,
		"countdown":    nil,
		"source":       s.service.Source(),
	}
	if next, ok := journey.NextUnlockInstant(state, now); ok {
		payload["nextUnlockAt"] = next
		payload["countdown"] = journey.FormatCountdown(next, now)
	}
	return payload
}

func (s *HTTPServer) handleCard(w http.ResponseWriter, r *http.Request, day int, format export.Format) {
	result, err := s.service.RenderCard(r.Context(), day, format)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	if format == export.FormatPDF {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// handleCountdown streams countdown ticks as server-sent events until the client disconnects.
// A celebrate event is sent when the journey becomes complete while the stream is open.
func (s *HTTPServer) handleCountdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	celebrate, unsubscribe := s.service.subscribe()
	defer unsubscribe()

	ticks := make(chan journey.Tick)
	done := make(chan error, 1)
	countdown := journey.NewCountdown(s.service.State)
	go func() {
		done <- countdown.Run(ctx, func(tick journey.Tick) {
			select {
			case ticks <- tick:
			case <-ctx.Done():
			}
		})
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticks:
			if err := writeEvent(w, rc, "tick", tick); err != nil {
				return
			}
		case err := <-done:
			if err != nil {
				return
			}
			if writeEvent(w, rc, "complete", map[string]any{"complete": true}) != nil {
				return
			}
		case <-celebrate:
			if writeEvent(w, rc, "celebrate", map[string]any{"complete": true}) != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body); err != nil {
		return err
	}
	return rc.Flush()
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		OpenEditor bool   `json:"openEditor"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	id, token, editor, err := s.service.SignIn(r.Context(), body.Email, body.Password, body.OpenEditor)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	response := map[string]any{
		"token":    token,
		"identity": id,
	}
	if editor != nil {
		response["editor"] = editor
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleEditor(w http.ResponseWriter, r *http.Request, parts []string) {
	ctx := r.Context()

	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		view, err := s.service.OpenEditor(ctx)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)
		return
	}

	editorID := parts[0]

	if len(parts) == 1 && r.Method == http.MethodGet {
		view, err := s.service.Editor(ctx, editorID)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	if len(parts) == 1 && r.Method == http.MethodDelete {
		if err := s.service.Cancel(ctx, editorID); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 2 && parts[1] == "toggle" && r.Method == http.MethodPost {
		var body struct {
			Day int `json:"day"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.ToggleUnlock(ctx, editorID, body.Day)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	if len(parts) == 2 && parts[1] == "save" && r.Method == http.MethodPost {
		view, err := s.service.Save(ctx, editorID)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	if len(parts) == 3 && parts[1] == "greetings" && r.Method == http.MethodPatch {
		day, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DAY", "day must be a number", nil)
			return
		}
		edits, err := decodeGreetingEdits(r)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		view, err := s.service.EditGreeting(ctx, editorID, day, edits)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// decodeGreetingEdits accepts either {"field": "...", "value": "..."} or a partial greeting
// such as {"title": "...", "message": "..."}.
func decodeGreetingEdits(r *http.Request) ([]FieldEdit, error) {
	var body struct {
		Field    string  `json:"field"`
		Value    *string `json:"value"`
		Emoji    *string `json:"emoji"`
		Title    *string `json:"title"`
		Greeting *string `json:"greeting"`
		Message  *string `json:"message"`
	}
	if err := decodeBody(r, &body); err != nil {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
	}

	if body.Field != "" {
		field, err := journey.ParseField(body.Field)
		if err != nil {
			return nil, err
		}
		if body.Value == nil {
			return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "value is required", nil)
		}
		return []FieldEdit{{Field: field, Value: *body.Value}}, nil
	}

	var edits []FieldEdit
	for _, candidate := range []struct {
		field journey.Field
		value *string
	}{
		{journey.FieldEmoji, body.Emoji},
		{journey.FieldTitle, body.Title},
		{journey.FieldGreeting, body.Greeting},
		{journey.FieldMessage, body.Message},
	} {
		if candidate.value != nil {
			edits = append(edits, FieldEdit{Field: candidate.field, Value: *candidate.value})
		}
	}
	if len(edits) == 0 {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "no fields to update", nil)
	}
	return edits, nil
}

func (s *HTTPServer) requireIdentity(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "Sign in to continue", nil)
		return identity.Identity{}, false
	}
	id, err := s.service.Authenticate(r.Context(), token)
	if err != nil {
		s.writeMappedError(w, err)
		return identity.Identity{}, false
	}
	return id, true
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("code", code).Msg("request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("req")
		}
		r = r.WithContext(ctxutil.WithRequestID(r.Context(), requestID))

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
