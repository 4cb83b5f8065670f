package app

import (
	"errors"
	"fmt"
	"net/http"

	"journey/api/internal/config"
	"journey/api/internal/docstore"
	"journey/api/internal/export"
	"journey/api/internal/history"
	"journey/api/internal/identity"
	"journey/api/internal/journey"
)

var (
	ErrEditorNotFound = errors.New("editor session not found")
	ErrDayNotFound    = errors.New("day not found")
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	var storeErr *docstore.StoreError
	switch {
	case errors.As(err, &domainErr):
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	case errors.Is(err, config.ErrNotConfigured):
		return http.StatusServiceUnavailable, "NOT_CONFIGURED", "Sign-in and storage are not configured", nil
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized, "AUTH_REQUIRED", "Sign in to continue", nil
	case errors.Is(err, journey.ErrPermission), errors.Is(err, docstore.ErrPermissionDenied):
		return http.StatusForbidden, "PERMISSION_DENIED", "You do not have permission to save the journey", nil
	case errors.Is(err, journey.ErrSaveInFlight):
		return http.StatusConflict, "SAVE_IN_FLIGHT", "A save is in progress", nil
	case errors.Is(err, journey.ErrEditorClosed):
		return http.StatusConflict, "EDITOR_CLOSED", "The editor session is closed", nil
	case errors.Is(err, journey.ErrDayOutOfRange):
		return http.StatusBadRequest, "DAY_OUT_OF_RANGE", err.Error(), nil
	case errors.Is(err, journey.ErrUnknownField):
		return http.StatusBadRequest, "UNKNOWN_FIELD", err.Error(), nil
	case errors.Is(err, ErrEditorNotFound):
		return http.StatusNotFound, "EDITOR_NOT_FOUND", "Editor session not found", nil
	case errors.Is(err, ErrDayNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, history.ErrUnknownCommit):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, history.ErrDisabled):
		return http.StatusNotFound, "HISTORY_DISABLED", "History is not enabled", nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "PDF_UNAVAILABLE", "PDF rendering is not available", nil
	case errors.As(err, &storeErr):
		return http.StatusBadGateway, "STORE_ERROR", "The journey could not be saved", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
