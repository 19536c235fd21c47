package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput       = "BAD_INPUT"
	ErrorAuthRequired   = "AUTH_REQUIRED"
	ErrorDecodeFailed   = "AUTH_DECODE_FAILED"
	ErrorRefreshFailed  = "AUTH_REFRESH_FAILED"
	ErrorStoreIO        = "STORE_IO"
	ErrorRateLimited    = "DIRECTORY_RATE_LIMITED"
	ErrorDirectoryCall  = "DIRECTORY_CALL_FAILED"
	ErrorNotFound       = "DIRECTORY_NOT_FOUND"
	ErrorInternal       = "INTERNAL_ERROR"
	ErrorAuthzForbidden = "DIRECTORY_FORBIDDEN"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

// NewAuthRequiredError signals that no usable credential exists and no
// refresh path is available.
func NewAuthRequiredError(message string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, goerrors.CategoryAuth).
			WithTextCode(ErrorAuthRequired),
	)
}

// NewRefreshFailedError classifies a rejected refresh exchange. The caller
// is expected to evict the cached entry for the identity.
func NewRefreshFailedError(err error, message string) *goerrors.Error {
	if err == nil {
		return ensureErrorEnvelope(
			goerrors.New(message, goerrors.CategoryAuth).
				WithTextCode(ErrorRefreshFailed),
		)
	}
	return ensureErrorEnvelope(
		goerrors.Wrap(err, goerrors.CategoryAuth, message).
			WithTextCode(ErrorRefreshFailed),
	)
}

// NewDecodeError classifies an undecodable token payload. Non-fatal: the
// manager degrades to the sentinel identity.
func NewDecodeError(err error) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.Wrap(err, goerrors.CategoryBadInput, "core: token claims decode failed").
			WithTextCode(ErrorDecodeFailed),
	)
}

// NewStoreIOError classifies a persistence failure. Non-fatal on the obtain
// path: logged and counted, never blocks a valid in-memory credential.
func NewStoreIOError(err error, message string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.Wrap(err, goerrors.CategoryInternal, message).
			WithTextCode(ErrorStoreIO),
	)
}

// DefaultErrorMapper normalizes arbitrary errors into the classified
// envelope callers and transports rely on.
func DefaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "refresh"):
		return newCoreError(err.Error(), goerrors.CategoryAuth, ErrorRefreshFailed)
	case strings.Contains(msg, "decode") && strings.Contains(msg, "token"):
		return newCoreError(err.Error(), goerrors.CategoryBadInput, ErrorDecodeFailed)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newCoreError(err.Error(), goerrors.CategoryRateLimit, ErrorRateLimited)
	case strings.Contains(msg, "not found"):
		return newCoreError(err.Error(), goerrors.CategoryNotFound, ErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newCoreError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newCoreError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = errorHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultErrorTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultErrorTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth:
		return ErrorAuthRequired
	case goerrors.CategoryAuthz:
		return ErrorAuthzForbidden
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return ErrorDirectoryCall
	default:
		return ErrorInternal
	}
}

func errorHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsTextCode reports whether err carries the given classified text code.
func IsTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}
