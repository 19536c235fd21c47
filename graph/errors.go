package graph

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/Ashishkumar667/ms-tools/core"
)

type apiErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// classifyAPIError converts a non-2xx directory response into a classified
// error. The error code and message from the API body are preserved in the
// metadata; callers receive the error unchanged (no internal retries).
func classifyAPIError(statusCode int, body []byte, headers map[string]string, method string, path string) *goerrors.Error {
	var parsed apiErrorBody
	_ = json.Unmarshal(body, &parsed)

	message := strings.TrimSpace(parsed.Error.Message)
	if message == "" {
		message = "graph: request failed with status " + strconv.Itoa(statusCode)
	} else {
		message = "graph: " + message
	}

	metadata := map[string]any{
		"status_code": statusCode,
		"method":      strings.TrimSpace(method),
		"path":        strings.TrimSpace(path),
	}
	if code := strings.TrimSpace(parsed.Error.Code); code != "" {
		metadata["api_code"] = code
	}

	category := goerrors.CategoryExternal
	textCode := core.ErrorDirectoryCall
	switch {
	case statusCode == http.StatusUnauthorized:
		category = goerrors.CategoryAuth
		textCode = core.ErrorAuthRequired
	case statusCode == http.StatusForbidden:
		category = goerrors.CategoryAuthz
		textCode = core.ErrorAuthzForbidden
	case statusCode == http.StatusNotFound:
		category = goerrors.CategoryNotFound
		textCode = core.ErrorNotFound
	case statusCode == http.StatusTooManyRequests:
		category = goerrors.CategoryRateLimit
		textCode = core.ErrorRateLimited
		if retryAfter := headerValue(headers, "retry-after"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				metadata["retry_after_s"] = seconds
			}
		}
	case statusCode >= http.StatusBadRequest && statusCode < http.StatusInternalServerError:
		category = goerrors.CategoryBadInput
		textCode = core.ErrorBadInput
	}

	return goerrors.New(message, category).
		WithCode(httpCodeForCategory(category, statusCode)).
		WithTextCode(textCode).
		WithMetadata(metadata)
}

func httpCodeForCategory(category goerrors.Category, statusCode int) int {
	if category == goerrors.CategoryExternal {
		return http.StatusBadGateway
	}
	return statusCode
}

// IsNotFound reports whether err is a classified 404 from the directory.
func IsNotFound(err error) bool {
	return core.IsTextCode(err, core.ErrorNotFound)
}

// IsForbidden reports whether err is a classified 403 from the directory.
func IsForbidden(err error) bool {
	return core.IsTextCode(err, core.ErrorAuthzForbidden)
}

func newCallError(message string, category goerrors.Category, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).WithTextCode(core.ErrorDirectoryCall)
	if category == goerrors.CategoryBadInput {
		err = err.WithCode(http.StatusBadRequest).WithTextCode(core.ErrorBadInput)
	}
	if category == goerrors.CategoryExternal {
		err = err.WithCode(http.StatusBadGateway)
	}
	if category == goerrors.CategoryInternal {
		err = err.WithCode(http.StatusInternalServerError).WithTextCode(core.ErrorInternal)
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func wrapCallError(cause error, message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.Wrap(cause, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.ErrorDirectoryCall)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
