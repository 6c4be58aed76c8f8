package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"finsight/internal/core"
	"finsight/internal/ingest"
	"finsight/internal/log"
	"finsight/internal/services"
)

// HeaderOwner names the caller. Authentication happens upstream; the API
// trusts this header.
const HeaderOwner = "X-User-ID"

const maxOwnerLength = 128

// ownerHandler is a handler that runs on behalf of an identified owner.
type ownerHandler func(w http.ResponseWriter, r *http.Request, owner string)

// withOwner rejects requests that carry no owner and scopes the request
// logger to the owner.
func withOwner(next ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := sanitizeInput(r.Header.Get(HeaderOwner))
		if owner == "" {
			UnauthorizedError("Not authorized: missing " + HeaderOwner + " header.").Write(w)
			return
		}
		if len(owner) > maxOwnerLength {
			BadRequestError(HeaderOwner + " header is too long.").Write(w)
			return
		}
		logger := log.FromContext(r.Context()).With(log.FieldOwner, owner)
		next(w, r.WithContext(log.NewContext(r.Context(), logger)), owner)
	}
}

// writeError maps a service error to a response. action completes the
// generic 500 message, e.g. "creating transaction".
func writeError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var (
		batchErr *core.BatchParseError
		notFound *core.NotFoundError
		tooLarge *http.MaxBytesError
		external *core.ExternalServiceError
	)

	switch {
	case errors.As(err, &batchErr):
		BadRequestError(batchErr.Error()).Write(w)
	case errors.Is(err, ingest.ErrNoValidRows):
		BadRequestError("No valid transactions found in CSV file.").Write(w)
	case errors.Is(err, core.ErrValidation):
		BadRequestError(validationMessage(err)).Write(w)
	case errors.As(err, &notFound):
		NotFoundError(capitalize(notFound.Resource) + " not found.").Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("Not found.").Write(w)
	case errors.As(err, &tooLarge):
		RequestTooLargeError(fmt.Sprintf("Request body exceeds %d bytes.", tooLarge.Limit)).Write(w)
	case errors.Is(err, services.ErrQueueUnavailable):
		ServiceUnavailableError("Background analysis is not available.").Write(w)
	case errors.As(err, &external):
		log.FromContext(r.Context()).WarnContext(r.Context(), "Upstream service failed",
			log.FieldOperation, external.Op,
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeExternal)
		ServiceUnavailableError("Service temporarily unavailable. Please try again later.").Write(w)
	default:
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, action, nil)
		InternalServerError("Error " + action + ".").Write(w)
	}
}

func validationMessage(err error) string {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return err.Error()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
