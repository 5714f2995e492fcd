// Package apperr defines the classified errors that drive fallback and retry
// decisions across generation, persistence and export.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindTransport Kind = "transport"
	KindAPI       Kind = "api"
	KindParse     Kind = "parse"
	KindNotFound  Kind = "not_found"
	KindConflict  Kind = "conflict"
	KindRateLimit Kind = "rate_limit"
	KindInvalid   Kind = "invalid"
)

// Error is an error tagged with a stable Kind. Status is set for KindAPI.
type Error struct {
	Kind   Kind
	Status int
	Op     string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	switch e.Kind {
	case KindTimeout:
		msg = "timed out"
	case KindAPI:
		msg = fmt.Sprintf("api error (status %d)", e.Status)
	case KindTransport:
		msg = "transport error"
	case KindParse:
		msg = "parse error"
	case KindNotFound:
		msg = "not found"
	case KindRateLimit:
		msg = "rate limited"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Timeout(op string, err error) *Error   { return New(KindTimeout, op, err) }
func Transport(op string, err error) *Error { return New(KindTransport, op, err) }
func Parse(op string, err error) *Error     { return New(KindParse, op, err) }
func NotFound(op string, err error) *Error  { return New(KindNotFound, op, err) }
func Invalid(op string, err error) *Error   { return New(KindInvalid, op, err) }

func API(op string, status int, err error) *Error {
	return &Error{Kind: KindAPI, Op: op, Status: status, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf returns the upstream HTTP status carried by an api error, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// UserMessage renders err with wording that depends on its kind.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindTimeout:
		return "Screen generation timed out. The AI service is slow right now, please try again."
	case KindTransport:
		return "Could not reach the AI service. Check your network connection and try again."
	case KindAPI:
		return fmt.Sprintf("The AI service returned an error (status %d). Please try again later.", StatusOf(err))
	case KindParse:
		return "The AI service returned a response that could not be read."
	case KindNotFound:
		return "The requested item was not found."
	case KindConflict:
		return "The item was changed by someone else. Reload and try again."
	case KindRateLimit:
		return "The service is rate limiting requests. Please wait and try again."
	case KindInvalid:
		var e *Error
		if errors.As(err, &e) && e.Err != nil {
			return e.Err.Error()
		}
		return err.Error()
	}
	return "Unexpected error: " + err.Error()
}

// HTTPStatus maps a classified error to the status our API answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindTransport, KindAPI, KindParse:
		return http.StatusBadGateway
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindInvalid:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
