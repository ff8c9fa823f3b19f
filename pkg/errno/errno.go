package errno

import (
	"errors"
	"fmt"
	"net/http"
)

// Errno is a coded error kind. Sentinels are compared with errors.Is.
type Errno struct {
	Code       int
	HTTPStatus int
	Message    string
}

func (e *Errno) Error() string {
	return e.Message
}

// Detailer is implemented by errors that carry a user-facing description of
// the violated constraint.
type Detailer interface {
	Detail() string
}

type detailError struct {
	kind   *Errno
	detail string
}

func (e *detailError) Error() string {
	return e.kind.Message + ": " + e.detail
}

func (e *detailError) Unwrap() error {
	return e.kind
}

func (e *detailError) Detail() string {
	return e.Error()
}

// Wrapf attaches a formatted detail to an error kind.
func Wrapf(kind *Errno, format string, args ...any) error {
	return &detailError{kind: kind, detail: fmt.Sprintf(format, args...)}
}

// Storage marks err as a transient storage failure.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	var e *Errno
	if errors.As(err, &e) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// Decode maps an error to an HTTP status, a business code and a message.
func Decode(err error) (int, int, string) {
	if err == nil {
		return http.StatusOK, OK.Code, OK.Message
	}

	var kind *Errno
	if !errors.As(err, &kind) {
		return InternalServerError.HTTPStatus, InternalServerError.Code, InternalServerError.Message
	}

	msg := kind.Message
	var d Detailer
	if errors.As(err, &d) {
		msg = d.Detail()
	}
	return kind.HTTPStatus, kind.Code, msg
}

// Retryable reports whether the whole operation may be retried with the same
// idempotency key.
func Retryable(err error) bool {
	return errors.Is(err, ErrStorage)
}

// Common errors
var (
	OK                  = &Errno{Code: 0, HTTPStatus: http.StatusOK, Message: "success"}
	InternalServerError = &Errno{Code: 10001, HTTPStatus: http.StatusInternalServerError, Message: "internal server error"}
	ErrBind             = &Errno{Code: 10002, HTTPStatus: http.StatusBadRequest, Message: "invalid request body"}
	ErrUnauthorized     = &Errno{Code: 10003, HTTPStatus: http.StatusUnauthorized, Message: "unauthorized"}
	ErrForbidden        = &Errno{Code: 10004, HTTPStatus: http.StatusForbidden, Message: "forbidden"}
	ErrStorage          = &Errno{Code: 10005, HTTPStatus: http.StatusServiceUnavailable, Message: "storage failure"}
)

// Ledger errors
var (
	ErrValidation            = &Errno{Code: 20001, HTTPStatus: http.StatusBadRequest, Message: "validation failed"}
	ErrInvalidAmount         = &Errno{Code: 20002, HTTPStatus: http.StatusBadRequest, Message: "invalid amount"}
	ErrNotFound              = &Errno{Code: 20003, HTTPStatus: http.StatusNotFound, Message: "not found"}
	ErrInsufficientBalance   = &Errno{Code: 20004, HTTPStatus: http.StatusConflict, Message: "insufficient balance"}
	ErrCampaignNotActive     = &Errno{Code: 20005, HTTPStatus: http.StatusForbidden, Message: "campaign not active"}
	ErrCreatorEligibility    = &Errno{Code: 20006, HTTPStatus: http.StatusForbidden, Message: "caller not eligible"}
	ErrClaimExceedsAvailable = &Errno{Code: 20007, HTTPStatus: http.StatusConflict, Message: "claim exceeds available"}
	ErrDuplicateEntry        = &Errno{Code: 20008, HTTPStatus: http.StatusConflict, Message: "duplicate entry"}
	ErrInvalidTransition     = &Errno{Code: 20009, HTTPStatus: http.StatusConflict, Message: "invalid status transition"}
	ErrAccountDisabled       = &Errno{Code: 20010, HTTPStatus: http.StatusForbidden, Message: "account disabled"}
)
