package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies ledger failures so callers can map them to responses.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
	KindConflict           Kind = "conflict"
	KindAutomationDegraded Kind = "automation_degraded"
	KindInconsistency      Kind = "inconsistency"
	KindInternal           Kind = "internal"
)

type Error struct {
	Kind   Kind
	Entity string
	ID     int64
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Entity != "" {
		if e.ID != 0 {
			msg = fmt.Sprintf("%s %d: %s", e.Entity, e.ID, msg)
		} else {
			msg = fmt.Sprintf("%s: %s", e.Entity, msg)
		}
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Entity == "" && t.Msg == ""
}

var (
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrInconsistency = &Error{Kind: KindInconsistency}
)

func NotFound(entity string, id int64) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Msg: "not found"}
}

func Validation(entity, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Entity: entity, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(entity, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Entity: entity, Msg: fmt.Sprintf(format, args...)}
}

func AutomationDegraded(envelopeID int64, err error) *Error {
	return &Error{Kind: KindAutomationDegraded, Entity: "envelope", ID: envelopeID, Msg: "credit coverage deferred", Err: err}
}

func Inconsistency(entity, format string, args ...any) *Error {
	return &Error{Kind: KindInconsistency, Entity: entity, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
