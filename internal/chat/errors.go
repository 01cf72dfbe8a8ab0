package chat

import (
	"errors"
	"fmt"
)

// Store-level sentinels. Stores return ErrNotFound for absent or inaccessible
// conversations and wrap infrastructure failures with ErrStoreUnavailable.
var (
	ErrNotFound         = errors.New("chat: conversation not found")
	ErrStoreUnavailable = errors.New("chat: store unavailable")
	ErrPairConflict     = errors.New("chat: conversation pair already exists")
)

// Kind is the stable error category surfaced to callers
type Kind string

const (
	KindValidation       Kind = "validation"
	KindUnauthenticated  Kind = "unauthenticated"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindStoreUnavailable Kind = "store_unavailable"
	KindInternal         Kind = "internal"
)

// Error is returned by every Service operation that fails
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError reports malformed input
func ValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NotFoundError is used both for absent conversations and for conversations
// the principal does not participate in.
func NotFoundError() *Error {
	return &Error{Kind: KindNotFound, Message: "Chat not found!", Err: ErrNotFound}
}

// KindOf returns the Kind carried by err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// fromStore converts a store failure into a typed service error.
func fromStore(op string, err error) *Error {
	switch {
	case errors.Is(err, ErrNotFound):
		return NotFoundError()
	case errors.Is(err, ErrPairConflict):
		return &Error{Kind: KindConflict, Message: "conversation is being created concurrently, retry", Err: err}
	case errors.Is(err, ErrStoreUnavailable):
		return &Error{Kind: KindStoreUnavailable, Message: op + " failed, try again later", Err: err}
	default:
		return &Error{Kind: KindInternal, Message: op + " failed", Err: err}
	}
}
