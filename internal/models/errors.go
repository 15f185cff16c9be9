package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain errors so handlers can map them to HTTP codes
// and the worker can decide on retry behavior.
type ErrorKind int

const (
	ErrKindInternal ErrorKind = iota
	ErrKindNotFound
	ErrKindValidation
	ErrKindConflict
	ErrKindUpstream
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindValidation:
		return "validation"
	case ErrKindConflict:
		return "conflict"
	case ErrKindUpstream:
		return "upstream_failure"
	default:
		return "internal"
	}
}

// DomainError is the error type crossing service boundaries.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewNotFound reports a missing entity by type and id.
func NewNotFound(entity, id string) *DomainError {
	return &DomainError{Kind: ErrKindNotFound, Message: fmt.Sprintf("%s not found: %s", entity, id)}
}

func NewValidation(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: ErrKindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewConflict(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: ErrKindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewUpstream(message string, err error) *DomainError {
	return &DomainError{Kind: ErrKindUpstream, Message: message, Err: err}
}

func NewInternal(message string, err error) *DomainError {
	return &DomainError{Kind: ErrKindInternal, Message: message, Err: err}
}

// KindOf returns the error's kind, defaulting to internal for foreign errors.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ErrKindInternal
}

func IsNotFound(err error) bool   { return KindOf(err) == ErrKindNotFound }
func IsValidation(err error) bool { return KindOf(err) == ErrKindValidation }
func IsConflict(err error) bool   { return KindOf(err) == ErrKindConflict }
func IsUpstream(err error) bool   { return KindOf(err) == ErrKindUpstream }
