package entities

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("entity not found")
	ErrRedisTimeout  = errors.New("timeout waiting for Redis message")
	ErrRedisCanceled = errors.New("redis subscription canceled")
)

// FetchError is returned by a provider when its rates could not be retrieved
// or understood.
type FetchError struct {
	Provider string
	Err      error
}

func NewFetchError(provider string, err error) *FetchError {
	return &FetchError{Provider: provider, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s provider failed: %v", e.Provider, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ReconcileError wraps a store failure while writing a single pair.
type ReconcileError struct {
	Source string
	Target string
	Err    error
}

func (e *ReconcileError) Error() string {
	return e.Err.Error()
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}
