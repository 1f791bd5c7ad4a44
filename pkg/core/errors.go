package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrStoreWrite = errors.New("store write failed")
	ErrNotFound   = errors.New("note not found")
	ErrGenerator  = errors.New("title generation failed")
	ErrBroadcast  = errors.New("broadcast failed")
	ErrWindowOpen = errors.New("window open failed")
	ErrReadOnly   = errors.New("store is in read-only mode")
	ErrClosed     = errors.New("closed")
)

// StoreError reports a failed persistence step. The operation that returned
// it did not change any state.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is matches ErrStoreWrite.
func (e *StoreError) Is(target error) bool { return target == ErrStoreWrite }

// NotFoundError reports a lookup or branch target that does not exist.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("note %s not found", e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// GeneratorError wraps a failed or timed out title/tag generation.
type GeneratorError struct {
	Generator string
	Err       error
}

func (e *GeneratorError) Error() string {
	return fmt.Sprintf("generator %s: %v", e.Generator, e.Err)
}

func (e *GeneratorError) Unwrap() error { return e.Err }

// Is matches ErrGenerator.
func (e *GeneratorError) Is(target error) bool { return target == ErrGenerator }

// BroadcastError wraps a failed bus emission.
type BroadcastError struct {
	Event string
	Err   error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("broadcast %s: %v", e.Event, e.Err)
}

func (e *BroadcastError) Unwrap() error { return e.Err }

// Is matches ErrBroadcast.
func (e *BroadcastError) Is(target error) bool { return target == ErrBroadcast }

// WindowError reports that an editor window could not be opened or focused.
type WindowError struct {
	Label string
	Err   error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("window %s: %v", e.Label, e.Err)
}

func (e *WindowError) Unwrap() error { return e.Err }

// Is matches ErrWindowOpen.
func (e *WindowError) Is(target error) bool { return target == ErrWindowOpen }
