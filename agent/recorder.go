package agent

import (
	"context"
	"errors"
)

var (
	ErrInvalidTransition = errors.New("action not allowed in the current phase")
	ErrEmptyRecord       = errors.New("record has no user-supplied values")
	ErrIncompleteRecord  = errors.New("record is missing user-supplied values")
	ErrSessionNotFound   = errors.New("session not found")
	ErrAlreadyFinalized  = errors.New("system fields were already written")
)

// Recorder appends a finalized record to durable storage.
// On error the caller keeps the record so the same submission can be retried.
type Recorder interface {
	Record(ctx context.Context, sub *Submission) error
}

type RecorderFunc func(ctx context.Context, sub *Submission) error

func (f RecorderFunc) Record(ctx context.Context, sub *Submission) error {
	return f(ctx, sub)
}
