package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when the writer lock cannot be acquired before the
// context is done.
var ErrLocked = errors.New("master store is locked by another writer")

// fileLock is an advisory OS lock on a file next to the master. The kernel
// drops it when the holding process exits, so a crashed writer never leaves
// the store locked. The lock file itself is left in place.
type fileLock struct {
	path  string
	retry time.Duration
}

func (l fileLock) acquire(ctx context.Context) (release func(), err error) {
	fl := flock.New(l.path)
	locked, err := fl.TryLockContext(ctx, l.retry)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrLocked, ctxErr)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", l.path, err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() { _ = fl.Unlock() }, nil
}
