package slotring

import "github.com/pkg/errors"

var (
	ErrTimeout     = errors.New("timeout")
	ErrFull        = errors.New("ring is full")
	ErrEmpty       = errors.New("ring is empty")
	ErrClosed      = errors.New("ring is closed")
	ErrRoleClaimed = errors.New("role already claimed")
	// ErrCloseGrace is returned by Close when blocked waiters did not leave
	// within the grace period.
	ErrCloseGrace = errors.New("waiters still blocked after close grace")
)
