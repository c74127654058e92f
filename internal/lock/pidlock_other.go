//go:build !unix

package lock

import "errors"

// ErrLocked means another process already holds the lock.
var ErrLocked = errors.New("another instance is running")

var errUnsupported = errors.New("PID lock requires a unix platform")

// PIDLock is unavailable on this platform.
type PIDLock struct{ path string }

func AcquirePIDLock(path string) (*PIDLock, error) { return nil, errUnsupported }

func (l *PIDLock) Path() string { return l.path }

func (l *PIDLock) Release() error { return nil }
