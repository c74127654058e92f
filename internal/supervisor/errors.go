package supervisor

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNotFound is returned when no builder and no script exist for a name.
	ErrNotFound = errors.New("builder not found")

	// ErrClosed is returned once the registry has been torn down.
	ErrClosed = errors.New("registry closed")

	// errRetired marks a Builder whose generation was terminated or failed to
	// respawn. The registry treats a retired Builder as absent.
	errRetired = errors.New("builder retired")
)

// SpawnError reports a failure to start a builder script.
type SpawnError struct {
	Name string
	Op   string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %s: %v", e.Name, e.Op, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Is reports a missing script as ErrNotFound.
func (e *SpawnError) Is(target error) bool {
	return target == ErrNotFound && errors.Is(e.Err, fs.ErrNotExist)
}
