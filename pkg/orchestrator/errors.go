package orchestrator

import (
	"errors"

	"github.com/openprobe/deepsearch/pkg/models"
)

// ErrNotRunning reports a cancel request for a session that exists but is
// not currently executing.
var ErrNotRunning = errors.New("search is not running")

// RunError is a classified service failure. Kind travels to clients as the
// wire error_code; the API layer maps it to an HTTP status.
type RunError struct {
	Kind models.ErrorKind
	Msg  string
	err  error
}

func (e *RunError) Error() string {
	return e.Msg
}

func (e *RunError) Unwrap() error {
	return e.err
}
