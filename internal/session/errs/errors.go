package errs

import (
	sterrors "errors"
	"fmt"
	"strings"
)

var (
	ErrNotConnected   = sterrors.New("voxwire: session is not connected")
	ErrSessionClosed  = sterrors.New("voxwire: session closed")
	ErrRequestExpired = sterrors.New("voxwire: request expired before a reply arrived")

	ErrCallEnded     = sterrors.New("voxwire: call already ended")
	ErrAlreadyOnHold = sterrors.New("voxwire: call is already on hold")
	ErrNotOnHold     = sterrors.New("voxwire: call is not on hold")
	ErrNotAnswered   = sterrors.New("voxwire: call has not been answered")

	ErrTransportRequired  = sterrors.New("voxwire: transport name is required")
	ErrCredentialRequired = sterrors.New("voxwire: credential token is required")
)

// ServerError carries the error payload of a FAIL reply. It is the only error
// kind that originates on the server side; everything else is local policy.
type ServerError struct {
	Action  string
	Payload []byte
}

func (e *ServerError) Error() string {
	if len(e.Payload) == 0 {
		return fmt.Sprintf("voxwire: server rejected %q", e.Action)
	}
	return fmt.Sprintf("voxwire: server rejected %q: %s", e.Action, e.Payload)
}

// ConfigValidationError lists every problem found in a Config so callers can
// fix them all at once instead of one round trip per field.
type ConfigValidationError struct {
	Problems []string
}

func (e *ConfigValidationError) Error() string {
	return "voxwire: invalid config: " + strings.Join(e.Problems, "; ")
}
