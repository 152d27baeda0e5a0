package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrCoordinatorRequired = sterrors.New("streamgate: coordinator is required")
	ErrTransportRequired   = sterrors.New("streamgate: transport connection is required")
	ErrInvokerRequired     = sterrors.New("streamgate: transport invoker is required")
	ErrMethodRequired      = sterrors.New("streamgate: invoke method name is required")
	ErrEventNameRequired   = sterrors.New("streamgate: event name is required")
	ErrConnClosed          = sterrors.New("streamgate: connection is closed")
	ErrCoordinatorClosed   = sterrors.New("streamgate: coordinator has been shut down")
	ErrSessionIDRequired   = sterrors.New("streamgate: session id is required")
)

// RegistrationError reports a transport listener registration that failed
// during first-time subscription setup. A failed registration unwinds any
// listeners that were already established, so no partial state survives.
type RegistrationError struct {
	EventName string
	Err       error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("streamgate: registering listener for %q: %v", e.EventName, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }
