package standup

import (
	"errors"
	"fmt"
)

var (
	ErrTransport         = errors.New("messaging transport failed")
	ErrStaleReference    = errors.New("message reference is stale or unknown")
	ErrUnknownMember     = errors.New("member is not part of this run")
	ErrAlreadyTerminal   = errors.New("conversation already finished")
	ErrMalformedEvent    = errors.New("malformed interaction event")
	ErrCorruptSnapshot   = errors.New("corrupt conversation snapshot")
	ErrInvalidDefinition = errors.New("invalid standup definition")
	ErrRunNotIdle        = errors.New("run already started")
	ErrRunNotActive      = errors.New("run is not active")
	ErrUnknownRun        = errors.New("unknown standup run")
	ErrAborted           = errors.New("run aborted")
)

// TransportError reports a MessagingGateway call that still failed after the
// retry budget was spent.
type TransportError struct {
	Op       string
	MemberID string
	Err      error
}

func (e *TransportError) Error() string {
	if e.MemberID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s for member %s: %v", e.Op, e.MemberID, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// Ignorable reports whether err is one of the outcomes that at-least-once
// delivery and restarts produce on their own. These are acknowledged and dropped.
func Ignorable(err error) bool {
	return errors.Is(err, ErrStaleReference) ||
		errors.Is(err, ErrUnknownMember) ||
		errors.Is(err, ErrAlreadyTerminal) ||
		errors.Is(err, ErrMalformedEvent) ||
		errors.Is(err, ErrUnknownRun) ||
		errors.Is(err, ErrAborted)
}
