package mailbox

import (
	"errors"
	"fmt"
)

// Error wraps any connect/search/fetch/logout failure. The orchestrator
// aborts the current cycle on this error kind and retries on the next
// interval.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mailbox %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsMailboxError reports whether err is (or wraps) a mailbox failure.
func IsMailboxError(err error) bool {
	var me *Error
	return errors.As(err, &me)
}
