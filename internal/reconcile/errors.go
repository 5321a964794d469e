package reconcile

import (
	"errors"
	"fmt"
	"strings"
)

// MismatchError reports response rows that do not line up one-to-one with
// the submitted items
type MismatchError struct {
	Missing   []string
	Duplicate []string
	Unknown   []string
}

func (e *MismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing tags [%s]", strings.Join(e.Missing, ",")))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, fmt.Sprintf("duplicate tags [%s]", strings.Join(e.Duplicate, ",")))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, fmt.Sprintf("unknown tags [%s]", strings.Join(e.Unknown, ",")))
	}
	return "response does not match request: " + strings.Join(parts, "; ")
}

func (e *MismatchError) empty() bool {
	return len(e.Missing) == 0 && len(e.Duplicate) == 0 && len(e.Unknown) == 0
}

// IsMismatch reports whether err is a *MismatchError
func IsMismatch(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}
