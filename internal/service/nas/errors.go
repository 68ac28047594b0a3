package nas

import "fmt"

// ShareError reports a failed share operation. Transient marks
// connectivity-class failures that were (or may be) worth retrying, as
// opposed to definitive responses.
type ShareError struct {
	Op        string
	Path      string
	Transient bool
	Err       error
}

func (e *ShareError) Error() string {
	return fmt.Sprintf("share %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ShareError) Unwrap() error { return e.Err }
