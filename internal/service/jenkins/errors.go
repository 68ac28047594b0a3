package jenkins

import "fmt"

// APIError reports a failed Jenkins API call. Status is zero when the request
// never produced an HTTP response.
type APIError struct {
	Op     string
	Status int
	Err    error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("jenkins %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("jenkins %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }
