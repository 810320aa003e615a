package apim

import "fmt"

// RequestError is the fatal outcome of a non-2xx backup response. It
// carries the HTTP status and whatever diagnostic body the management
// plane returned.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backup request failed: http status %d", e.StatusCode)
	}
	return fmt.Sprintf("backup request failed: http status %d: %s", e.StatusCode, e.Body)
}

// ConflictError specializes RequestError for HTTP 409: the management
// plane serializes backup/restore operations per service and rejects a
// request while one is still running.
type ConflictError struct {
	RequestError
	ServiceName string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"backup already in progress for service %q (http status 409): the management plane runs one backup or restore at a time per service; check the activity log of the resource and re-run once the current operation completes",
		e.ServiceName,
	)
}
