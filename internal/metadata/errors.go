package metadata

import "fmt"

// ResourceNotFoundError is returned when the remote API has no board with
// the requested id.
type ResourceNotFoundError struct {
	BoardID string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("board %q not found", e.BoardID)
}
