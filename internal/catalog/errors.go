package catalog

import "fmt"

// FetchError is the single error kind surfaced for failed catalog requests:
// transport failures (Status 0), non-2xx responses, and malformed bodies.
// No retry happens inside this package.
type FetchError struct {
	Status  int
	Message string
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("catalog fetch failed: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("catalog fetch failed: %s", e.Message)
}
