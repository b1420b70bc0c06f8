package catalog

import (
	"errors"
	"fmt"
)

// FetchFailedMessage is the user-facing text stored in State.LastError.
const FetchFailedMessage = "Failed to fetch books. Please try again."

// ErrNoViewableFormat matches any NoViewableFormatError via errors.Is.
var ErrNoViewableFormat = errors.New("no viewable version available")

// RemoteFetchError reports a transport failure or a non-2xx response.
type RemoteFetchError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteFetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// NoViewableFormatError is returned when an item exposes no HTML, PDF or
// plain-text rendition outside an archive.
type NoViewableFormatError struct {
	ItemID int
}

func (e *NoViewableFormatError) Error() string {
	return fmt.Sprintf("book %d: %s", e.ItemID, ErrNoViewableFormat)
}

func (e *NoViewableFormatError) Is(target error) bool {
	return target == ErrNoViewableFormat
}
