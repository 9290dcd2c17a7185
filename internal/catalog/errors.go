package catalog

import (
	"errors"
	"fmt"
)

// ErrListing matches every listing failure with errors.Is.
var ErrListing = errors.New("catalog listing failed")

// ListingError is a transport error or non-success status while listing a prefix.
type ListingError struct {
	Prefix     string
	Marker     string
	StatusCode int // 0 for transport errors
	Err        error
}

func (e *ListingError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("list %s (marker %q): status %d", e.Prefix, e.Marker, e.StatusCode)
	}
	return fmt.Sprintf("list %s (marker %q): %v", e.Prefix, e.Marker, e.Err)
}

func (e *ListingError) Unwrap() error { return e.Err }

func (e *ListingError) Is(target error) bool { return target == ErrListing }

// DownloadError is a non-success status for an archive download.
type DownloadError struct {
	URL        string
	StatusCode int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: status %d", e.URL, e.StatusCode)
}
