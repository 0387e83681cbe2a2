package extract

import "errors"

var (
	// ErrUnsupportedType indicates no processor is registered for an extension.
	ErrUnsupportedType = errors.New("unsupported source type")

	// ErrEmptyContent indicates the raw content held no extractable text.
	ErrEmptyContent = errors.New("no extractable content")

	// ErrPageFailed indicates one page of a multi-page extraction failed.
	ErrPageFailed = errors.New("page extraction failed")

	// ErrCommandFailed indicates an external extraction tool failed.
	ErrCommandFailed = errors.New("extraction command failed")

	// ErrInvalidLink indicates a link source whose content is not an http(s) URL.
	ErrInvalidLink = errors.New("invalid link")

	// ErrFetchFailed indicates a web page could not be retrieved.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrNoTranscript indicates a video link with no transcript available.
	ErrNoTranscript = errors.New("no transcript available")

	// ErrMalformedDocument indicates an office document that could not be read.
	ErrMalformedDocument = errors.New("malformed document")
)
