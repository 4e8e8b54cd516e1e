// Package common defines sentinel errors shared by the store, the thumbnail
// cache, the services and the CLI. Callers should match them with errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Snapshot import errors.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")

	// Save-flow errors, raised before any storage call.
	ErrValidation = errors.New("validation error")

	// Bridge errors (companion process unreachable or misbehaving).
	ErrBridgeUnavailable = errors.New("bridge unavailable")

	// Thumbnail errors (media could not be decoded or rendered).
	ErrNoThumbnail = errors.New("no thumbnail available")
)
