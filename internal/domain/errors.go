package domain

import "errors"

var (
	// ErrObjectNotFound is returned when no object exists under a key.
	ErrObjectNotFound = errors.New("object not found")

	// ErrNoObjectKey is returned when a request carries an empty object key.
	ErrNoObjectKey = errors.New("no object key")

	// ErrUploadTypeNotSupported is returned when an upload's MIME type is
	// not in the image/video allow-list.
	ErrUploadTypeNotSupported = errors.New("upload type not supported")

	// ErrUploadTooLarge is returned when an upload exceeds the size ceiling
	// for its media class.
	ErrUploadTooLarge = errors.New("upload too large")
)
