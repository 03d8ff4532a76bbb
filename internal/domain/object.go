package domain

import (
	"bytes"
	"fmt"
	"io"
)

// StoreImages is the logical store holding as-uploaded originals.
const StoreImages = "images"

// StoreImagesCache is the logical store holding transformed derivatives.
const StoreImagesCache = "images-cache"

// ObjectKey is a path-like string identifier for stored objects,
// e.g. "uploads/1712345678901-0abc....webp".
type ObjectKey string

// String returns the string representation of the ObjectKey.
func (k ObjectKey) String() string {
	return string(k)
}

// ObjectMeta carries the metadata persisted alongside every stored object.
type ObjectMeta struct {
	// ContentType is the MIME type of the object body.
	ContentType string `json:"contentType"`
	// OriginalName is the client-supplied filename, if any.
	OriginalName string `json:"originalName,omitempty"`
}

// Object is a stored binary payload plus its metadata.
// Objects are immutable once written; re-uploads create new keys.
type Object struct {
	Key  ObjectKey
	Body []byte
	Meta ObjectMeta
}

// NewObject creates a new Object with the given key, content and metadata.
func NewObject(key ObjectKey, body []byte, meta ObjectMeta) *Object {
	return &Object{
		Key:  key,
		Body: body,
		Meta: meta,
	}
}

// Size returns the size of the object's content in bytes.
func (obj *Object) Size() int64 {
	return int64(len(obj.Body))
}

// Bytes returns the object's content as a byte slice.
func (obj *Object) Bytes() []byte {
	return obj.Body
}

// Read returns a reader for accessing the object's content.
func (obj *Object) Read() io.Reader {
	return bytes.NewReader(obj.Body)
}

// WriteTo writes the object's content to the given writer.
// Returns the number of bytes written and any error encountered.
func (obj *Object) WriteTo(writer io.Writer) (int64, error) {
	n, err := writer.Write(obj.Body)
	if err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}

	return int64(n), nil
}
