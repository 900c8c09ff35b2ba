package storage

import "io"

// BlobStore holds media assets (audio, images, answer-sheet PDFs). The core
// only ever sees the opaque keys it returns, never raw bytes.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error
}
