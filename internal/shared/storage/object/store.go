package object

import (
	"context"
	"io"
)

// Reference schemes persisted in analysis records' image_url.
const (
	SchemeLocal = "local"
	SchemeS3    = "s3"
)

// Object describes a stored image.
type Object struct {
	Key  string
	Ref  string
	Size int64
	MIME string
}

// Store saves and retrieves image bytes.
type Store interface {
	Put(ctx context.Context, userID, fileName string, r io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
