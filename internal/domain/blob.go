package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage. Used for account statement
// exports.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
