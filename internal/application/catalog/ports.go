package catalog

import (
	"context"
	"io"
)

// ObjectStorageService stores product media
type ObjectStorageService interface {
	// PutObject stores body under key
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

	// DeleteObject removes an object. Missing objects are not an error
	DeleteObject(ctx context.Context, key string) error

	// ObjectURL returns the public URL the storefront loads the object from
	ObjectURL(key string) string

	// KeyFromURL reverses ObjectURL. ok is false for URLs this storage did not issue
	KeyFromURL(url string) (key string, ok bool)
}

// ImageFile is one uploaded image form field
type ImageFile struct {
	// Slot is the 1-based position (image1..image4)
	Slot        int
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// ImageUploader pushes product images to object storage
type ImageUploader interface {
	// Upload stores every file under prefix and returns the public URL per slot.
	// When any upload fails the ones that succeeded are removed before returning
	Upload(ctx context.Context, prefix string, files []ImageFile) (map[int]string, error)

	// Remove deletes previously uploaded images. Failures are logged, not returned
	Remove(ctx context.Context, urls []string)
}
