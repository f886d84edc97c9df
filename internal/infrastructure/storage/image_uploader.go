package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/application/catalog"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// MaxImageSlots is the number of image fields a product form carries
const MaxImageSlots = 4

var (
	errImageTooLarge = shared.NewDomainError("INVALID_IMAGE", "Image exceeds the maximum upload size")
	errNotAnImage    = shared.NewDomainError("INVALID_IMAGE", "Only image uploads are accepted")
	errBadSlot       = shared.NewDomainError("INVALID_IMAGE", "Image slot must be between 1 and 4")
)

var _ catalog.ImageUploader = (*PooledImageUploader)(nil)

// PooledImageUploader pushes product images to object storage on a bounded
// goroutine pool, so concurrent product saves cannot open unbounded uploads
type PooledImageUploader struct {
	storage  catalog.ObjectStorageService
	pool     *ants.Pool
	maxBytes int64
	logger   *zap.Logger
}

// NewPooledImageUploader creates an uploader running at most workers uploads at
// once. maxBytes <= 0 disables the size check
func NewPooledImageUploader(storage catalog.ObjectStorageService, workers int, maxBytes int64, logger *zap.Logger) (*PooledImageUploader, error) {
	if workers <= 0 {
		workers = MaxImageSlots
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create upload pool: %w", err)
	}
	return &PooledImageUploader{storage: storage, pool: pool, maxBytes: maxBytes, logger: logger}, nil
}

// Upload validates every file, then stores them concurrently under prefix.
// If any upload fails the successful ones are deleted again
func (u *PooledImageUploader) Upload(ctx context.Context, prefix string, files []catalog.ImageFile) (map[int]string, error) {
	for _, f := range files {
		if err := u.validate(f); err != nil {
			return nil, err
		}
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		urls = make(map[int]string, len(files))
		errs []error
	)
	for _, f := range files {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			url, err := u.uploadOne(ctx, prefix, f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("image%d: %w", f.Slot, err))
				return
			}
			urls[f.Slot] = url
		}
		if err := u.pool.Submit(task); err != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("image%d: %w", f.Slot, err))
			mu.Unlock()
		}
	}
	wg.Wait()

	if len(errs) > 0 {
		uploaded := make([]string, 0, len(urls))
		for _, url := range urls {
			uploaded = append(uploaded, url)
		}
		u.Remove(context.WithoutCancel(ctx), uploaded)
		return nil, errors.Join(errs...)
	}
	return urls, nil
}

func (u *PooledImageUploader) uploadOne(ctx context.Context, prefix string, f catalog.ImageFile) (url string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("upload panicked: %v", r)
		}
	}()

	body, err := f.Open()
	if err != nil {
		return "", err
	}
	defer body.Close()

	key := path.Join(prefix, uuid.NewString()+extensionFor(f))
	if err := u.storage.PutObject(ctx, key, body, f.Size, f.ContentType); err != nil {
		return "", err
	}
	return u.storage.ObjectURL(key), nil
}

func (u *PooledImageUploader) validate(f catalog.ImageFile) error {
	if f.Slot < 1 || f.Slot > MaxImageSlots {
		return errBadSlot
	}
	if !strings.HasPrefix(f.ContentType, "image/") {
		return errNotAnImage
	}
	if u.maxBytes > 0 && f.Size > u.maxBytes {
		return errImageTooLarge
	}
	if f.Open == nil {
		return errors.New("image has no content")
	}
	return nil
}

// extensionFor keeps the client's extension, falling back to the content type
func extensionFor(f catalog.ImageFile) string {
	if ext := strings.ToLower(path.Ext(f.Filename)); ext != "" && len(ext) <= 5 {
		return ext
	}
	if exts, err := mime.ExtensionsByType(f.ContentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// Remove deletes images this storage issued. Foreign URLs are skipped
func (u *PooledImageUploader) Remove(ctx context.Context, urls []string) {
	for _, url := range urls {
		key, ok := u.storage.KeyFromURL(url)
		if !ok {
			u.logger.Debug("skipping image not owned by storage", zap.String("url", url))
			continue
		}
		if err := u.storage.DeleteObject(ctx, key); err != nil {
			u.logger.Warn("failed to delete image", zap.String("key", key), zap.Error(err))
		}
	}
}

// Close releases the worker pool
func (u *PooledImageUploader) Close() {
	u.pool.Release()
}
