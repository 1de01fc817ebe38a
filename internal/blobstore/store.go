// Package blobstore is the key/value view of object storage used to persist
// STAC order records.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// Store is the narrow interface the order pipeline writes through.
type Store interface {
	// Put writes body under key and reports whether the key already existed.
	Put(ctx context.Context, bucket, key string, body []byte) (bool, error)
	Delete(ctx context.Context, bucket, key string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

// ErrNotFound is returned by Delete when the key is absent.
var ErrNotFound = errors.New("blob not found")

// Opener opens the bucket with the given name.
type Opener func(ctx context.Context, bucket string) (*blob.Bucket, error)

// URLOpener opens buckets through gocloud URLs built from template, where
// "{bucket}" is replaced by the bucket name (e.g. "s3://{bucket}").
func URLOpener(template string) Opener {
	return func(ctx context.Context, bucket string) (*blob.Bucket, error) {
		return blob.OpenBucket(ctx, strings.ReplaceAll(template, "{bucket}", bucket))
	}
}

// Buckets implements Store on top of gocloud buckets, opening each bucket
// once and reusing it.
type Buckets struct {
	open   Opener
	logger *slog.Logger

	mu      sync.Mutex
	buckets map[string]*blob.Bucket
}

func New(open Opener, logger *slog.Logger) *Buckets {
	return &Buckets{
		open:    open,
		logger:  logger,
		buckets: make(map[string]*blob.Bucket),
	}
}

func (b *Buckets) bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bkt, ok := b.buckets[name]; ok {
		return bkt, nil
	}
	bkt, err := b.open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", name, err)
	}
	b.buckets[name] = bkt
	return bkt, nil
}

func (b *Buckets) Put(ctx context.Context, bucket, key string, body []byte) (bool, error) {
	bkt, err := b.bucket(ctx, bucket)
	if err != nil {
		return false, err
	}
	existed, err := bkt.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check %s/%s: %w", bucket, key, err)
	}
	opts := &blob.WriterOptions{ContentType: "application/json"}
	if err := bkt.WriteAll(ctx, key, body, opts); err != nil {
		return existed, fmt.Errorf("write %s/%s: %w", bucket, key, err)
	}
	b.logger.Debug("blob written", "bucket", bucket, "key", key, "existed", existed)
	return existed, nil
}

func (b *Buckets) Delete(ctx context.Context, bucket, key string) error {
	bkt, err := b.bucket(ctx, bucket)
	if err != nil {
		return err
	}
	if err := bkt.Delete(ctx, key); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	b.logger.Debug("blob deleted", "bucket", bucket, "key", key)
	return nil
}

func (b *Buckets) Exists(ctx context.Context, bucket, key string) (bool, error) {
	bkt, err := b.bucket(ctx, bucket)
	if err != nil {
		return false, err
	}
	ok, err := bkt.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check %s/%s: %w", bucket, key, err)
	}
	return ok, nil
}

// ReadAll returns the stored body for key.
func (b *Buckets) ReadAll(ctx context.Context, bucket, key string) ([]byte, error) {
	bkt, err := b.bucket(ctx, bucket)
	if err != nil {
		return nil, err
	}
	data, err := bkt.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Close releases every opened bucket.
func (b *Buckets) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for name, bkt := range b.buckets {
		if err := bkt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bucket %s: %w", name, err))
		}
		delete(b.buckets, name)
	}
	return errors.Join(errs...)
}
