package blobstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	"example.com/resource-catalogue/internal/logging"
)

func newMemStore(t *testing.T) (*Buckets, *int) {
	t.Helper()
	opened := 0
	s := New(func(context.Context, string) (*blob.Bucket, error) {
		opened++
		return memblob.OpenBucket(nil), nil
	}, logging.Discard())
	t.Cleanup(func() { _ = s.Close() })
	return s, &opened
}

func TestPut_ReportsPreviouslyExisted(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemStore(t)

	existed, err := s.Put(ctx, "bucket", "ws/item.json", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.False(t, existed)

	existed, err = s.Put(ctx, "bucket", "ws/item.json", []byte(`{"a":2}`))
	require.NoError(t, err)
	assert.True(t, existed)

	data, err := s.ReadAll(ctx, "bucket", "ws/item.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(data))
}

func TestDeleteAndExists(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemStore(t)

	_, err := s.Put(ctx, "bucket", "key", []byte(`{}`))
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "bucket", "key")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "bucket", "key"))

	ok, err = s.Exists(ctx, "bucket", "key")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.Delete(ctx, "bucket", "key"), ErrNotFound)
	_, err = s.ReadAll(ctx, "bucket", "key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBucketsAreOpenedOnce(t *testing.T) {
	ctx := context.Background()
	s, opened := newMemStore(t)

	_, err := s.Put(ctx, "a", "k1", []byte(`{}`))
	require.NoError(t, err)
	_, err = s.Put(ctx, "a", "k2", []byte(`{}`))
	require.NoError(t, err)
	_, err = s.Exists(ctx, "b", "k1")
	require.NoError(t, err)

	assert.Equal(t, 2, *opened)
}

func TestOpenFailureIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	s := New(func(context.Context, string) (*blob.Bucket, error) { return nil, boom }, logging.Discard())

	_, err := s.Put(context.Background(), "x", "k", nil)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "open bucket x")
}

func TestURLOpener_MemScheme(t *testing.T) {
	bkt, err := URLOpener("mem://{bucket}")(context.Background(), "ignored")
	require.NoError(t, err)
	require.NoError(t, bkt.Close())
}
