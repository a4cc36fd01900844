package game

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

func TestStateKeySanitizesHandles(t *testing.T) {
	cases := map[string]string{
		"Ghost":        "desktop/ghost.json",
		"zero_cool-99": "desktop/zero_cool-99.json",
		"../etc":       "desktop/___etc.json",
		"   ":          "desktop/_.json",
	}
	for in, want := range cases {
		if got := stateKey(in); got != want {
			t.Fatalf("stateKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Load(ctx, stateKey("ghost"))
	require.ErrorIs(t, err, ErrStateNotFound)

	require.NoError(t, store.Save(ctx, stateKey("ghost"), []byte(`{"version":1}`)))
	require.NoError(t, store.Save(ctx, stateKey("ghost"), []byte(`{"version":2}`)))
	data, err := store.Load(ctx, stateKey("ghost"))
	require.NoError(t, err)
	require.JSONEq(t, `{"version":2}`, string(data))
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	buckets map[string]bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), buckets: make(map[string]bool)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.buckets[aws.ToString(in.Bucket)] {
		return nil, errors.New("no such bucket")
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.buckets[aws.ToString(in.Bucket)] {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[aws.ToString(in.Bucket)] = true
	return &s3.CreateBucketOutput{}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	client := newFakeS3()
	store := newS3Store(client, "desktops", "/terminality/")
	ctx := context.Background()
	require.NoError(t, store.ensureBucket(ctx))
	require.True(t, client.buckets["desktops"])

	_, err := store.Load(ctx, stateKey("ghost"))
	require.ErrorIs(t, err, ErrStateNotFound)

	require.NoError(t, store.Save(ctx, stateKey("ghost"), []byte(`{"version":1}`)))
	require.Contains(t, client.objects, "desktops/terminality/desktop/ghost.json")

	data, err := store.Load(ctx, stateKey("ghost"))
	require.NoError(t, err)
	require.JSONEq(t, `{"version":1}`, string(data))
}
