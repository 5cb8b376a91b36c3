package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	data        []byte
	etag        string
	contentType string
}

type fakeClient struct {
	objects map[string]fakeObject
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string]fakeObject)}
}

func (f *fakeClient) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	ct := ""
	if params.ContentType != nil {
		ct = *params.ContentType
	}
	f.objects[*params.Key] = fakeObject{data: data, etag: `"fake-etag"`, contentType: ct}
	return &s3.PutObjectOutput{ETag: aws.String(`"fake-etag"`)}, nil
}

func (f *fakeClient) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := f.objects[*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (f *fakeClient) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	obj, ok := f.objects[*params.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	size := int64(len(obj.data))
	return &s3.HeadObjectOutput{
		ContentLength: &size,
		ETag:          aws.String(obj.etag),
		ContentType:   aws.String(obj.contentType),
	}, nil
}

func (f *fakeClient) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

type fakeUploader struct {
	client *fakeClient
}

func (u *fakeUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	out, err := u.client.PutObject(ctx, input)
	if err != nil {
		return nil, err
	}
	return &manager.UploadOutput{ETag: out.ETag}, nil
}

func newTestBackend() (*S3Backend, *fakeClient) {
	client := newFakeClient()
	return NewS3Backend(client, &fakeUploader{client: client}, "titan-aasx"), client
}

func TestS3Backend_PutGetRoundTrip(t *testing.T) {
	backend, _ := newTestBackend()
	ctx := context.Background()

	data := []byte("aasx package bytes")
	etag, err := backend.Put(ctx, "packages/pkg-1", bytes.NewReader(data), int64(len(data)), "application/asset-administration-shell-package")
	require.NoError(t, err)
	assert.Equal(t, `"fake-etag"`, etag)

	rc, err := backend.Get(ctx, "packages/pkg-1")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestS3Backend_GetMissingKeyErrors(t *testing.T) {
	backend, _ := newTestBackend()
	_, err := backend.Get(context.Background(), "missing")
	assert.Error(t, err)
}

func TestS3Backend_Stat(t *testing.T) {
	backend, _ := newTestBackend()
	ctx := context.Background()
	data := []byte("blob content")
	_, err := backend.Put(ctx, "blobs/sm-1/File", bytes.NewReader(data), int64(len(data)), "image/png")
	require.NoError(t, err)

	info, err := backend.Stat(ctx, "blobs/sm-1/File")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size)
	assert.Equal(t, "image/png", info.ContentType)
}

func TestS3Backend_Delete(t *testing.T) {
	backend, client := newTestBackend()
	ctx := context.Background()
	data := []byte("x")
	_, err := backend.Put(ctx, "k", bytes.NewReader(data), int64(len(data)), "text/plain")
	require.NoError(t, err)

	require.NoError(t, backend.Delete(ctx, "k"))
	_, ok := client.objects["k"]
	assert.False(t, ok)
}
