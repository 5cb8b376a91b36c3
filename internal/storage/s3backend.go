package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Client is the subset of the AWS S3 SDK client S3Backend depends on,
// narrowed so tests can substitute a fake instead of talking to a real
// bucket.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Uploader is the subset of manager.Uploader used for multipart-aware
// puts, narrowed for the same reason as Client.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Backend implements Backend against an S3-compatible bucket (AWS S3,
// MinIO, or any endpoint the SDK's S3 client can be pointed at).
type S3Backend struct {
	client   Client
	uploader Uploader
	bucket   string
}

// NewS3Backend builds a backend against bucket. uploader handles Put via
// manager.Uploader so large AASX packages stream in multipart chunks
// instead of buffering the whole object in memory.
func NewS3Backend(client Client, uploader Uploader, bucket string) *S3Backend {
	return &S3Backend{client: client, uploader: uploader, bucket: bucket}
}

// Put uploads r under key via the multipart uploader, returning the
// resulting object's ETag.
func (b *S3Backend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	}
	out, err := b.uploader.Upload(ctx, input)
	if err != nil {
		return "", fmt.Errorf("storage: put %s/%s: %w", b.bucket, key, err)
	}
	if out.ETag != nil {
		return *out.ETag, nil
	}
	return "", nil
}

// Get retrieves the object stored under key.
func (b *S3Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("storage: object %s/%s not found: %w", b.bucket, key, err)
		}
		return nil, fmt.Errorf("storage: get %s/%s: %w", b.bucket, key, err)
	}
	return out.Body, nil
}

// Stat returns size, ETag, and content type for key.
func (b *S3Backend) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("storage: stat %s/%s: %w", b.bucket, key, err)
	}
	info := ObjectInfo{Key: key}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.ETag != nil {
		info.ETag = *out.ETag
	}
	if out.ContentType != nil {
		info.ContentType = *out.ContentType
	}
	return info, nil
}

// Delete removes the object stored under key. A missing key is not an
// error: S3's DeleteObject itself is idempotent in this respect.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s/%s: %w", b.bucket, key, err)
	}
	return nil
}
