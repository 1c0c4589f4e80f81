package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the part of *s3.Client that S3 calls.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 keeps objects in a bucket, optionally below a key prefix. It works
// with any S3 compatible service reachable through the client.
type S3 struct {
	client S3API
	bucket string
	// root is "" or the prefix with exactly one trailing slash.
	root string
}

// NewS3 returns an S3 store. prefix may be empty.
func NewS3(client S3API, bucket, prefix string) *S3 {
	root := strings.Trim(prefix, "/")
	if root != "" {
		root += "/"
	}
	return &S3{client: client, bucket: bucket, root: root}
}

func (s *S3) object(key string) (*string, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	return aws.String(s.root + key), nil
}

func (s *S3) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.object(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: obj})
	if err != nil {
		if notFound(err) {
			err = ErrNotFound
		}
		return nil, opError("get", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, opError("read", key, err)
	}
	return data, nil
}

func (s *S3) Put(ctx context.Context, key string, data []byte) error {
	obj, err := s.object(key)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           obj,
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentType(key, data)),
	})
	if err != nil {
		return opError("put", key, err)
	}
	return nil
}

// Delete relies on DeleteObject succeeding for missing keys.
func (s *S3) Delete(ctx context.Context, key string) error {
	obj, err := s.object(key)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: obj}); err != nil {
		return opError("delete", key, err)
	}
	return nil
}

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	obj, err := s.object(key)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: obj})
	switch {
	case err == nil:
		return true, nil
	case notFound(err):
		return false, nil
	default:
		return false, opError("head", key, err)
	}
}

func (s *S3) List(ctx context.Context, prefix string) ([]string, error) {
	if err := validPrefix(prefix); err != nil {
		return nil, err
	}
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: aws.String(s.root + prefix),
	})
	var keys []string
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, opError("list", prefix, err)
		}
		for _, obj := range page.Contents {
			if key, ok := strings.CutPrefix(aws.ToString(obj.Key), s.root); ok && key != "" {
				keys = append(keys, key)
			}
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// notFound matches both the typed errors of GetObject and the bare 404
// code HeadObject returns.
func notFound(err error) bool {
	var (
		noKey *types.NoSuchKey
		nf    *types.NotFound
		api   smithy.APIError
	)
	if errors.As(err, &noKey) || errors.As(err, &nf) {
		return true
	}
	if errors.As(err, &api) {
		code := api.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

var _ BlobStore = (*S3)(nil)
