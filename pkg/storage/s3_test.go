package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// fakeS3 is an in-memory bucket. Listings are paged two keys at a time.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	pages   int
	fail    error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		// HeadObject has no body, so S3 answers with a bare code.
		return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.pages++
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	end := min(start+2, len(keys))
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func TestS3RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := NewS3(fake, "noise-map-models", "/prod/")

	if _, err := s.Get(ctx, "urban_noise_classifier.nmb"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}
	if ok, err := s.Exists(ctx, "urban_noise_classifier.nmb"); ok || err != nil {
		t.Fatalf("Exists missing = %v, %v", ok, err)
	}

	if err := s.Put(ctx, "urban_noise_classifier.nmb", []byte("NOISEMAP")); err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.objects["prod/urban_noise_classifier.nmb"]; !ok {
		t.Fatalf("object keys = %v, want prod/ prefix", fake.objects)
	}
	if got := fake.types["prod/urban_noise_classifier.nmb"]; got != "application/vnd.noisemap.bundle" {
		t.Errorf("content type = %q", got)
	}
	got, err := s.Get(ctx, "urban_noise_classifier.nmb")
	if err != nil || string(got) != "NOISEMAP" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if ok, err := s.Exists(ctx, "urban_noise_classifier.nmb"); !ok || err != nil {
		t.Errorf("Exists = %v, %v", ok, err)
	}
	if err := s.Delete(ctx, "urban_noise_classifier.nmb"); err != nil {
		t.Fatal(err)
	}
	if len(fake.objects) != 0 {
		t.Errorf("objects after Delete = %v", fake.objects)
	}
}

func TestS3ListPages(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := NewS3(fake, "bucket", "")
	want := []string{
		"uploads/20261017/a.wav",
		"uploads/20261017/b.wav",
		"uploads/20261018/c.mp3",
		"uploads/20261018/d.wav",
		"uploads/20261018/e.wav",
	}
	for _, k := range append(slices.Clone(want), "urban_noise_classifier.nmb") {
		if err := s.Put(ctx, k, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.List(ctx, "uploads/")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, want) {
		t.Errorf("List = %v, want %v", got, want)
	}
	if fake.pages != 3 {
		t.Errorf("pages = %d, want 3", fake.pages)
	}
}

func TestS3Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := NewS3(fake, "bucket", "")

	if err := s.Put(ctx, "../x", nil); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Put(../x) = %v, want ErrInvalidKey", err)
	}

	denied := &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	fake.fail = denied
	if _, err := s.Get(ctx, "a.wav"); !errors.Is(err, denied) || errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want AccessDenied", err)
	}
	if _, err := s.Exists(ctx, "a.wav"); !errors.Is(err, denied) {
		t.Errorf("Exists = %v, want AccessDenied", err)
	}
	if err := s.Put(ctx, "a.wav", []byte("x")); !errors.Is(err, denied) {
		t.Errorf("Put = %v, want AccessDenied", err)
	}
	if _, err := s.List(ctx, ""); !errors.Is(err, denied) {
		t.Errorf("List = %v, want AccessDenied", err)
	}
}

func TestNotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&types.NoSuchKey{}, true},
		{&types.NotFound{}, true},
		{&smithy.GenericAPIError{Code: "NotFound"}, true},
		{&smithy.GenericAPIError{Code: "NoSuchBucket"}, false},
		{errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := notFound(tt.err); got != tt.want {
			t.Errorf("notFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
