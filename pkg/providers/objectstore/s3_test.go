package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/harunnryd/tutorcore/pkg/errorsx"
)

type fakeS3 struct {
	objects    map[string][]byte
	contentTyp map[string]string
	lastPrefix string
	listErr    error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, contentTyp: map[string]string{}}
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.lastPrefix = aws.ToString(in.Prefix)
	out := &s3.ListObjectsV2Output{}
	for k := range f.objects {
		if len(k) >= len(f.lastPrefix) && k[:len(f.lastPrefix)] == f.lastPrefix {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = body
	f.contentTyp[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestStoreRoundTrip(t *testing.T) {
	api := newFakeS3()
	store := &Store{api: api, bucket: "lectures"}
	ctx := context.Background()

	if err := store.Put(ctx, "audio-storage/a.mp3", []byte("abc"), "audio/mp3"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if api.contentTyp["audio-storage/a.mp3"] != "audio/mp3" {
		t.Fatalf("expected content type forwarded")
	}
	entries, err := store.List(ctx, "audio-storage/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "audio-storage/a.mp3" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	body, err := store.Get(ctx, "audio-storage/a.mp3")
	if err != nil || string(body) != "abc" {
		t.Fatalf("get: %q %v", body, err)
	}
	if err := store.Delete(ctx, "audio-storage/a.mp3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "audio-storage/a.mp3"); !errorsx.HasReason(err, errorsx.ReasonTransport) {
		t.Fatalf("expected transport reason for missing key, got %v", err)
	}
}

func TestStoreListErrorIsTransport(t *testing.T) {
	api := newFakeS3()
	api.listErr = errors.New("timeout")
	store := &Store{api: api, bucket: "lectures"}
	if _, err := store.List(context.Background(), "x"); !errorsx.HasReason(err, errorsx.ReasonTransport) {
		t.Fatalf("expected transport reason, got %v", err)
	}
}

func TestNewRequiresBucketAndCredentials(t *testing.T) {
	if _, err := New(Config{AccessKey: "a", SecretKey: "b"}); !errorsx.HasReason(err, errorsx.ReasonConfig) {
		t.Fatalf("expected config error for missing bucket, got %v", err)
	}
	if _, err := New(Config{Bucket: "b"}); !errorsx.HasReason(err, errorsx.ReasonConfig) {
		t.Fatalf("expected config error for missing credentials, got %v", err)
	}
	store, err := New(Config{Bucket: "b", AccessKey: "a", SecretKey: "s", Endpoint: "https://kr.object.ncloudstorage.com"})
	if err != nil || store.Bucket() != "b" {
		t.Fatalf("unexpected result %v %v", store, err)
	}
}
