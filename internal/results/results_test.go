package results

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"lecture-quiz/internal/failure"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
)

func TestOutputKey(t *testing.T) {
	cases := []struct {
		prefix, key, want string
	}{
		{"", "lecture.mp4", "lecture.quiz.json"},
		{"quizzes/", "lectures/week1.mp4", "quizzes/lectures/week1.quiz.json"},
		{"", "dir.v2/talk", "dir.v2/talk.quiz.json"},
		{"out/", "a.b.MOV", "out/a.b.quiz.json"},
	}
	for _, tc := range cases {
		if got := OutputKey(tc.prefix, tc.key); got != tc.want {
			t.Errorf("OutputKey(%q, %q) = %q, want %q", tc.prefix, tc.key, got, tc.want)
		}
	}
}

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3WriterPut(t *testing.T) {
	api := &fakeS3{}
	w := &S3Writer{api: api}

	if err := w.Put(context.Background(), "bucket", "out.quiz.json", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if aws.ToString(api.in.Bucket) != "bucket" || aws.ToString(api.in.Key) != "out.quiz.json" {
		t.Fatalf("input = %+v", api.in)
	}
	if aws.ToString(api.in.ContentType) != "application/json" {
		t.Fatalf("content type = %q", aws.ToString(api.in.ContentType))
	}
	if !bytes.Equal(api.body, []byte(`{"a":1}`)) {
		t.Fatalf("body = %s", api.body)
	}
}

func TestS3WriterClassifiesErrors(t *testing.T) {
	w := &S3Writer{api: &fakeS3{err: &smithy.GenericAPIError{Code: "InternalError", Fault: smithy.FaultServer}}}
	if err := w.Put(context.Background(), "b", "k", nil); !failure.IsTransient(err) {
		t.Fatalf("server fault = %v, want transient", err)
	}

	w = &S3Writer{api: &fakeS3{err: &smithy.GenericAPIError{Code: "AccessDenied", Fault: smithy.FaultClient}}}
	if err := w.Put(context.Background(), "b", "k", nil); failure.KindOf(err) != failure.KindPermanent {
		t.Fatalf("access denied = %v, want permanent", err)
	}
}

type fakeMinIO struct {
	bucket, key string
	opts        minio.PutObjectOptions
	err         error
}

func (f *fakeMinIO) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.bucket, f.key, f.opts = bucket, key, opts
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func TestMinIOWriterUsesFixedBucket(t *testing.T) {
	fake := &fakeMinIO{}
	w := &MinIOWriter{client: fake, bucket: "results"}

	if err := w.Put(context.Background(), "uploads", "a.quiz.json", []byte("{}")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.bucket != "results" || fake.key != "a.quiz.json" {
		t.Fatalf("wrote to %s/%s", fake.bucket, fake.key)
	}
	if fake.opts.ContentType != "application/json" {
		t.Fatalf("content type = %q", fake.opts.ContentType)
	}
}

func TestMinIOWriterClassifiesErrors(t *testing.T) {
	cases := []struct {
		err  error
		want failure.Kind
	}{
		{minio.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}, failure.KindTransient},
		{minio.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError}, failure.KindTransient},
		{minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}, failure.KindPermanent},
		{errors.New("boom"), failure.KindPermanent},
	}
	for _, tc := range cases {
		w := &MinIOWriter{client: &fakeMinIO{err: tc.err}}
		err := w.Put(context.Background(), "b", "k", nil)
		if got := failure.KindOf(err); got != tc.want {
			t.Errorf("Put(%v) kind = %s, want %s", tc.err, got, tc.want)
		}
	}
}
