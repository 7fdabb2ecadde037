package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"hlsfn/internal/ports"
)

type fakeAPI struct {
	puts    []*s3.PutObjectInput
	objects map[string]string
}

func (f *fakeAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentType:   aws.String("video/mp4"),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func (f *fakeAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return &s3.DeleteObjectOutput{}, nil
}

func TestPutObject(t *testing.T) {
	api := &fakeAPI{}
	store := NewWithAPI(api, Config{Bucket: "hls", Region: "eu-west-1", KeyPrefix: "out/", PublicACL: true})

	out, err := store.PutObject(context.Background(), ports.PutObjectInput{
		Name:        "index.m3u8",
		ContentType: "application/vnd.apple.mpegurl",
		Reader:      strings.NewReader("#EXTM3U"),
		Size:        7,
		Public:      true,
	})
	if err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if !strings.HasPrefix(out.ObjectID, "out/") || !strings.HasSuffix(out.ObjectID, ".m3u8") {
		t.Errorf("unexpected key %s", out.ObjectID)
	}
	if len(api.puts) != 1 {
		t.Fatalf("expected 1 put, got %d", len(api.puts))
	}
	in := api.puts[0]
	if in.ACL != types.ObjectCannedACLPublicRead {
		t.Errorf("expected public-read ACL, got %q", in.ACL)
	}
	if aws.ToString(in.ContentType) != "application/vnd.apple.mpegurl" {
		t.Errorf("unexpected content type %q", aws.ToString(in.ContentType))
	}
	if in.Metadata["name"] != "index.m3u8" {
		t.Errorf("expected name metadata, got %v", in.Metadata)
	}
}

func TestGetObjectNotFound(t *testing.T) {
	store := NewWithAPI(&fakeAPI{objects: map[string]string{"abc123": "data"}}, Config{Bucket: "hls"})

	rc, _, size, err := store.GetObject(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	rc.Close()
	if size != 4 {
		t.Errorf("expected size 4, got %d", size)
	}

	if _, _, _, err := store.GetObject(context.Background(), "missing"); !errors.Is(err, ports.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"aws default", Config{Bucket: "hls", Region: "us-east-1"}, "https://hls.s3.us-east-1.amazonaws.com/k.ts"},
		{"custom endpoint", Config{Bucket: "hls", Endpoint: "http://minio:9000/"}, "http://minio:9000/hls/k.ts"},
		{"cdn", Config{Bucket: "hls", PublicBaseURL: "https://cdn.example.com/"}, "https://cdn.example.com/k.ts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewWithAPI(&fakeAPI{}, tt.cfg).PublicURL("k.ts"); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
