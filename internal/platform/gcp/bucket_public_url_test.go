package gcp

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/lecturegen/internal/platform/logger"
)

func TestResolveObjectStoragePublicBaseURL(t *testing.T) {
	cases := []struct {
		name       string
		cfg        ObjectStorageConfig
		raw        string
		wantURL    string
		wantSource string
	}{
		{name: "gcs default", cfg: ObjectStorageConfig{Mode: ObjectStorageModeGCS}, wantSource: "gcs_default"},
		{
			name:       "emulator fallback",
			cfg:        ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, EmulatorHost: "http://fake-gcs:4443"},
			wantURL:    "http://fake-gcs:4443",
			wantSource: "storage_emulator_host",
		},
		{
			name:       "explicit override",
			cfg:        ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, EmulatorHost: "http://fake-gcs:4443"},
			raw:        "http://localhost:4443/",
			wantURL:    "http://localhost:4443",
			wantSource: "object_storage_public_base_url",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, source, err := resolveObjectStoragePublicBaseURL(tc.cfg, tc.raw)
			if err != nil {
				t.Fatalf("resolveObjectStoragePublicBaseURL: %v", err)
			}
			if got != tc.wantURL || source != tc.wantSource {
				t.Fatalf("want=%q/%q got=%q/%q", tc.wantURL, tc.wantSource, got, source)
			}
		})
	}
	if _, _, err := resolveObjectStoragePublicBaseURL(ObjectStorageConfig{Mode: ObjectStorageModeGCS}, "localhost:4443"); err == nil {
		t.Fatalf("expected error for relative public base url")
	}
}

func TestPublicURL(t *testing.T) {
	cases := []struct {
		name string
		b    *Bucket
		key  string
		want string
	}{
		{
			name: "gcs default",
			b:    &Bucket{name: "videos"},
			key:  "lectures/videos/1/lecture.mp4",
			want: "https://storage.googleapis.com/videos/lectures/videos/1/lecture.mp4",
		},
		{
			name: "cdn domain",
			b:    &Bucket{name: "videos", cdnDomain: "cdn.example.com"},
			key:  "videos/1/lecture.mp4",
			want: "https://cdn.example.com/videos/1/lecture.mp4",
		},
		{
			name: "public base url",
			b:    &Bucket{name: "videos", publicBaseURL: "http://localhost:4443"},
			key:  "/videos/1/lecture.mp4",
			want: "http://localhost:4443/videos/videos/1/lecture.mp4",
		},
		{
			name: "emulator media endpoint",
			b:    &Bucket{name: "videos", storageMode: ObjectStorageModeGCSEmulator, emulatorHost: "http://fake-gcs:4443"},
			key:  "videos/1/lecture.mp4",
			want: "http://fake-gcs:4443/storage/v1/b/videos/o/videos%2F1%2Flecture.mp4?alt=media",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.b.PublicURL(tc.key); got != tc.want {
				t.Fatalf("PublicURL: want=%q got=%q", tc.want, got)
			}
		})
	}
}

func TestUploadWritesObjectAndReturnsURL(t *testing.T) {
	b := newBucket(logger.Nop(), BucketConfig{Name: "videos", KeyPrefix: "/lectures/"}, "")
	b.newID = func() string { return "run-1" }

	var gotKey, gotCT string
	var gotBody bytes.Buffer
	b.writeObject = func(ctx context.Context, key, contentType string, r io.Reader) error {
		gotKey, gotCT = key, contentType
		_, err := io.Copy(&gotBody, r)
		return err
	}

	src := filepath.Join(t.TempDir(), "lecture.mp4")
	if err := os.WriteFile(src, []byte("video-bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	res, err := b.Upload(context.Background(), src, "video")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gotKey != "lectures/videos/run-1/lecture.mp4" {
		t.Fatalf("key: got=%q", gotKey)
	}
	if gotCT != "video/mp4" || gotBody.String() != "video-bytes" {
		t.Fatalf("object: ct=%q body=%q", gotCT, gotBody.String())
	}
	if !strings.HasSuffix(res.SecureURL, "/videos/lectures/videos/run-1/lecture.mp4") {
		t.Fatalf("url: got=%q", res.SecureURL)
	}
}

func TestUploadMissingFile(t *testing.T) {
	b := newBucket(logger.Nop(), BucketConfig{Name: "videos"}, "")
	b.writeObject = func(ctx context.Context, key, contentType string, r io.Reader) error {
		t.Fatalf("writeObject should not be called")
		return nil
	}
	if _, err := b.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), "video"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
