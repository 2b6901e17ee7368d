package gcp

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	types "github.com/yungbote/lecturegen/internal/domain"
	"github.com/yungbote/lecturegen/internal/pkg/dbctx"
	"github.com/yungbote/lecturegen/internal/platform/logger"
)

type BucketConfig struct {
	Name          string
	CDNDomain     string
	PublicBaseURL string
	// KeyPrefix is prepended to every uploaded object key.
	KeyPrefix     string
	Storage       ObjectStorageConfig
	Credentials   Credentials
	UploadTimeout time.Duration
}

// Bucket stores finished lecture videos and hands out public URLs for them.
type Bucket struct {
	log           *logger.Logger
	client        *storage.Client
	name          string
	cdnDomain     string
	keyPrefix     string
	storageMode   ObjectStorageMode
	emulatorHost  string
	publicBaseURL string
	uploadTimeout time.Duration

	writeObject func(ctx context.Context, key, contentType string, r io.Reader) error
	newID       func() string
}

func NewBucket(ctx context.Context, log *logger.Logger, cfg BucketConfig) (*Bucket, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("missing bucket name (VIDEO_GCS_BUCKET_NAME)")
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	publicBaseURL, publicBaseSource, err := resolveObjectStoragePublicBaseURL(cfg.Storage, cfg.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	client, err := newStorageClientForMode(ctx, cfg.Storage, cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	b := newBucket(log, cfg, publicBaseURL)
	b.client = client
	b.writeObject = b.writeGCSObject
	b.log.Info(
		"Object storage initialized",
		"mode", cfg.Storage.Mode,
		"mode_source", cfg.Storage.ModeSource(),
		"emulator_host", cfg.Storage.EmulatorHost,
		"public_base_source", publicBaseSource,
		"public_base_url", publicBaseURL,
		"bucket", cfg.Name,
	)
	return b, nil
}

func newBucket(log *logger.Logger, cfg BucketConfig, publicBaseURL string) *Bucket {
	timeout := cfg.UploadTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Bucket{
		log:           log.With("service", "gcp.Bucket"),
		name:          strings.TrimSpace(cfg.Name),
		cdnDomain:     strings.TrimSpace(cfg.CDNDomain),
		keyPrefix:     strings.Trim(strings.TrimSpace(cfg.KeyPrefix), "/"),
		storageMode:   cfg.Storage.Mode,
		emulatorHost:  strings.TrimRight(strings.TrimSpace(cfg.Storage.EmulatorHost), "/"),
		publicBaseURL: publicBaseURL,
		uploadTimeout: timeout,
		newID:         func() string { return uuid.NewString() },
	}
}

func newStorageClientForMode(ctx context.Context, storageCfg ObjectStorageConfig, creds Credentials) (*storage.Client, error) {
	switch storageCfg.Mode {
	case ObjectStorageModeGCS:
		opts := creds.ClientOptions()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		endpoint := strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/")
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidMode, Value: string(storageCfg.Mode)}
	}
}

func resolveObjectStoragePublicBaseURL(storageCfg ObjectStorageConfig, raw string) (baseURL string, source string, err error) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		parsed, parseErr := url.Parse(raw)
		if parseErr != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
			return "", "", fmt.Errorf(
				"invalid OBJECT_STORAGE_PUBLIC_BASE_URL=%q; expected absolute URL like http://localhost:4443",
				raw,
			)
		}
		return strings.TrimRight(raw, "/"), "object_storage_public_base_url", nil
	}
	if storageCfg.IsEmulatorMode() {
		return strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/"), "storage_emulator_host", nil
	}
	return "", "gcs_default", nil
}

func (b *Bucket) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

// Upload copies a local file to the bucket and returns its public URL. It
// satisfies the lecture upload sink.
func (b *Bucket) Upload(ctx context.Context, localPath string, resourceType string) (*types.UploadResult, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()

	key := b.objectKey(resourceType, filepath.Base(localPath))
	if err := b.UploadFile(dbctx.Context{Ctx: ctx}, key, f); err != nil {
		return nil, err
	}
	u := b.PublicURL(key)
	b.log.Info("Uploaded object", "key", key, "url", u)
	return &types.UploadResult{SecureURL: u}, nil
}

func (b *Bucket) objectKey(resourceType, base string) string {
	rt := strings.Trim(strings.ToLower(strings.TrimSpace(resourceType)), "/")
	if rt == "" {
		rt = "raw"
	}
	parts := []string{rt + "s", b.newID(), base}
	if b.keyPrefix != "" {
		parts = append([]string{b.keyPrefix}, parts...)
	}
	return path.Join(parts...)
}

func (b *Bucket) UploadFile(dbc dbctx.Context, key string, r io.Reader) error {
	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, b.uploadTimeout)
	defer cancel()
	return b.writeObject(ctx, key, contentTypeForKey(key), r)
}

func (b *Bucket) writeGCSObject(ctx context.Context, key, contentType string, r io.Reader) error {
	w := b.client.Bucket(b.name).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (b *Bucket) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if b.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", b.cdnDomain, key)
	}
	if b.storageMode == ObjectStorageModeGCSEmulator {
		if u := b.emulatorMediaURL(key); u != "" {
			return u
		}
	}
	if b.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", b.publicBaseURL, b.name, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.name, key)
}

func (b *Bucket) emulatorMediaURL(key string) string {
	base := strings.TrimRight(strings.TrimSpace(b.publicBaseURL), "/")
	if base == "" {
		base = b.emulatorHost
	}
	if base == "" {
		return ""
	}
	return fmt.Sprintf(
		"%s/storage/v1/b/%s/o/%s?alt=media",
		base,
		url.PathEscape(b.name),
		url.PathEscape(key),
	)
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".mp4"), strings.HasSuffix(s, ".m4v"):
		return "video/mp4"
	case strings.HasSuffix(s, ".webm"):
		return "video/webm"
	case strings.HasSuffix(s, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return ""
	}
}
