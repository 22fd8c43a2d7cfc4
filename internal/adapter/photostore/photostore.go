// Package photostore persists uploaded sky photos and returns the reference
// recorded as a submission's photo_url.
package photostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/couchcryptid/skylore-service/internal/domain"
)

// extensions maps accepted image content types to file extensions.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/tiff": ".tif",
}

// ObjectName returns the stored name for a photo: the submission id plus an
// extension taken from the uploaded filename, falling back to the sniffed
// content type.
func ObjectName(id string, photo domain.Photo) string {
	ext := strings.ToLower(filepath.Ext(photo.Filename))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if ext == "" || len(ext) > 6 {
		ext = extensions[ContentType(photo)]
	}
	if ext == "" {
		ext = ".jpg"
	}
	return id + ext
}

// ContentType returns the declared content type, or one sniffed from the
// bytes when none was declared.
func ContentType(photo domain.Photo) string {
	if ct, _, err := mime.ParseMediaType(photo.ContentType); err == nil && ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return http.DetectContentType(photo.Data)
}

// LocalStore writes photos into a directory.
type LocalStore struct {
	dir    string
	logger *slog.Logger
}

// NewLocalStore creates a store rooted at dir. The directory is created on
// first save.
func NewLocalStore(dir string, logger *slog.Logger) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: photo directory is required", domain.ErrConfiguration)
	}
	return &LocalStore{dir: dir, logger: logger}, nil
}

// Save writes photo as <dir>/<id><ext> and returns that path. An existing
// file with the same name is never overwritten.
func (s *LocalStore) Save(ctx context.Context, id string, photo domain.Photo) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create photo dir: %w", err)
	}

	name := filepath.Join(s.dir, ObjectName(id, photo))
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create photo file: %w", err)
	}
	if _, err := f.Write(photo.Data); err != nil {
		f.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("write photo file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close photo file: %w", err)
	}

	s.logger.Debug("photo saved", "path", name, "bytes", len(photo.Data))
	return name, nil
}

// Remove deletes a photo written by Save. A missing file is not an error.
func (s *LocalStore) Remove(_ context.Context, ref string) error {
	if err := os.Remove(ref); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove photo file: %w", err)
	}
	return nil
}

// S3API is the subset of *s3.Client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds the bucket settings for an S3-compatible store.
type S3Config struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// PublicBaseURL prefixes object keys in returned references. When empty
	// the reference is <endpoint>/<bucket>/<key>.
	PublicBaseURL string
	// Prefix is prepended to object keys, e.g. "photos/".
	Prefix string
}

// S3Store uploads photos to an S3-compatible bucket.
type S3Store struct {
	client  S3API
	bucket  string
	prefix  string
	baseURL string
	logger  *slog.Logger
}

// NewS3Store builds a path-style S3 client with static credentials.
func NewS3Store(cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	var missing []string
	for _, f := range []struct{ key, val string }{
		{"S3_BUCKET", cfg.Bucket},
		{"S3_ACCESS_KEY_ID", cfg.AccessKeyID},
		{"S3_SECRET_ACCESS_KEY", cfg.SecretAccessKey},
	} {
		if f.val == "" {
			missing = append(missing, f.key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: s3 photo store requires %s", domain.ErrConfiguration, strings.Join(missing, ", "))
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	opts := s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return newS3Store(s3.New(opts), cfg, logger), nil
}

func newS3Store(client S3API, cfg S3Config, logger *slog.Logger) *S3Store {
	base := cfg.PublicBaseURL
	if base == "" {
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
		}
		base = strings.TrimRight(endpoint, "/") + "/" + cfg.Bucket
	}
	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		baseURL: strings.TrimRight(base, "/"),
		logger:  logger,
	}
}

// Save uploads photo under <prefix><id><ext> and returns its public URL.
func (s *S3Store) Save(ctx context.Context, id string, photo domain.Photo) (string, error) {
	key := path.Join(s.prefix, ObjectName(id, photo))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(photo.Data),
		ContentType:   aws.String(ContentType(photo)),
		ContentLength: aws.Int64(int64(len(photo.Data))),
	})
	if err != nil {
		return "", fmt.Errorf("put photo object %s: %w", key, err)
	}

	s.logger.Debug("photo uploaded", "bucket", s.bucket, "key", key, "bytes", len(photo.Data))
	return s.baseURL + "/" + key, nil
}

// Remove deletes an object previously returned by Save.
func (s *S3Store) Remove(ctx context.Context, ref string) error {
	key := strings.TrimPrefix(ref, s.baseURL+"/")
	if key == ref {
		return fmt.Errorf("photo reference %q is not in bucket %s", ref, s.bucket)
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete photo object %s: %w", key, err)
	}
	return nil
}
