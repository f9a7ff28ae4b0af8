package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig configures an S3-compatible artifact bucket.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

// ObjectConfigFromEnv reads PIPELINE_MINIO_* variables. It returns ok=false when no
// endpoint is configured.
func ObjectConfigFromEnv() (cfg ObjectConfig, ok bool, err error) {
	endpoint := os.Getenv("PIPELINE_MINIO_ENDPOINT")
	if endpoint == "" {
		return ObjectConfig{}, false, nil
	}
	useSSL := false
	if v := os.Getenv("PIPELINE_MINIO_USE_SSL"); v != "" {
		useSSL, err = strconv.ParseBool(v)
		if err != nil {
			return ObjectConfig{}, false, fmt.Errorf("PIPELINE_MINIO_USE_SSL: %w", err)
		}
	}
	cfg = ObjectConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("PIPELINE_MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("PIPELINE_MINIO_SECRET_KEY"),
		Region:    envOr("PIPELINE_MINIO_REGION", "us-east-1"),
		UseSSL:    useSSL,
		Bucket:    envOr("PIPELINE_MINIO_BUCKET", "pipeline-artifacts"),
		Prefix:    os.Getenv("PIPELINE_MINIO_PREFIX"),
	}
	if err := cfg.Validate(); err != nil {
		return ObjectConfig{}, false, err
	}
	return cfg, true, nil
}

// Validate checks the config before a client is built.
func (c ObjectConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	return nil
}

// ObjectStore persists payloads as objects in a MinIO or S3 bucket.
type ObjectStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewObjectStore connects to the endpoint and creates the bucket when it is missing.
func NewObjectStore(ctx context.Context, cfg ObjectConfig) (*ObjectStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid object store config: %w", err)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *ObjectStore) objectKey(key string) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return clean, nil
	}
	return path.Join(s.prefix, clean), nil
}

// Persist uploads payload and returns an s3:// path.
func (s *ObjectStore) Persist(ctx context.Context, key string, payload []byte) (string, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: contentType(objectKey)})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, objectKey), nil
}

// Read downloads the object stored under key.
func (s *ObjectStore) Read(ctx context.Context, key string) ([]byte, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", objectKey, err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, objectKey)
		}
		return nil, fmt.Errorf("failed to read %s: %w", objectKey, err)
	}
	return data, nil
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
