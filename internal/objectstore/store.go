package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"wavelift/internal/config"
	"wavelift/internal/services"
)

// Config describes the S3-compatible endpoint and bucket.
type Config struct {
	Endpoint    string
	Bucket      string
	AccessKey   string
	SecretKey   string
	Region      string
	UseSSL      bool
	ContentType string
}

// FromConfig extracts store settings from the application config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		Endpoint:    cfg.Store.Endpoint,
		Bucket:      cfg.Store.Bucket,
		AccessKey:   cfg.Store.AccessKey,
		SecretKey:   cfg.Store.SecretKey,
		Region:      cfg.Store.Region,
		UseSSL:      cfg.Store.UseSSL,
		ContentType: cfg.Store.ContentType,
	}
}

func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Endpoint) == "":
		return fmt.Errorf("%w: object store endpoint is required", services.ErrConfiguration)
	case strings.TrimSpace(c.Bucket) == "":
		return fmt.Errorf("%w: object store bucket is required", services.ErrConfiguration)
	case c.AccessKey == "" || c.SecretKey == "":
		return fmt.Errorf("%w: object store credentials are required", services.ErrConfiguration)
	}
	return nil
}

// Part identifies one uploaded multipart segment.
type Part struct {
	Number int
	ETag   string
}

// Store talks to one bucket.
type Store struct {
	client      *minio.Client
	core        minio.Core
	bucket      string
	contentType string
}

// NewMinIOClient builds a client with static V4 credentials.
func NewMinIOClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	}
	return minio.New(cfg.Endpoint, opts)
}

// New connects a Store to the configured bucket. No network call is made.
func New(cfg Config) (*Store, error) {
	client, err := NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}
	contentType := cfg.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Store{
		client:      client,
		core:        minio.Core{Client: client},
		bucket:      cfg.Bucket,
		contentType: contentType,
	}, nil
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string { return s.bucket }

// URL renders the s3:// address of key.
func (s *Store) URL(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

// CheckBucket verifies the bucket is reachable and exists.
func (s *Store) CheckBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return services.Wrap(services.ErrStorage, "preflight", "bucket exists", s.bucket, err)
	}
	if !ok {
		return services.Wrap(services.ErrConfiguration, "preflight", "bucket exists", "bucket missing: "+s.bucket, nil)
	}
	return nil
}

// Exists reports whether key is present. A missing key is not an error.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, services.Wrap(services.ErrStorage, "probe", "stat object", key, err)
}

// Put stores size bytes from r at key in a single request.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:      s.contentType,
		DisableMultipart: true,
	})
	if err != nil {
		return services.Wrap(services.ErrStorage, "upload", "put object", key, err)
	}
	return nil
}

// CreateMultipart starts a multipart upload and returns its id.
func (s *Store) CreateMultipart(ctx context.Context, key string) (string, error) {
	id, err := s.core.NewMultipartUpload(ctx, s.bucket, key, minio.PutObjectOptions{ContentType: s.contentType})
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "upload", "create multipart", key, err)
	}
	return id, nil
}

// UploadPart sends one numbered part. Part numbers start at 1.
func (s *Store) UploadPart(ctx context.Context, key, uploadID string, number int, r io.Reader, size int64) (Part, error) {
	part, err := s.core.PutObjectPart(ctx, s.bucket, key, uploadID, number, r, size, minio.PutObjectPartOptions{})
	if err != nil {
		return Part{}, services.Wrap(services.ErrStorage, "upload", "upload part", fmt.Sprintf("%s part %d", key, number), err)
	}
	return Part{Number: part.PartNumber, ETag: part.ETag}, nil
}

// CompleteMultipart finalizes the upload from the ordered parts.
func (s *Store) CompleteMultipart(ctx context.Context, key, uploadID string, parts []Part) error {
	complete := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		complete = append(complete, minio.CompletePart{PartNumber: p.Number, ETag: p.ETag})
	}
	if _, err := s.core.CompleteMultipartUpload(ctx, s.bucket, key, uploadID, complete, minio.PutObjectOptions{ContentType: s.contentType}); err != nil {
		return services.Wrap(services.ErrStorage, "upload", "complete multipart", key, err)
	}
	return nil
}

// AbortMultipart releases a partial upload so it never becomes addressable.
func (s *Store) AbortMultipart(ctx context.Context, key, uploadID string) error {
	if err := s.core.AbortMultipartUpload(ctx, s.bucket, key, uploadID); err != nil {
		return services.Wrap(services.ErrStorage, "upload", "abort multipart", key, err)
	}
	return nil
}

// isNotFound reports a missing key. A missing bucket is a storage failure, not
// an absent object.
func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return false
	}
	switch resp.Code {
	case "NoSuchKey", "NotFound":
		return true
	case "":
		return resp.StatusCode == http.StatusNotFound
	default:
		return false
	}
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
