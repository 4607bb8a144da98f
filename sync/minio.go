package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the connection settings for an S3-compatible endpoint
// reached through minio-go.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// MinioSource reads objects from an S3-compatible service (MinIO, Ceph,
// Sevalla and friends) under a key prefix.
type MinioSource struct {
	core   *minio.Core
	bucket string
	prefix string
}

// NewMinioClient builds a minio Core client from cfg. The endpoint may carry
// an http:// or https:// scheme, which then overrides UseSSL.
func NewMinioClient(cfg MinioConfig) (*minio.Core, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint must be provided")
	}

	endpoint, secure := cfg.Endpoint, cfg.UseSSL
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint, secure = strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		endpoint, secure = strings.TrimPrefix(endpoint, "http://"), false
	}

	core, err := minio.NewCore(strings.TrimSuffix(endpoint, "/"), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return core, nil
}

// NewMinioSource creates a new MinioSource.
func NewMinioSource(core *minio.Core, bucket, prefix string) *MinioSource {
	return &MinioSource{core: core, bucket: bucket, prefix: NormalizePrefix(prefix)}
}

func (s *MinioSource) Prefix() string { return s.prefix }

// ListPage fetches one page of the listing. minio.Core does not take a
// context for listing, so the request runs in its own goroutine and ListPage
// returns as soon as ctx is done; the abandoned request finishes in the
// background and its result is discarded.
func (s *MinioSource) ListPage(ctx context.Context, token string, maxKeys int32) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	type result struct {
		res minio.ListBucketV2Result
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := s.core.ListObjectsV2(s.bucket, s.prefix, "", token, "", int(maxKeys))
		done <- result{res, err}
	}()

	var res minio.ListBucketV2Result
	select {
	case <-ctx.Done():
		return Page{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return Page{}, fmt.Errorf("list objects %s/%s: %w", s.bucket, s.prefix, r.err)
		}
		res = r.res
	}

	page := Page{Objects: make([]Object, 0, len(res.Contents))}
	for _, obj := range res.Contents {
		page.Objects = append(page.Objects, objectFromMinio(obj))
	}
	if res.IsTruncated {
		page.NextToken = res.NextContinuationToken
	}
	return page, nil
}

func (s *MinioSource) Download(ctx context.Context, key string, w io.WriterAt) (int64, error) {
	body, _, _, err := s.core.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return 0, fmt.Errorf("%s/%s: %w", s.bucket, key, ErrObjectNotFound)
		}
		return 0, err
	}
	defer body.Close()

	return io.Copy(io.NewOffsetWriter(w, 0), body)
}

func objectFromMinio(info minio.ObjectInfo) Object {
	return Object{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         strings.Trim(info.ETag, `"`),
		LastModified: info.LastModified,
	}
}
