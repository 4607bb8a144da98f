package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	s3.ListObjectsV2APIClient
	manager.DownloadAPIClient
}

// S3Source reads objects from an S3 bucket under a key prefix.
//
// Transfers go through the SDK's managed downloader with a concurrency of
// one, so the parts of a large object are fetched sequentially.
type S3Source struct {
	client     S3API
	downloader *manager.Downloader
	bucket     string
	prefix     string
}

// NewS3Source creates a new S3Source.
func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	return &S3Source{
		client: client,
		downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
			d.Concurrency = 1
		}),
		bucket: bucket,
		prefix: NormalizePrefix(prefix),
	}
}

func (s *S3Source) Prefix() string { return s.prefix }

func (s *S3Source) ListPage(ctx context.Context, token string, maxKeys int32) (Page, error) {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}
	if token != "" {
		in.ContinuationToken = aws.String(token)
	}
	if maxKeys > 0 {
		in.MaxKeys = aws.Int32(maxKeys)
	}

	out, err := s.client.ListObjectsV2(ctx, in)
	if err != nil {
		return Page{}, fmt.Errorf("list objects s3://%s/%s: %w", s.bucket, s.prefix, err)
	}

	page := Page{Objects: make([]Object, 0, len(out.Contents))}
	for _, obj := range out.Contents {
		o := Object{
			Key:  aws.ToString(obj.Key),
			Size: aws.ToInt64(obj.Size),
			ETag: strings.Trim(aws.ToString(obj.ETag), `"`),
		}
		if obj.LastModified != nil {
			o.LastModified = *obj.LastModified
		}
		page.Objects = append(page.Objects, o)
	}
	if aws.ToBool(out.IsTruncated) {
		page.NextToken = aws.ToString(out.NextContinuationToken)
	}
	return page, nil
}

func (s *S3Source) Download(ctx context.Context, key string, w io.WriterAt) (int64, error) {
	n, err := s.downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var re *awshttp.ResponseError
		if errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound {
			return n, fmt.Errorf("s3://%s/%s: %w", s.bucket, key, ErrObjectNotFound)
		}
		return n, err
	}
	return n, nil
}
