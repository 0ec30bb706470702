package snapshot

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// putObjectAPI is the part of *s3.Client the uploader needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader puts snapshots under a bucket prefix.
type S3Uploader struct {
	client putObjectAPI
	bucket string
	prefix string
}

// ParseS3URI splits s3://bucket/prefix. The prefix may be empty.
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("snapshot destination %q is not an s3://bucket/prefix URI: %w", uri, csvingest.ErrInvalidConfig)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// NewS3Uploader creates an uploader for uri using the default AWS credential
// chain. region may be empty to use the chain's region.
func NewS3Uploader(ctx context.Context, uri, region string) (*S3Uploader, error) {
	bucket, prefix, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Uploader{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

// Upload puts localPath at <prefix>/<key> and returns its s3:// location.
func (u *S3Uploader) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	objectKey := key
	if u.prefix != "" {
		objectKey = path.Join(u.prefix, key)
	}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(objectKey),
		Body:        f,
		ContentType: aws.String("application/vnd.apache.parquet"),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", u.bucket, objectKey, err)
	}
	return "s3://" + u.bucket + "/" + objectKey, nil
}
