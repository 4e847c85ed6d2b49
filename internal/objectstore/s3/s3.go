// Package s3 provides an objectstore.Client for S3-compatible services such as
// AWS S3 and MinIO.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/filedrive/filedrive/internal/objectstore"
	"github.com/rs/zerolog/log"
)

// maxDeleteBatch is the DeleteObjects per-request key limit.
const maxDeleteBatch = 1000

// Config holds connection settings for an S3-compatible endpoint.
type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
	DisableSSL      bool
	Timeout         time.Duration
}

// Client implements objectstore.Client over the AWS SDK.
type Client struct {
	api      s3iface.S3API
	uploader *s3manager.Uploader
}

// NewClient builds a session from cfg. SDK retries are disabled so a failed
// call surfaces immediately. Without static keys the SDK default credential
// chain is used.
func NewClient(cfg Config) (*Client, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.ForcePathStyle),
		DisableSSL:       aws.Bool(cfg.DisableSSL),
		MaxRetries:       aws.Int(0),
		HTTPClient:       &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		log.Debug().Str("provider", "static").Msg("aws credentials")
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	} else {
		log.Debug().Str("provider", "default chain").Msg("aws credentials")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return NewWithAPI(awss3.New(sess)), nil
}

// NewWithAPI wraps an existing S3 API implementation.
func NewWithAPI(api s3iface.S3API) *Client {
	return &Client{
		api:      api,
		uploader: s3manager.NewUploaderWithClient(api),
	}
}

// HeadBucket reports whether bucket exists and is reachable with the
// configured credentials.
func (c *Client) HeadBucket(ctx context.Context, bucket string) (bool, error) {
	_, err := c.api.HeadBucketWithContext(ctx, &awss3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return true, nil
	}
	mapped := mapError(err)
	if errors.Is(mapped, objectstore.ErrBucketNotFound) || errors.Is(mapped, objectstore.ErrObjectNotFound) {
		return false, nil
	}
	return false, mapped
}

// CreateBucket creates bucket.
func (c *Client) CreateBucket(ctx context.Context, bucket string) error {
	_, err := c.api.CreateBucketWithContext(ctx, &awss3.CreateBucketInput{Bucket: aws.String(bucket)})
	return mapError(err)
}

// PutObject writes body under key. Seekable bodies go through a single
// PutObject call; anything else is streamed by the multipart uploader.
func (c *Client) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) error {
	if body == nil {
		body = strings.NewReader("")
	}
	if rs, ok := body.(io.ReadSeeker); ok {
		input := &awss3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   rs,
		}
		if size >= 0 {
			input.ContentLength = aws.Int64(size)
		}
		_, err := c.api.PutObjectWithContext(ctx, input)
		return mapError(err)
	}

	_, err := c.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	return mapError(err)
}

// GetObject streams the object's content.
func (c *Client) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := c.api.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err)
	}
	if out.Body == nil {
		return io.NopCloser(strings.NewReader("")), nil
	}
	return out.Body, nil
}

// DeleteObject removes key.
func (c *Client) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := c.api.DeleteObjectWithContext(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return mapError(err)
}

// DeleteObjects removes keys in as few requests as the per-request limit allows.
func (c *Client) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := start + maxDeleteBatch
		if end > len(keys) {
			end = len(keys)
		}

		ids := make([]*awss3.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			ids = append(ids, &awss3.ObjectIdentifier{Key: aws.String(key)})
		}

		out, err := c.api.DeleteObjectsWithContext(ctx, &awss3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &awss3.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return mapError(err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return fmt.Errorf("delete %d of %d keys failed, first %q: %s",
				len(out.Errors), len(ids), aws.StringValue(first.Key), aws.StringValue(first.Message))
		}
	}
	return nil
}

// CopyObject performs a server-side copy within bucket.
func (c *Client) CopyObject(ctx context.Context, bucket, srcKey, dstKey string) error {
	_, err := c.api.CopyObjectWithContext(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(bucket, srcKey)),
	})
	return mapError(err)
}

// copySource URL-encodes "bucket/key" one segment at a time so the
// separators survive.
func copySource(bucket, key string) string {
	segments := strings.Split(bucket+"/"+key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// ListObjects returns one ListObjectsV2 page.
func (c *Client) ListObjects(ctx context.Context, bucket string, opts objectstore.ListOptions) (*objectstore.ListPage, error) {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = objectstore.DefaultMaxKeys
	}
	input := &awss3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(opts.Prefix),
		MaxKeys: aws.Int64(int64(maxKeys)),
	}
	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}

	out, err := c.api.ListObjectsV2WithContext(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}

	page := &objectstore.ListPage{
		Objects:               make([]objectstore.ObjectInfo, 0, len(out.Contents)),
		IsTruncated:           aws.BoolValue(out.IsTruncated),
		NextContinuationToken: aws.StringValue(out.NextContinuationToken),
	}
	for _, obj := range out.Contents {
		page.Objects = append(page.Objects, objectstore.ObjectInfo{
			Key:          aws.StringValue(obj.Key),
			Size:         aws.Int64Value(obj.Size),
			ETag:         strings.Trim(aws.StringValue(obj.ETag), `"`),
			LastModified: aws.TimeValue(obj.LastModified),
		})
	}
	return page, nil
}

// mapError normalises SDK errors onto the objectstore sentinels, keeping the
// original error in the chain for logging.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case awss3.ErrCodeNoSuchKey, "NotFound":
			return fmt.Errorf("%w: %w", objectstore.ErrObjectNotFound, err)
		case awss3.ErrCodeNoSuchBucket:
			return fmt.Errorf("%w: %w", objectstore.ErrBucketNotFound, err)
		case awss3.ErrCodeBucketAlreadyExists, awss3.ErrCodeBucketAlreadyOwnedByYou:
			return fmt.Errorf("%w: %w", objectstore.ErrBucketExists, err)
		case request.CanceledErrorCode, "RequestTimeout":
			return fmt.Errorf("%w: %w", objectstore.ErrTimeout, err)
		}
		if isTimeout(aerr.OrigErr()) {
			return fmt.Errorf("%w: %w", objectstore.ErrTimeout, err)
		}
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %w", objectstore.ErrTimeout, err)
	}
	return err
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
