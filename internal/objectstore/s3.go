// Package objectstore is the uniform get/put/presign/delete adapter
// against an S3-compatible endpoint, one Client per tenant bucket.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/docbox-nz/docbox/internal/docboxerr"
)

// Client wraps an S3-compatible bucket. One Client is created per
// tenant (the bucket name is fixed at construction) to keep every call
// site free of a bucket parameter.
type Client struct {
	s3     *s3.Client
	presig *s3.PresignClient
	bucket string
}

// Options configures Client construction for non-AWS S3-compatible
// deployments (MinIO, R2, etc.) via an explicit endpoint and
// path-style addressing.
type Options struct {
	Region          string
	Endpoint        string // empty uses the AWS default resolver
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
}

// NewClient builds a Client bound to bucket using the given options.
func NewClient(ctx context.Context, bucket string, opts Options) (*Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore.NewClient: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	return &Client{
		s3:     client,
		presig: s3.NewPresignClient(client),
		bucket: bucket,
	}, nil
}

// Put uploads data to key, overwriting any existing object.
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := withRetry(ctx, "objectstore.Put", func() (*s3.PutObjectOutput, error) {
		return c.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(c.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
	})
	if err != nil {
		return docboxerr.Wrap(docboxerr.StorageFailure, "put object "+key, err)
	}
	return nil
}

// Get downloads the object at key.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := withRetry(ctx, "objectstore.Get", func() (*s3.GetObjectOutput, error) {
		return c.s3.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(key),
		})
	})
	if err != nil {
		return nil, docboxerr.Wrap(docboxerr.StorageFailure, "get object "+key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, docboxerr.Wrap(docboxerr.StorageFailure, "read object body "+key, err)
	}
	return data, nil
}

// Exists reports whether key is present in the bucket (HEAD request),
// used by the S3 event reconciler to verify an upload landed before
// finalizing a presigned task.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, docboxerr.Wrap(docboxerr.StorageFailure, "head object "+key, err)
	}
	return true, nil
}

// Delete removes the object at key. Deleting an already-missing key is
// not an error, since delete is used for cleanup of partial uploads.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := withRetry(ctx, "objectstore.Delete", func() (*s3.DeleteObjectOutput, error) {
		return c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(key),
		})
	})
	if err != nil {
		return docboxerr.Wrap(docboxerr.StorageFailure, "delete object "+key, err)
	}
	return nil
}

// PresignPut returns a URL the client can PUT bytes to directly, valid
// for expiry, used by the presigned-upload path.
func (c *Client) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	req, err := c.presig.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", docboxerr.Wrap(docboxerr.StorageFailure, "presign put "+key, err)
	}
	return req.URL, nil
}

// PresignGet returns a URL the client can GET the object from directly.
func (c *Client) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := c.presig.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", docboxerr.Wrap(docboxerr.StorageFailure, "presign get "+key, err)
	}
	return req.URL, nil
}

func isNotFound(err error) bool {
	var nf interface{ ErrorCode() string }
	if ok := asErrorCode(err, &nf); ok {
		code := nf.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}

func asErrorCode(err error, target *interface{ ErrorCode() string }) bool {
	for err != nil {
		if e, ok := err.(interface{ ErrorCode() string }); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
