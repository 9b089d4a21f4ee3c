package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Options configures the S3 provider.
type S3Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Provider implements Provider over an S3-compatible object store,
// addressed by s3://bucket/key URIs.
type S3Provider struct {
	client *s3.Client
}

// NewS3Provider builds an S3 provider. With empty credentials it falls back
// to the SDK's default credential chain (env vars, shared config,
// instance/task role).
func NewS3Provider(ctx context.Context, opts S3Options) (*S3Provider, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("filestore: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = &opts.Endpoint
			o.UsePathStyle = true
		}
	})

	return &S3Provider{client: client}, nil
}

func splitS3URI(uri string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", "", fmt.Errorf("filestore: invalid s3 uri %q", uri)
	}
	bucket = parts[0]
	if len(parts) == 2 {
		key = parts[1]
	}
	return bucket, key, nil
}

func isNotFound(err error) bool {
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}

func (s *S3Provider) FileExists(ctx context.Context, path string) (bool, error) {
	bucket, key, err := splitS3URI(path)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *S3Provider) IsDir(ctx context.Context, path string) (bool, error) {
	bucket, key, err := splitS3URI(path)
	if err != nil {
		return false, err
	}
	prefix := strings.TrimSuffix(key, "/") + "/"
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: &bucket, Prefix: &prefix, MaxKeys: awsInt32(1),
	})
	if err != nil {
		return false, err
	}
	return len(out.Contents) > 0, nil
}

func awsInt32(v int32) *int32 { return &v }

func (s *S3Provider) GetSize(ctx context.Context, path string) (int64, error) {
	bucket, key, err := splitS3URI(path)
	if err != nil {
		return 0, err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return 0, err
	}
	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}

func (s *S3Provider) Store(ctx context.Context, path string, data io.Reader, overwrite bool) (string, error) {
	bucket, key, err := splitS3URI(path)
	if err != nil {
		return "", err
	}
	if !overwrite {
		exists, err := s.FileExists(ctx, path)
		if err != nil {
			return "", err
		}
		if exists {
			return "", ErrAlreadyExists
		}
	}

	buf, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket, Key: &key, Body: bytes.NewReader(buf),
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func (s *S3Provider) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := splitS3URI(path)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// s3WriteCloser buffers writes in memory and flushes a single PutObject on
// Close, since the S3 API has no streaming-append primitive.
type s3WriteCloser struct {
	provider *S3Provider
	ctx      context.Context
	path     string
	buf      bytes.Buffer
}

func (w *s3WriteCloser) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *s3WriteCloser) Close() error {
	_, err := w.provider.Store(w.ctx, w.path, &w.buf, true)
	return err
}

func (s *S3Provider) OpenWrite(ctx context.Context, path string) (io.WriteCloser, error) {
	return &s3WriteCloser{provider: s, ctx: ctx, path: path}, nil
}

func (s *S3Provider) EnsureDirectoryExists(ctx context.Context, path string) error {
	// S3 has no real directories; a zero-byte key under the prefix keeps
	// parity with the "directory created" contract for tools that list it.
	bucket, key, err := splitS3URI(path)
	if err != nil {
		return err
	}
	marker := strings.TrimSuffix(key, "/") + "/"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{Bucket: &bucket, Key: &marker, Body: bytes.NewReader(nil)})
	return err
}

func (s *S3Provider) CopyFile(ctx context.Context, src, dst string) error {
	srcBucket, srcKey, err := splitS3URI(src)
	if err != nil {
		return err
	}
	dstBucket, dstKey, err := splitS3URI(dst)
	if err != nil {
		return err
	}
	copySource := srcBucket + "/" + srcKey
	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket: &dstBucket, Key: &dstKey, CopySource: &copySource,
	})
	return err
}

func (s *S3Provider) Remove(ctx context.Context, path string) error {
	bucket, key, err := splitS3URI(path)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &bucket, Key: &key})
	return err
}

func (s *S3Provider) RemoveAll(ctx context.Context, path string) error {
	bucket, key, err := splitS3URI(path)
	if err != nil {
		return err
	}
	prefix := strings.TrimSuffix(key, "/") + "/"

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: &bucket, Prefix: &prefix})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		for _, obj := range page.Contents {
			if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &bucket, Key: obj.Key}); err != nil && !isNotFound(err) {
				return err
			}
		}
	}
	return nil
}

func (s *S3Provider) List(ctx context.Context, path string) ([]string, error) {
	bucket, key, err := splitS3URI(path)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(key, "/") + "/"

	var entries []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: &bucket, Prefix: &prefix})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			entries = append(entries, strings.TrimPrefix(*obj.Key, prefix))
		}
	}
	return entries, nil
}
