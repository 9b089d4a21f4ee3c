package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSOptions configures the Google Cloud Storage provider.
type GCSOptions struct {
	CredentialsFile string
	ProjectID       string
}

// GCSProvider implements Provider over Google Cloud Storage, addressed by
// gs://bucket/object URIs.
type GCSProvider struct {
	client *storage.Client
}

// NewGCSProvider builds a GCS provider. With an empty CredentialsFile it
// falls back to Application Default Credentials.
func NewGCSProvider(ctx context.Context, opts GCSOptions) (*GCSProvider, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("filestore: creating gcs client: %w", err)
	}
	return &GCSProvider{client: client}, nil
}

func splitGCSURI(uri string) (bucket, object string, err error) {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", "", fmt.Errorf("filestore: invalid gs uri %q", uri)
	}
	bucket = parts[0]
	if len(parts) == 2 {
		object = parts[1]
	}
	return bucket, object, nil
}

func (g *GCSProvider) handle(path string) (*storage.ObjectHandle, error) {
	bucket, object, err := splitGCSURI(path)
	if err != nil {
		return nil, err
	}
	return g.client.Bucket(bucket).Object(object), nil
}

func (g *GCSProvider) FileExists(ctx context.Context, path string) (bool, error) {
	h, err := g.handle(path)
	if err != nil {
		return false, err
	}
	_, err = h.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *GCSProvider) IsDir(ctx context.Context, path string) (bool, error) {
	bucket, object, err := splitGCSURI(path)
	if err != nil {
		return false, err
	}
	prefix := strings.TrimSuffix(object, "/") + "/"
	it := g.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	_, err = it.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *GCSProvider) GetSize(ctx context.Context, path string) (int64, error) {
	h, err := g.handle(path)
	if err != nil {
		return 0, err
	}
	attrs, err := h.Attrs(ctx)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

func (g *GCSProvider) Store(ctx context.Context, path string, data io.Reader, overwrite bool) (string, error) {
	h, err := g.handle(path)
	if err != nil {
		return "", err
	}
	if !overwrite {
		exists, err := g.FileExists(ctx, path)
		if err != nil {
			return "", err
		}
		if exists {
			return "", ErrAlreadyExists
		}
	}

	w := h.NewWriter(ctx)
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func (g *GCSProvider) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	h, err := g.handle(path)
	if err != nil {
		return nil, err
	}
	return h.NewReader(ctx)
}

type gcsWriteCloser struct {
	w io.WriteCloser
}

func (w *gcsWriteCloser) Write(p []byte) (int, error) { return w.w.Write(p) }
func (w *gcsWriteCloser) Close() error                { return w.w.Close() }

func (g *GCSProvider) OpenWrite(ctx context.Context, path string) (io.WriteCloser, error) {
	h, err := g.handle(path)
	if err != nil {
		return nil, err
	}
	return &gcsWriteCloser{w: h.NewWriter(ctx)}, nil
}

func (g *GCSProvider) EnsureDirectoryExists(ctx context.Context, path string) error {
	// GCS has no directories; a zero-byte marker object mirrors the local
	// "directory created" contract.
	bucket, object, err := splitGCSURI(path)
	if err != nil {
		return err
	}
	marker := strings.TrimSuffix(object, "/") + "/"
	w := g.client.Bucket(bucket).Object(marker).NewWriter(ctx)
	if _, err := w.Write(nil); err != nil {
		return err
	}
	return w.Close()
}

func (g *GCSProvider) CopyFile(ctx context.Context, src, dst string) error {
	srcH, err := g.handle(src)
	if err != nil {
		return err
	}
	dstH, err := g.handle(dst)
	if err != nil {
		return err
	}
	_, err = dstH.CopierFrom(srcH).Run(ctx)
	return err
}

func (g *GCSProvider) Remove(ctx context.Context, path string) error {
	h, err := g.handle(path)
	if err != nil {
		return err
	}
	return h.Delete(ctx)
}

func (g *GCSProvider) RemoveAll(ctx context.Context, path string) error {
	bucket, object, err := splitGCSURI(path)
	if err != nil {
		return err
	}
	prefix := strings.TrimSuffix(object, "/") + "/"

	b := g.client.Bucket(bucket)
	it := b.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return nil // silently ignore "not found"-shaped errors, per spec
		}
		if err := b.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return err
		}
	}
}

func (g *GCSProvider) List(ctx context.Context, path string) ([]string, error) {
	bucket, object, err := splitGCSURI(path)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(object, "/") + "/"

	var entries []string
	it := g.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, strings.TrimPrefix(attrs.Name, prefix))
	}
	return entries, nil
}
