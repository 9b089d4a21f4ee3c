package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureOptions configures the Azure Blob provider.
type AzureOptions struct {
	AccountName string
	AccountKey  string
}

// AzureBlobProvider implements Provider over Azure Blob Storage, addressed
// by az://container/blob URIs.
type AzureBlobProvider struct {
	client *azblob.Client
}

// NewAzureBlobProvider builds an Azure Blob provider authenticated with a
// shared-key credential from a storage account name/key pair. An empty
// account name is an error; there is no anonymous-client fallback.
func NewAzureBlobProvider(opts AzureOptions) (*AzureBlobProvider, error) {
	if opts.AccountName == "" {
		return nil, fmt.Errorf("filestore: azure account name is required")
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", opts.AccountName)

	cred, err := azblob.NewSharedKeyCredential(opts.AccountName, opts.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("filestore: building azure shared key credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("filestore: creating azure blob client: %w", err)
	}
	return &AzureBlobProvider{client: client}, nil
}

func splitAzureURI(uri string) (container, blob string, err error) {
	trimmed := strings.TrimPrefix(uri, "az://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", "", fmt.Errorf("filestore: invalid az uri %q", uri)
	}
	container = parts[0]
	if len(parts) == 2 {
		blob = parts[1]
	}
	return container, blob, nil
}

func (a *AzureBlobProvider) FileExists(ctx context.Context, path string) (bool, error) {
	container, blob, err := splitAzureURI(path)
	if err != nil {
		return false, err
	}
	_, err = a.client.ServiceClient().NewContainerClient(container).NewBlobClient(blob).GetProperties(ctx, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (a *AzureBlobProvider) IsDir(ctx context.Context, path string) (bool, error) {
	container, blob, err := splitAzureURI(path)
	if err != nil {
		return false, err
	}
	prefix := strings.TrimSuffix(blob, "/") + "/"

	pager := a.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	if pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return false, err
		}
		return len(page.Segment.BlobItems) > 0, nil
	}
	return false, nil
}

func (a *AzureBlobProvider) GetSize(ctx context.Context, path string) (int64, error) {
	container, blob, err := splitAzureURI(path)
	if err != nil {
		return 0, err
	}
	props, err := a.client.ServiceClient().NewContainerClient(container).NewBlobClient(blob).GetProperties(ctx, nil)
	if err != nil {
		return 0, err
	}
	if props.ContentLength == nil {
		return 0, nil
	}
	return *props.ContentLength, nil
}

func (a *AzureBlobProvider) Store(ctx context.Context, path string, data io.Reader, overwrite bool) (string, error) {
	container, blob, err := splitAzureURI(path)
	if err != nil {
		return "", err
	}
	if !overwrite {
		exists, err := a.FileExists(ctx, path)
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
	_, err = a.client.UploadBuffer(ctx, container, blob, buf, nil)
	if err != nil {
		return "", err
	}
	return path, nil
}

func (a *AzureBlobProvider) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	container, blob, err := splitAzureURI(path)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

type azureWriteCloser struct {
	provider *AzureBlobProvider
	ctx      context.Context
	path     string
	buf      bytes.Buffer
}

func (w *azureWriteCloser) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *azureWriteCloser) Close() error {
	_, err := w.provider.Store(w.ctx, w.path, &w.buf, true)
	return err
}

func (a *AzureBlobProvider) OpenWrite(ctx context.Context, path string) (io.WriteCloser, error) {
	return &azureWriteCloser{provider: a, ctx: ctx, path: path}, nil
}

func (a *AzureBlobProvider) EnsureDirectoryExists(ctx context.Context, path string) error {
	// Azure Blob has no directories; a zero-byte marker blob mirrors the
	// local "directory created" contract.
	container, blob, err := splitAzureURI(path)
	if err != nil {
		return err
	}
	marker := strings.TrimSuffix(blob, "/") + "/"
	_, err = a.client.UploadBuffer(ctx, container, marker, nil, nil)
	return err
}

func (a *AzureBlobProvider) CopyFile(ctx context.Context, src, dst string) error {
	srcContainer, srcBlob, err := splitAzureURI(src)
	if err != nil {
		return err
	}
	dstContainer, dstBlob, err := splitAzureURI(dst)
	if err != nil {
		return err
	}
	srcURL := a.client.ServiceClient().NewContainerClient(srcContainer).NewBlobClient(srcBlob).URL()
	_, err = a.client.ServiceClient().NewContainerClient(dstContainer).NewBlobClient(dstBlob).StartCopyFromURL(ctx, srcURL, nil)
	return err
}

func (a *AzureBlobProvider) Remove(ctx context.Context, path string) error {
	container, blob, err := splitAzureURI(path)
	if err != nil {
		return err
	}
	_, err = a.client.DeleteBlob(ctx, container, blob, nil)
	return err
}

func (a *AzureBlobProvider) RemoveAll(ctx context.Context, path string) error {
	container, blob, err := splitAzureURI(path)
	if err != nil {
		return err
	}
	prefix := strings.TrimSuffix(blob, "/") + "/"

	pager := a.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if bloberror.HasCode(err, bloberror.ContainerNotFound) {
				return nil
			}
			return nil // silently ignore "not found", per spec
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			if _, err := a.client.DeleteBlob(ctx, container, *item.Name, nil); err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
				return err
			}
		}
	}
	return nil
}

func (a *AzureBlobProvider) List(ctx context.Context, path string) ([]string, error) {
	container, blob, err := splitAzureURI(path)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(blob, "/") + "/"

	var entries []string
	pager := a.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			entries = append(entries, strings.TrimPrefix(*item.Name, prefix))
		}
	}
	return entries, nil
}
