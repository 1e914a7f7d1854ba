package modelstore

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// BlobStore keeps the artifact as a single block blob in Azure Storage.
type BlobStore struct {
	client    *azblob.Client
	container string
	blob      string
}

// NewBlobStore connects with an Azure Storage connection string. No request
// is made until Load or Save.
func NewBlobStore(connectionString, container, blob string) (*BlobStore, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return &BlobStore{client: client, container: container, blob: blob}, nil
}

// Load downloads and decodes the artifact.
func (s *BlobStore) Load(ctx context.Context) (*Artifact, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, s.blob, nil)
	if isNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download artifact: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return Decode(data)
}

// Save uploads the whole artifact, creating the container on first use.
// A block blob upload commits atomically.
func (s *BlobStore) Save(ctx context.Context, a *Artifact) error {
	data, err := Encode(a)
	if err != nil {
		return err
	}

	_, err = s.client.UploadBuffer(ctx, s.container, s.blob, data, nil)
	if bloberror.HasCode(err, bloberror.ContainerNotFound) {
		if _, cerr := s.client.CreateContainer(ctx, s.container, nil); cerr != nil && !bloberror.HasCode(cerr, bloberror.ContainerAlreadyExists) {
			return fmt.Errorf("failed to create container %s: %w", s.container, cerr)
		}
		_, err = s.client.UploadBuffer(ctx, s.container, s.blob, data, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to upload artifact: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound)
}
