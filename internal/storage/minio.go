package storage

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioBlobStore implements BlobStore on MinIO. Objects are keyed by content
// fingerprint, so re-putting an existing fingerprint overwrites the object
// with identical bytes and the write stays idempotent.
type MinioBlobStore struct {
	client     *minio.Client
	bucketName string
}

// NewMinioBlobStore connects to MinIO and ensures the bucket exists.
func NewMinioBlobStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioBlobStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	// Create bucket if it doesn't exist
	exists, err := client.BucketExists(context.Background(), bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %v", err)
	}
	if !exists {
		if err := client.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %v", err)
		}
		log.Printf("[MinIO] Created bucket: %s", bucket)
	}

	log.Println("Connected to MinIO successfully")
	return &MinioBlobStore{client: client, bucketName: bucket}, nil
}

func (m *MinioBlobStore) Put(ctx context.Context, fingerprint string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucketName, fingerprint, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (m *MinioBlobStore) Get(ctx context.Context, fingerprint string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucketName, fingerprint, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; surface a missing object now rather than on first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return obj, nil
}

func (m *MinioBlobStore) Delete(ctx context.Context, fingerprint string) error {
	return m.client.RemoveObject(ctx, m.bucketName, fingerprint, minio.RemoveObjectOptions{})
}

// CheckConnection is used by the health endpoint.
func (m *MinioBlobStore) CheckConnection(ctx context.Context) error {
	if m == nil || m.client == nil {
		return fmt.Errorf("minio blob store not initialized")
	}
	_, err := m.client.BucketExists(ctx, m.bucketName)
	return err
}
