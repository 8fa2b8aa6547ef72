package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const gcsScheme = "gs://"

// GCSStorage reads and writes objects in Google Cloud Storage.
// It assumes Application Default Credentials are configured.
type GCSStorage struct{}

// NewGCSStorage creates a new instance of GCSStorage.
func NewGCSStorage() *GCSStorage {
	return &GCSStorage{}
}

func (s *GCSStorage) Read(ctx context.Context, uri string) ([]byte, error) {
	return FetchFromGCS(ctx, uri)
}

func (s *GCSStorage) Write(ctx context.Context, uri string, data []byte) error {
	bucketName, objectName, err := ParseGCSURI(uri)
	if err != nil {
		return err
	}
	return writeObject(ctx, bucketName, objectName, bytes.NewReader(data))
}

// ParseGCSURI splits "gs://bucket/path/to/object" into bucket and object name.
func ParseGCSURI(uri string) (bucketName, objectName string, err error) {
	if !IsGCSURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	trimmed := strings.TrimPrefix(uri, gcsScheme)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}

	return parts[0], parts[1], nil
}

// FetchFromGCS downloads the object bytes from the given GCS URI.
func FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: creating storage client: %w", err)
	}
	defer storageClient.Close()

	rc, err := storageClient.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, fmt.Errorf("object %s: %w", gcsURI, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading bytes: %w", err)
	}

	return data, nil
}

// UploadFile uploads a local file to a GCS bucket under the given object name.
func UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	return writeObject(ctx, bucketName, objectName, f)
}

func writeObject(ctx context.Context, bucketName, objectName string, src io.Reader) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if strings.HasSuffix(objectName, ".csv") {
		w.ContentType = "text/csv"
	}

	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to GCS writer: %w", err)
	}

	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}

	return nil
}

// BucketFromGCSURI returns the bucket of a gs:// object URI or prefix.
func BucketFromGCSURI(uri string) (string, error) {
	if !IsGCSURI(uri) {
		return "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	bucket, _, _ := strings.Cut(strings.TrimPrefix(uri, gcsScheme), "/")
	if bucket == "" {
		return "", fmt.Errorf("invalid GCS URI (no bucket): %s", uri)
	}
	return bucket, nil
}

var _ Service = (*GCSStorage)(nil)
