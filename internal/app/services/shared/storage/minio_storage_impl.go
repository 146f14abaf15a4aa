package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"clinreg-service/internal/app/config"
	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/exceptions"
)

type minioFileStorage struct {
	MinioClient *minio.Client
	BucketName  string
}

func NewMinioFileStorage(minioClient *minio.Client, internalConfig *config.InternalConfig) contracts.FileStorage {
	return &minioFileStorage{
		MinioClient: minioClient,
		BucketName:  internalConfig.Minio.BucketName,
	}
}

// Store uploads the file bytes under a fresh uuid object key scoped by
// registry and CDE code. Only the returned reference enters the clinical
// document.
func (m *minioFileStorage) Store(ctx context.Context, registryCode, cdeCode string, upload *models.FileUpload) (models.FileReference, error) {
	referenceID := fmt.Sprintf("%s/%s/%s", registryCode, cdeCode, uuid.NewString())
	_, err := m.MinioClient.PutObject(ctx, m.BucketName, referenceID, upload.Content, upload.Size, minio.PutObjectOptions{
		ContentType: constvars.MIMEOctetStream,
		UserMetadata: map[string]string{
			"filename": upload.Filename,
		},
	})
	if err != nil {
		return models.FileReference{}, exceptions.ErrMinioCreateObject(err, m.BucketName)
	}
	return models.FileReference{
		ReferenceID: referenceID,
		Filename:    upload.Filename,
	}, nil
}

// Delete removes a superseded object. It reports success as a bool; callers
// log failures and continue, a dangling stored file must never block a
// clinical save.
func (m *minioFileStorage) Delete(ctx context.Context, ref models.FileReference) bool {
	err := m.MinioClient.RemoveObject(ctx, m.BucketName, ref.ReferenceID, minio.RemoveObjectOptions{})
	return err == nil
}

func (m *minioFileStorage) Fetch(ctx context.Context, referenceID string) (io.ReadCloser, string, error) {
	object, err := m.MinioClient.GetObject(ctx, m.BucketName, referenceID, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", exceptions.ErrMinioFetchObject(err, m.BucketName)
	}
	stat, err := object.Stat()
	if err != nil {
		object.Close()
		return nil, "", exceptions.ErrMinioFetchObject(err, m.BucketName)
	}
	filename := stat.UserMetadata["Filename"]
	if filename == "" {
		filename = path.Base(referenceID)
	}
	return object, filename, nil
}
