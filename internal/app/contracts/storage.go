package contracts

import (
	"context"
	"io"

	"clinreg-service/internal/app/models"
)

// FileStorage stores the bytes of file-valued CDEs; documents only carry the
// returned reference. Delete reports success as a bool because supersession
// failures are logged and swallowed, never propagated.
type FileStorage interface {
	Store(ctx context.Context, registryCode, cdeCode string, upload *models.FileUpload) (models.FileReference, error)
	Delete(ctx context.Context, ref models.FileReference) bool
	Fetch(ctx context.Context, referenceID string) (io.ReadCloser, string, error)
}
