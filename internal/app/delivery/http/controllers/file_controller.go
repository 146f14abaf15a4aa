package controllers

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/utils"
)

type FileController struct {
	Log         *zap.Logger
	FileStorage contracts.FileStorage
}

var (
	fileControllerInstance *FileController
	onceFileController     sync.Once
)

func NewFileController(logger *zap.Logger, fileStorage contracts.FileStorage) *FileController {
	onceFileController.Do(func() {
		fileControllerInstance = &FileController{
			Log:         logger,
			FileStorage: fileStorage,
		}
	})
	return fileControllerInstance
}

// FetchFile streams the stored bytes of a file-valued CDE by reference id.
func (ctrl *FileController) FetchFile(w http.ResponseWriter, r *http.Request) {
	referenceID := chi.URLParam(r, "referenceID")
	object, filename, err := ctrl.FileStorage.Fetch(r.Context(), referenceID)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	defer object.Close()

	w.Header().Set(constvars.HeaderContentType, constvars.MIMEOctetStream)
	w.Header().Set(constvars.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := io.Copy(w, object); err != nil {
		ctrl.Log.Warn("Failed to stream file",
			zap.String(constvars.LoggingFileRefKey, referenceID),
			zap.Error(err),
		)
	}
}
