package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"restaurant-ops-api/internal/model"
	"restaurant-ops-api/internal/service"
	"restaurant-ops-api/pkg/apierror"
	"restaurant-ops-api/pkg/response"
)

// maxImportBytes bounds an uploaded backup blob.
const maxImportBytes = 64 << 20

// BackupHandler handles backup-related HTTP requests.
type BackupHandler struct {
	backups *service.BackupManager
}

// NewBackupHandler creates a new backup handler.
func NewBackupHandler(backups *service.BackupManager) *BackupHandler {
	return &BackupHandler{backups: backups}
}

// List handles GET /api/v1/backups
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]interface{}{
		"backups": h.backups.ListBackups(),
		"stats":   h.backups.Stats(),
	})
}

// Create handles POST /api/v1/backups
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	meta, err := h.backups.CreateBackup(r.Context(), model.BackupManual)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, meta)
}

// Export handles GET /api/v1/backups/{id}/export
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	blob, err := h.backups.ExportBackup(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="backup-`+id+`.json"`)
	response.Raw(w, http.StatusOK, "application/json", blob)
}

// Import handles POST /api/v1/backups/import. The body is the exported blob itself.
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	defer body.Close()

	blob, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, apierror.BadRequest("backup exceeds the upload limit"))
			return
		}
		response.Error(w, apierror.BadRequest("failed to read request body"))
		return
	}

	meta, err := h.backups.ImportBackup(r.Context(), blob)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, meta)
}

// Restore handles POST /api/v1/backups/{id}/restore
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.backups.RestoreBackup(r.Context(), id); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{
		"status":    "restored",
		"backup_id": id,
	})
}

// Delete handles DELETE /api/v1/backups/{id}
func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.backups.DeleteBackup(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}
