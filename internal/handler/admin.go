package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"

	"restaurant-ops-api/internal/repository"
	"restaurant-ops-api/internal/service"
	"restaurant-ops-api/internal/store"
	"restaurant-ops-api/pkg/apierror"
	"restaurant-ops-api/pkg/response"
)

// defaultAuditLimit is the page size of GET /audit.
const defaultAuditLimit = 50

// AdminHandler exposes the raw store, the audit trail and runtime statistics.
type AdminHandler struct {
	store     *store.Store
	backend   repository.KVStore
	backups   *service.BackupManager
	dbType    string // sqlite, postgres, mysql or memory
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(
	st *store.Store,
	backend repository.KVStore,
	backups *service.BackupManager,
	dbType string,
) *AdminHandler {
	return &AdminHandler{
		store:     st,
		backend:   backend,
		backups:   backups,
		dbType:    dbType,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if h.backend != nil {
		backendStats, err := h.backend.Stats(ctx)
		if err == nil {
			backendStats["status"] = "connected"
			stats["store"] = backendStats
		} else {
			stats["store"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	}

	if tables, err := h.store.Tables(ctx); err == nil {
		stats["tables"] = tables
	}
	stats["audit_entries"] = h.store.Audit().Len()

	if h.backups != nil {
		stats["backups"] = h.backups.Stats()
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// GetTable handles GET /api/v1/tables/{table}
func (h *AdminHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if table == "" {
		response.Error(w, apierror.BadRequest("table is required"))
		return
	}

	records, err := h.store.Get(r.Context(), table)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, records)
}

// GetAudit handles GET /api/v1/audit?limit=N. Entries are newest first.
func (h *AdminHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultAuditLimit)
	if err != nil {
		response.Error(w, err)
		return
	}

	audit := h.store.Audit()
	entries := audit.Recent(limit)
	response.JSONWithMeta(w, http.StatusOK, entries, 1, limit, int64(audit.Len()))
}
