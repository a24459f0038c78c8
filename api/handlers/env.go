package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/envsync/internal/envfile"
	"github.com/BaSui01/envsync/internal/envsync"
	"github.com/BaSui01/envsync/internal/store"
	"github.com/BaSui01/envsync/types"
)

// maxKeyLength 与 env_variables.key 列宽一致
const maxKeyLength = 255

// =============================================================================
// 🌱 环境变量 Handler
// =============================================================================

// EnvHandler /api/env 路由
type EnvHandler struct {
	svc           *envsync.Service
	bootstrapPath string
	logger        *zap.Logger
}

// NewEnvHandler 创建处理器。bootstrapPath 是导入、导出与备份使用的引导文件。
func NewEnvHandler(svc *envsync.Service, bootstrapPath string, logger *zap.Logger) *EnvHandler {
	return &EnvHandler{
		svc:           svc,
		bootstrapPath: bootstrapPath,
		logger:        logger.With(zap.String("handler", "env")),
	}
}

// EnvVariableResponse 单条记录
type EnvVariableResponse struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EnvListResponse 列表
type EnvListResponse struct {
	Total int                   `json:"total"`
	Items []EnvVariableResponse `json:"items"`
}

// CreateEnvRequest 新建请求
type CreateEnvRequest struct {
	Key         string  `json:"key"`
	Value       *string `json:"value"`
	Description *string `json:"description"`
}

// RestoreRequest 备份恢复请求，Backup 可以是文件名或 /backups 返回的路径
type RestoreRequest struct {
	Backup string `json:"backup"`
}

// ExportResponse 导出结果
type ExportResponse struct {
	Message string `json:"message"`
	Path    string `json:"path"`
	Backup  string `json:"backup,omitempty"`
}

// BackupsResponse 备份列表，从新到旧
type BackupsResponse struct {
	Path    string   `json:"path"`
	Backups []string `json:"backups"`
}

// RestoreResponse 恢复结果
type RestoreResponse struct {
	Message  string `json:"message"`
	Restored string `json:"restored"`
	SetAside string `json:"set_aside,omitempty"`
}

func toResponse(row *store.EnvVariable) EnvVariableResponse {
	return EnvVariableResponse{
		Key:         row.Key,
		Value:       row.Value,
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

// Register 挂载路由。写操作经 admin 包装（要求超级用户），读操作经 authed 包装。
func (h *EnvHandler) Register(mux *http.ServeMux, authed, admin func(http.Handler) http.Handler) {
	read := func(f http.HandlerFunc) http.Handler { return authed(f) }
	write := func(f http.HandlerFunc) http.Handler { return admin(f) }

	mux.Handle("GET /api/env", read(h.HandleList))
	mux.Handle("GET /api/env/backups", read(h.HandleListBackups))
	mux.Handle("GET /api/env/{key}", read(h.HandleGet))
	mux.Handle("POST /api/env", write(h.HandleCreate))
	mux.Handle("PUT /api/env/{key}", write(h.HandleUpdate))
	mux.Handle("DELETE /api/env/{key}", write(h.HandleDelete))
	mux.Handle("POST /api/env/sync/db-to-redis", write(h.HandleSync))
	mux.Handle("POST /api/env/load/from-env-file", write(h.HandleLoad))
	mux.Handle("POST /api/env/export/to-env-file", write(h.HandleExport))
	mux.Handle("POST /api/env/backups/restore", write(h.HandleRestore))
}

// =============================================================================
// 📖 读
// =============================================================================

// HandleList GET /api/env
func (h *EnvHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	items := make([]EnvVariableResponse, 0, len(rows))
	for i := range rows {
		items = append(items, toResponse(&rows[i]))
	}
	WriteSuccess(w, r, EnvListResponse{Total: len(items), Items: items})
}

// HandleGet GET /api/env/{key}
func (h *EnvHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	row, ok, err := h.svc.Read(r.Context(), key)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	if !ok {
		WriteErrorMessage(w, r, types.ErrNotFound, "environment variable '"+key+"' not found", h.logger)
		return
	}
	WriteSuccess(w, r, toResponse(row))
}

// =============================================================================
// ✍️ 写
// =============================================================================

func validateKey(key string) *types.Error {
	switch {
	case key == "":
		return types.NewError(types.ErrValidation, "key must not be empty")
	case len(key) > maxKeyLength:
		return types.NewError(types.ErrValidation, "key must be at most 255 characters")
	case !envfile.ValidKey(key):
		return types.NewError(types.ErrValidation, "key may only contain letters, digits and underscores")
	}
	return nil
}

// HandleCreate POST /api/env，键已存在时 400
func (h *EnvHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateEnvRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if apiErr := validateKey(req.Key); apiErr != nil {
		WriteError(w, r, apiErr, h.logger)
		return
	}
	if req.Value == nil {
		WriteErrorMessage(w, r, types.ErrValidation, "value is required", h.logger)
		return
	}

	row, err := h.svc.Create(r.Context(), store.EnvVariable{
		Key:         req.Key,
		Value:       *req.Value,
		Description: req.Description,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		WriteErrorMessage(w, r, types.ErrAlreadyExists, "environment variable '"+req.Key+"' already exists", h.logger)
		return
	}
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	WriteCreated(w, r, toResponse(row))
}

// HandleUpdate PUT /api/env/{key}，只修改请求中出现的字段
func (h *EnvHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var patch store.EnvPatch
	if err := DecodeJSONBody(w, r, &patch, h.logger); err != nil {
		return
	}

	row, ok, err := h.svc.Update(r.Context(), key, patch)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	if !ok {
		WriteErrorMessage(w, r, types.ErrNotFound, "environment variable '"+key+"' not found", h.logger)
		return
	}
	WriteSuccess(w, r, toResponse(row))
}

// HandleDelete DELETE /api/env/{key}，成功时 204 无响应体
func (h *EnvHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	ok, err := h.svc.Delete(r.Context(), key)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	if !ok {
		WriteErrorMessage(w, r, types.ErrNotFound, "environment variable '"+key+"' not found", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// 🔄 同步、导入与导出
// =============================================================================

// HandleSync POST /api/env/sync/db-to-redis
func (h *EnvHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.FullResync(r.Context()); err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to sync environment variables to redis").
			WithCause(err).WithRetryable(true), h.logger)
		return
	}
	WriteSuccess(w, r, MessageData{Message: "environment variables synced to redis"})
}

// HandleLoad POST /api/env/load/from-env-file，只插入缺失的键
func (h *EnvHandler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.ImportFromFile(r.Context(), h.bootstrapPath)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, MessageData{
		Message: "loaded environment variables from " + filepath.Base(h.bootstrapPath),
		Count:   &count,
	})
}

// HandleExport POST /api/env/export/to-env-file
func (h *EnvHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	backup, err := h.svc.ExportSnapshot(r.Context(), h.bootstrapPath)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, ExportResponse{
		Message: "environment variables exported",
		Path:    h.bootstrapPath,
		Backup:  backup,
	})
}

// HandleListBackups GET /api/env/backups
func (h *EnvHandler) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.svc.Files().ListBackups(h.bootstrapPath)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, BackupsResponse{Path: h.bootstrapPath, Backups: backups})
}

// HandleRestore POST /api/env/backups/restore。只接受引导文件自身的备份，
// 恢复只改写文件，需要再调用 load 才会进入持久化存储。
func (h *EnvHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Backup == "" {
		WriteErrorMessage(w, r, types.ErrValidation, "backup is required", h.logger)
		return
	}

	backups, err := h.svc.Files().ListBackups(h.bootstrapPath)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	var match string
	for _, b := range backups {
		if b == req.Backup || filepath.Base(b) == req.Backup {
			match = b
			break
		}
	}
	if match == "" {
		WriteErrorMessage(w, r, types.ErrNotFound, "backup '"+req.Backup+"' not found", h.logger)
		return
	}

	safety, err := h.svc.Files().Restore(match, h.bootstrapPath)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	h.logger.Info("bootstrap file restored", zap.String("backup", match), zap.String("set_aside", safety))
	WriteSuccess(w, r, RestoreResponse{
		Message:  "bootstrap file restored",
		Restored: match,
		SetAside: safety,
	})
}
