package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"energo-data/internal/service"

	"go.uber.org/zap"
)

// DefaultMaxUploadBytes 上传大小上限
const DefaultMaxUploadBytes int64 = 50 << 20

// IngestHandler 上传导入与分类器管理
type IngestHandler struct {
	ingestService  service.IngestService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewIngestHandler 创建导入 Handler；maxUploadBytes <= 0 时使用 50 MiB
func NewIngestHandler(ingestService service.IngestService, maxUploadBytes int64, logger *zap.Logger) *IngestHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &IngestHandler{
		ingestService:  ingestService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Upload POST /api/v1/upload
// multipart 的 file 字段或原始 body；?async=true 时入队异步处理
func (h *IngestHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	// 1. 读取上传内容
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	payload, filename, contentType, err := h.readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, Fail("upload too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format != service.FormatJSON && format != service.FormatXLSX {
		format = service.DetectFormat(filename, contentType)
	}
	req := service.IngestRequest{
		Payload: payload,
		Format:  format,
		Source:  filename,
	}

	// 2. 异步：只校验并入队
	if r.URL.Query().Get("async") == "true" {
		resp, err := h.ingestService.Enqueue(r.Context(), req)
		if err != nil {
			writeError(w, h.logger, "Enqueue", err)
			return
		}
		writeJSON(w, http.StatusAccepted, Ok(resp))
		return
	}

	// 3. 同步：规范化 -> 分类 -> 入库
	resp, err := h.ingestService.Ingest(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, "Ingest", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *IngestHandler) readUpload(r *http.Request) ([]byte, string, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, "", "", err
		}
		return body, "", mediaType, nil
	}

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", "", err
		}
		return nil, "", "", errors.New("failed to parse form")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", errors.New("file not found in request")
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		return nil, "", "", errors.New("failed to read file")
	}
	return body, header.Filename, header.Header.Get("Content-Type"), nil
}

// Backfill POST /api/v1/records/classify
func (h *IngestHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	resp, err := h.ingestService.BackfillClassification(r.Context())
	if err != nil {
		writeError(w, h.logger, "BackfillClassification", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// PurgeCache DELETE /api/v1/classifier/cache
func (h *IngestHandler) PurgeCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	n, err := h.ingestService.PurgeClassificationCache(r.Context())
	if err != nil {
		writeError(w, h.logger, "PurgeClassificationCache", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"purged": n}))
}

// Stats GET /api/v1/classifier/stats
func (h *IngestHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.ingestService.ClassifierStats()))
}
