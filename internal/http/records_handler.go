package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"energo-data/internal/service"

	"go.uber.org/zap"
)

const recordsPrefix = "/api/v1/records/"

// RecordsHandler 用电记录查询
type RecordsHandler struct {
	analysisService service.AnalysisService
	logger          *zap.Logger
}

// NewRecordsHandler 创建记录查询 Handler
func NewRecordsHandler(analysisService service.AnalysisService, logger *zap.Logger) *RecordsHandler {
	return &RecordsHandler{
		analysisService: analysisService,
		logger:          logger,
	}
}

// ListRecords GET /api/v1/records[?ids=1,2]
func (h *RecordsHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(r.URL.Query()["ids"])
	if err != nil {
		writeError(w, h.logger, "ListRecords", err)
		return
	}
	records, err := h.analysisService.ListRecords(r.Context(), ids)
	if err != nil {
		writeError(w, h.logger, "ListRecords", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": records,
		"total": len(records),
	}))
}

// GetRecord GET /api/v1/records/{accountId}
func (h *RecordsHandler) GetRecord(w http.ResponseWriter, r *http.Request, accountID int64) {
	rec, err := h.analysisService.GetRecord(r.Context(), accountID)
	if err != nil {
		writeError(w, h.logger, "GetRecord", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

// GetComparison GET /api/v1/records/{accountId}/comparison
func (h *RecordsHandler) GetComparison(w http.ResponseWriter, r *http.Request, accountID int64) {
	cmp, err := h.analysisService.CompareAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, h.logger, "CompareAccount", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(cmp))
}

// ServeRecord 分发 /api/v1/records/{accountId}[/comparison]
func (h *RecordsHandler) ServeRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, recordsPrefix)
	idPart, suffix, _ := strings.Cut(rest, "/")
	accountID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || accountID < 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch suffix {
	case "":
		h.GetRecord(w, r, accountID)
	case "comparison":
		h.GetComparison(w, r, accountID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
