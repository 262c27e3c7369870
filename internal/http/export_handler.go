package httpapi

import (
	"net/http"

	"energo-data/internal/export"
	"energo-data/internal/service"

	"go.uber.org/zap"
)

// ExportHandler 记录与报表导出
type ExportHandler struct {
	analysisService service.AnalysisService
	analysis        *AnalysisHandler // 复用查询参数解析
	logger          *zap.Logger
}

// NewExportHandler 创建导出 Handler
func NewExportHandler(analysisService service.AnalysisService, analysisHandler *AnalysisHandler, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{
		analysisService: analysisService,
		analysis:        analysisHandler,
		logger:          logger,
	}
}

// RecordsJSON GET /api/v1/export/records.json
func (h *ExportHandler) RecordsJSON(w http.ResponseWriter, r *http.Request) {
	records, err := h.analysisService.ListRecords(r.Context(), nil)
	if err != nil {
		writeError(w, h.logger, "ExportRecords", err)
		return
	}
	data, err := export.RecordsJSON(records)
	if err != nil {
		writeError(w, h.logger, "ExportRecords", err)
		return
	}
	writeFile(w, "application/json", "consumption-records.json", data)
}

// RecordsXLSX GET /api/v1/export/records.xlsx
func (h *ExportHandler) RecordsXLSX(w http.ResponseWriter, r *http.Request) {
	records, err := h.analysisService.ListRecords(r.Context(), nil)
	if err != nil {
		writeError(w, h.logger, "ExportRecords", err)
		return
	}
	data, err := export.RecordsXLSX(records)
	if err != nil {
		writeError(w, h.logger, "ExportRecords", err)
		return
	}
	writeFile(w, export.ContentTypeXLSX, "consumption-records.xlsx", data)
}

// DeviationsXLSX GET /api/v1/export/deviations.xlsx（与列表相同的过滤和排序，不分页）
func (h *ExportHandler) DeviationsXLSX(w http.ResponseWriter, r *http.Request) {
	q, err := h.analysis.deviationQuery(r.URL.Query())
	if err != nil {
		writeError(w, h.logger, "ExportDeviations", err)
		return
	}
	devs, err := h.analysisService.DeviationReport(r.Context(), q)
	if err != nil {
		writeError(w, h.logger, "ExportDeviations", err)
		return
	}
	data, err := export.DeviationsXLSX(devs)
	if err != nil {
		writeError(w, h.logger, "ExportDeviations", err)
		return
	}
	writeFile(w, export.ContentTypeXLSX, "deviations.xlsx", data)
}

// HighConsumersXLSX GET /api/v1/export/high-consumers.xlsx
func (h *ExportHandler) HighConsumersXLSX(w http.ResponseWriter, r *http.Request) {
	q, err := h.analysis.highConsumerQuery(r.URL.Query())
	if err != nil {
		writeError(w, h.logger, "ExportHighConsumers", err)
		return
	}
	hcs, err := h.analysisService.HighConsumerReport(r.Context(), q)
	if err != nil {
		writeError(w, h.logger, "ExportHighConsumers", err)
		return
	}
	data, err := export.HighConsumersXLSX(hcs)
	if err != nil {
		writeError(w, h.logger, "ExportHighConsumers", err)
		return
	}
	writeFile(w, export.ContentTypeXLSX, "high-consumers.xlsx", data)
}
