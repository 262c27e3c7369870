package httpapi

import (
	"net/http"
	"net/url"

	"energo-data/internal/analysis"
	"energo-data/internal/domain"
	"energo-data/internal/service"

	"go.uber.org/zap"
)

// AnalysisDefaults 查询参数缺省值（来自配置）
type AnalysisDefaults struct {
	PageSize              int
	MinDeviation          int
	HighConsumerThreshold float64
}

// DefaultAnalysisDefaults 每页 10 条、|偏差| >= 40%、阈值 3000 kWh
func DefaultAnalysisDefaults() AnalysisDefaults {
	return AnalysisDefaults{
		PageSize:              analysis.DefaultPageSize,
		MinDeviation:          analysis.DefaultMinDeviation,
		HighConsumerThreshold: analysis.DefaultHighConsumerThreshold,
	}
}

// AnalysisHandler 偏差分析、高耗电筛选与用电标准
type AnalysisHandler struct {
	analysisService service.AnalysisService
	defaults        AnalysisDefaults
	logger          *zap.Logger
}

// NewAnalysisHandler 创建分析 Handler；PageSize、HighConsumerThreshold 非正数时使用默认值
func NewAnalysisHandler(analysisService service.AnalysisService, defaults AnalysisDefaults, logger *zap.Logger) *AnalysisHandler {
	if defaults.PageSize <= 0 {
		defaults.PageSize = analysis.DefaultPageSize
	}
	if defaults.HighConsumerThreshold <= 0 {
		defaults.HighConsumerThreshold = analysis.DefaultHighConsumerThreshold
	}
	return &AnalysisHandler{
		analysisService: analysisService,
		defaults:        defaults,
		logger:          logger,
	}
}

// deviationQuery 解析 commercial/minDeviation/sort/direction/page/size
func (h *AnalysisHandler) deviationQuery(q url.Values) (analysis.DeviationQuery, error) {
	out := analysis.DefaultDeviationQuery()
	out.MinDeviation = h.defaults.MinDeviation
	out.Size = h.defaults.PageSize

	filter, err := analysis.ParseCommercialFilter(q.Get("commercial"))
	if err != nil {
		return out, domain.NewValidationError(err.Error())
	}
	dir, err := analysis.ParseDirection(q.Get("direction"), analysis.Desc)
	if err != nil {
		return out, domain.NewValidationError(err.Error())
	}
	out.Commercial = filter
	out.MinDeviation = parseInt(q.Get("minDeviation"), out.MinDeviation)
	if key := q.Get("sort"); key != "" {
		out.Sort.Key = key
	}
	out.Sort.Direction = dir
	out.Page = parseInt(q.Get("page"), 1)
	out.Size = parseInt(q.Get("size"), out.Size)
	return out, nil
}

func (h *AnalysisHandler) highConsumerQuery(q url.Values) (analysis.HighConsumerQuery, error) {
	out := analysis.DefaultHighConsumerQuery()
	out.Threshold = h.defaults.HighConsumerThreshold
	out.Size = h.defaults.PageSize

	filter, err := analysis.ParseCommercialFilter(q.Get("commercial"))
	if err != nil {
		return out, domain.NewValidationError(err.Error())
	}
	dir, err := analysis.ParseDirection(q.Get("direction"), analysis.Desc)
	if err != nil {
		return out, domain.NewValidationError(err.Error())
	}
	out.Commercial = filter
	out.Threshold = parseFloat(q.Get("threshold"), out.Threshold)
	if key := q.Get("sort"); key != "" {
		out.Sort.Key = key
	}
	out.Sort.Direction = dir
	out.Page = parseInt(q.Get("page"), 1)
	out.Size = parseInt(q.Get("size"), out.Size)
	return out, nil
}

// GetDeviations GET /api/v1/analysis/deviations
func (h *AnalysisHandler) GetDeviations(w http.ResponseWriter, r *http.Request) {
	q, err := h.deviationQuery(r.URL.Query())
	if err != nil {
		writeError(w, h.logger, "Deviations", err)
		return
	}
	page, err := h.analysisService.Deviations(r.Context(), q)
	if err != nil {
		writeError(w, h.logger, "Deviations", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(page))
}

// GetHighConsumers GET /api/v1/analysis/high-consumers
func (h *AnalysisHandler) GetHighConsumers(w http.ResponseWriter, r *http.Request) {
	q, err := h.highConsumerQuery(r.URL.Query())
	if err != nil {
		writeError(w, h.logger, "HighConsumers", err)
		return
	}
	page, err := h.analysisService.HighConsumers(r.Context(), q)
	if err != nil {
		writeError(w, h.logger, "HighConsumers", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(page))
}

// Norms GET/PUT /api/v1/norms
func (h *AnalysisHandler) Norms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		norms, err := h.analysisService.ListNorms(r.Context())
		if err != nil {
			writeError(w, h.logger, "ListNorms", err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(norms))
	case http.MethodPut:
		var buckets []domain.NormBucket
		if err := readBodyJSON(r, 1<<20, &buckets); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
			return
		}
		if err := h.analysisService.ReplaceNorms(r.Context(), buckets); err != nil {
			writeError(w, h.logger, "ReplaceNorms", err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{
			"success": true,
			"buckets": len(buckets),
		}))
	default:
		methodNotAllowed(w)
	}
}
