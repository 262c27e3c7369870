package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// only 限定请求方法
func only(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			methodNotAllowed(w)
			return
		}
		h(w, req)
	}
}

// RegisterRecordsRoutes 记录查询
func (r *Router) RegisterRecordsRoutes(h *RecordsHandler) {
	r.Handle("/api/v1/records", only(http.MethodGet, h.ListRecords))
	// {accountId} 与 {accountId}/comparison
	r.Handle(recordsPrefix, h.ServeRecord)
}

// RegisterIngestRoutes 上传、补分类、分类缓存
func (r *Router) RegisterIngestRoutes(h *IngestHandler) {
	r.Handle("/api/v1/upload", h.Upload)
	r.Handle("/api/v1/records/classify", h.Backfill)
	r.Handle("/api/v1/classifier/cache", h.PurgeCache)
	r.Handle("/api/v1/classifier/stats", h.Stats)
}

// RegisterAnalysisRoutes 偏差分析、高耗电、用电标准
func (r *Router) RegisterAnalysisRoutes(h *AnalysisHandler) {
	r.Handle("/api/v1/analysis/deviations", only(http.MethodGet, h.GetDeviations))
	r.Handle("/api/v1/analysis/high-consumers", only(http.MethodGet, h.GetHighConsumers))
	r.Handle("/api/v1/norms", h.Norms)
}

// RegisterExportRoutes 导出
func (r *Router) RegisterExportRoutes(h *ExportHandler) {
	r.Handle("/api/v1/export/records.json", only(http.MethodGet, h.RecordsJSON))
	r.Handle("/api/v1/export/records.xlsx", only(http.MethodGet, h.RecordsXLSX))
	r.Handle("/api/v1/export/deviations.xlsx", only(http.MethodGet, h.DeviationsXLSX))
	r.Handle("/api/v1/export/high-consumers.xlsx", only(http.MethodGet, h.HighConsumersXLSX))
}

// RegisterHealthRoutes 健康检查
func (r *Router) RegisterHealthRoutes(h *HealthHandler) {
	r.HandleHandler("/healthz", h)
}
