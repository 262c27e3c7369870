package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"energo-data/internal/domain"
	"energo-data/internal/service"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeFile 附件下载
func writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// writeError 按错误类型映射 HTTP 状态码，响应体始终是 Fail 包装
func writeError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	var ve *domain.ValidationError
	var nte *domain.NormTableError
	switch {
	case errors.As(err, &ve):
		logger.Warn(op+" rejected", zap.Strings("reasons", ve.Reasons))
		writeJSON(w, http.StatusBadRequest, FailWith(err.Error(), map[string]any{"reasons": ve.Reasons}))
	case errors.As(err, &nte):
		logger.Warn(op+" rejected", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusOK, Fail(err.Error()))
	case errors.Is(err, service.ErrAsyncDisabled), errors.Is(err, service.ErrClassifierDisabled):
		writeJSON(w, http.StatusServiceUnavailable, Fail(err.Error()))
	case errors.Is(err, context.Canceled):
		logger.Info(op+" cancelled", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, Fail(err.Error()))
	default:
		logger.Error(op+" failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
	}
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

// parseIDs 解析 ?ids=1,2,3（也支持重复参数）
func parseIDs(values []string) ([]int64, error) {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id < 0 {
				return nil, domain.NewValidationError("invalid account id: " + part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func methodNotAllowed(w http.ResponseWriter) {
	w.WriteHeader(http.StatusMethodNotAllowed)
}
