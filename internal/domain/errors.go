package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound 查询的账户不存在（分析接口返回空结果，不视为失败）
var ErrNotFound = errors.New("record not found")

// ValidationError 导入批次结构非法：整批拒绝，不提交任何记录
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	if len(e.Reasons) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}

// NewValidationError 创建校验错误
func NewValidationError(reasons ...string) *ValidationError {
	return &ValidationError{Reasons: reasons}
}

// ClassificationError 外部分类查询失败（本地降级为非商业，不中断导入）
type ClassificationError struct {
	Address string
	Err     error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification lookup failed for %q: %v", e.Address, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// StorageError 持久化失败（不可本地恢复，直接返回调用方）
type StorageError struct {
	Op   string
	Code string // PostgreSQL SQLSTATE（可能为空）
	Err  error
}

func (e *StorageError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("storage %s failed (sqlstate %s): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NormTableError 标准表数据质量问题（重复键、非法值），在加载时拒绝
type NormTableError struct {
	Duplicates []NormKey
	Invalid    []string
}

func (e *NormTableError) Error() string {
	parts := make([]string, 0, len(e.Duplicates)+len(e.Invalid))
	for _, k := range e.Duplicates {
		parts = append(parts, fmt.Sprintf("duplicate norm bucket rooms=%d residents=%d", k.Rooms, k.Residents))
	}
	parts = append(parts, e.Invalid...)
	return "invalid norm table: " + strings.Join(parts, "; ")
}
