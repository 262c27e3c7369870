package models

// Pagination 分页信息（页码从 1 开始）
type Pagination struct {
	Size       int    `json:"size"`
	Page       int    `json:"page"`
	Total      int    `json:"total"`
	TotalPages int    `json:"totalPages"`
	Sort       string `json:"sort,omitempty"`
	Direction  string `json:"direction,omitempty"`
}
