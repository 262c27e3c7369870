package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Purpose 外部服务返回的用途信息（只取第一条结果）
type Purpose struct {
	Label   string // purpose_name，原始大小写
	Found   bool   // 是否有结果
	Summary string // 原始响应摘要（用于追踪日志）
}

// PurposeLookup 地址用途查询（外部协作方，可能失败或超时）
type PurposeLookup interface {
	LookupPurpose(ctx context.Context, address string) (Purpose, error)
}

// TwoGISConfig 2GIS Catalog API 配置
type TwoGISConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

// twoGISResponse 2GIS geocode 响应（只解析需要的字段）
type twoGISResponse struct {
	Meta struct {
		Code  int `json:"code"`
		Error *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	} `json:"meta"`
	Result *struct {
		Total int `json:"total"`
		Items []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			FullName    string `json:"full_name"`
			PurposeName string `json:"purpose_name"`
			Type        string `json:"type"`
		} `json:"items"`
	} `json:"result"`
}

// TwoGISClient 2GIS 地理编码客户端
type TwoGISClient struct {
	httpClient *resty.Client
	apiKey     string
	logger     *zap.Logger
}

// NewTwoGISClient 创建 2GIS 客户端
func NewTwoGISClient(cfg TwoGISConfig, logger *zap.Logger) *TwoGISClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Accept", "application/json")

	return &TwoGISClient{
		httpClient: client,
		apiKey:     cfg.APIKey,
		logger:     logger,
	}
}

var _ PurposeLookup = (*TwoGISClient)(nil)

// LookupPurpose 以地址为自由文本查询，返回第一条结果的 purpose_name
func (c *TwoGISClient) LookupPurpose(ctx context.Context, address string) (Purpose, error) {
	var body twoGISResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      address,
			"fields": "items.purpose",
			"key":    c.apiKey,
		}).
		SetResult(&body).
		Get("/3.0/items/geocode")
	if err != nil {
		return Purpose{}, fmt.Errorf("2gis request failed: %w", err)
	}
	if resp.IsError() {
		return Purpose{}, fmt.Errorf("2gis http error: %d", resp.StatusCode())
	}

	switch body.Meta.Code {
	case 200:
	case 404:
		// 2GIS 对无结果返回 meta.code=404
		return Purpose{Found: false, Summary: "meta.code=404 no results"}, nil
	case 0:
		return Purpose{}, fmt.Errorf("2gis malformed response: missing meta")
	default:
		msg := ""
		if body.Meta.Error != nil {
			msg = body.Meta.Error.Message
		}
		return Purpose{}, fmt.Errorf("2gis api error: code=%d %s", body.Meta.Code, msg)
	}

	if body.Result == nil || len(body.Result.Items) == 0 {
		return Purpose{Found: false, Summary: "total=0"}, nil
	}

	first := body.Result.Items[0]
	return Purpose{
		Label: first.PurposeName,
		Found: true,
		Summary: fmt.Sprintf("total=%d first=%q type=%s purpose=%q",
			body.Result.Total, first.FullName, first.Type, first.PurposeName),
	}, nil
}
