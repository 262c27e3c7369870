package classifier

import (
	"context"
	"strings"
	"sync/atomic"

	"energo-data/internal/domain"
	"energo-data/internal/ratelimit"

	"go.uber.org/zap"
)

// Result 单次分类结果（临时对象，只用于回填 ConsumptionRecord.IsCommercial）
type Result struct {
	Address      string
	PurposeLabel string
	Found        bool
	IsCommercial bool
	Keyword      string
	Category     string
	Cached       bool
	Err          error // *domain.ClassificationError，已降级为非商业
}

// Stats 分类器累计计数
type Stats struct {
	Requests      int64 `json:"requests"`
	Commercial    int64 `json:"commercial"`
	NonCommercial int64 `json:"nonCommercial"`
	Failures      int64 `json:"failures"`
	CacheHits     int64 `json:"cacheHits"`
}

// Classifier 基于地址用途的商业/非商业分类器
// 外部查询尽力而为：任何查询失败都视为非商业，不向上抛出
type Classifier struct {
	lookup   PurposeLookup
	taxonomy *Taxonomy
	limiter  ratelimit.Limiter
	cache    Cache // 可选
	logger   *zap.Logger

	requests      atomic.Int64
	commercial    atomic.Int64
	nonCommercial atomic.Int64
	failures      atomic.Int64
	cacheHits     atomic.Int64
}

// NewClassifier 创建分类器；cache 可为 nil，limiter 为 nil 时不节流
func NewClassifier(lookup PurposeLookup, taxonomy *Taxonomy, limiter ratelimit.Limiter, cache Cache, logger *zap.Logger) *Classifier {
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited()
	}
	return &Classifier{
		lookup:   lookup,
		taxonomy: taxonomy,
		limiter:  limiter,
		cache:    cache,
		logger:   logger,
	}
}

// Stats 返回当前计数快照
func (c *Classifier) Stats() Stats {
	return Stats{
		Requests:      c.requests.Load(),
		Commercial:    c.commercial.Load(),
		NonCommercial: c.nonCommercial.Load(),
		Failures:      c.failures.Load(),
		CacheHits:     c.cacheHits.Load(),
	}
}

// Cache 返回缓存（可能为 nil）
func (c *Classifier) Cache() Cache { return c.cache }

// Classify 分类单个地址
// 返回的 error 只可能是 ctx 取消：外部调用前检查，调用方据此放弃整批
func (c *Classifier) Classify(ctx context.Context, address string) (Result, error) {
	res := Result{Address: address}
	if strings.TrimSpace(address) == "" {
		c.nonCommercial.Add(1)
		return res, ctx.Err()
	}

	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, address)
		if err != nil {
			c.logger.Warn("Classification cache read failed", zap.String("address", address), zap.Error(err))
		} else if ok {
			res.PurposeLabel = cached.PurposeLabel
			res.Found = cached.PurposeLabel != ""
			res.IsCommercial = cached.IsCommercial
			res.Keyword = cached.Keyword
			res.Cached = true
			c.cacheHits.Add(1)
			c.count(res.IsCommercial)
			c.logger.Debug("Classification cache hit",
				zap.String("address", address),
				zap.Bool("is_commercial", res.IsCommercial),
			)
			return res, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return res, err
	}

	c.requests.Add(1)
	c.logger.Info("Classification lookup", zap.String("address", address), zap.Int64("request_no", c.requests.Load()))

	purpose, err := c.lookup.LookupPurpose(ctx, address)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		res.Err = &domain.ClassificationError{Address: address, Err: err}
		c.failures.Add(1)
		c.count(false)
		c.logger.Warn("Classification lookup failed, treating as non-commercial",
			zap.String("address", address),
			zap.Error(err),
		)
		return res, nil
	}

	res.Found = purpose.Found
	res.PurposeLabel = purpose.Label
	if purpose.Found {
		res.Keyword, res.Category, res.IsCommercial = c.taxonomy.Match(purpose.Label)
	}
	c.count(res.IsCommercial)

	c.logger.Info("Classification result",
		zap.String("address", address),
		zap.String("response", purpose.Summary),
		zap.String("purpose_label", strings.ToLower(purpose.Label)),
		zap.String("matched_keyword", res.Keyword),
		zap.String("category", res.Category),
		zap.Bool("is_commercial", res.IsCommercial),
	)

	if c.cache != nil {
		if err := c.cache.Set(ctx, address, CachedResult{
			IsCommercial: res.IsCommercial,
			PurposeLabel: res.PurposeLabel,
			Keyword:      res.Keyword,
		}); err != nil {
			c.logger.Warn("Classification cache write failed", zap.String("address", address), zap.Error(err))
		}
	}

	return res, nil
}

func (c *Classifier) count(commercial bool) {
	if commercial {
		c.commercial.Add(1)
	} else {
		c.nonCommercial.Add(1)
	}
}

// BatchSummary 批量分类统计
type BatchSummary struct {
	Checked       int `json:"checked"`
	Commercial    int `json:"commercial"`
	NonCommercial int `json:"nonCommercial"`
	Failures      int `json:"failures"`
	CacheHits     int `json:"cacheHits"`
}

// ProgressFunc 批量分类进度回调（done 从 1 开始）
type ProgressFunc func(done, total int, res Result)

// ClassifyPending 顺序分类所有 IsCommercial 未知且地址非空的记录，结果就地写回
// 不并发：每次外部调用前经过 limiter，并检查 ctx 取消；同一批次内相同地址只查询一次
func (c *Classifier) ClassifyPending(ctx context.Context, records []domain.ConsumptionRecord, progress ProgressFunc) (BatchSummary, error) {
	var summary BatchSummary

	pending := make([]int, 0, len(records))
	for i := range records {
		if records[i].NeedsClassification() {
			pending = append(pending, i)
		}
	}

	memo := make(map[string]Result, len(pending))
	for n, idx := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		address := records[idx].AddressValue()
		key := strings.ToLower(strings.Join(strings.Fields(address), " "))

		res, seen := memo[key]
		if seen {
			res.Cached = true
		} else {
			var err error
			res, err = c.Classify(ctx, address)
			if err != nil {
				return summary, err
			}
			memo[key] = res
		}

		isCommercial := res.IsCommercial
		records[idx].IsCommercial = &isCommercial

		summary.Checked++
		if isCommercial {
			summary.Commercial++
		} else {
			summary.NonCommercial++
		}
		if res.Err != nil && !seen {
			summary.Failures++
		}
		if res.Cached {
			summary.CacheHits++
		}
		if progress != nil {
			progress(n+1, len(pending), res)
		}
	}

	c.logger.Info("Classification batch finished",
		zap.Int("checked", summary.Checked),
		zap.Int("commercial", summary.Commercial),
		zap.Int("non_commercial", summary.NonCommercial),
		zap.Int("failures", summary.Failures),
		zap.Int("cache_hits", summary.CacheHits),
	)
	return summary, nil
}
