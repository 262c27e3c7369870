package classifier

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"energo-data/internal/store"
)

// CachedResult 缓存的分类结果
type CachedResult struct {
	IsCommercial bool   `json:"is_commercial"`
	PurposeLabel string `json:"purpose_label"`
	Keyword      string `json:"keyword,omitempty"`
}

// Cache 地址 -> 分类结果缓存（仅缓存成功的查询）
type Cache interface {
	Get(ctx context.Context, address string) (CachedResult, bool, error)
	Set(ctx context.Context, address string, result CachedResult) error
	Purge(ctx context.Context) (int, error)
}

const cacheKeyPrefix = "energo:classify:"

// KVCache 基于 store.KV（Redis）的缓存
type KVCache struct {
	kv  store.KV
	ttl time.Duration
}

// NewKVCache 创建分类缓存
func NewKVCache(kv store.KV, ttl time.Duration) *KVCache {
	return &KVCache{kv: kv, ttl: ttl}
}

var _ Cache = (*KVCache)(nil)

// cacheKey 地址归一化（去空白、小写）后取 sha1
func cacheKey(address string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(address), " "))
	sum := sha1.Sum([]byte(normalized))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *KVCache) Get(ctx context.Context, address string) (CachedResult, bool, error) {
	val, err := c.kv.Get(ctx, cacheKey(address))
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return CachedResult{}, false, nil
		}
		return CachedResult{}, false, fmt.Errorf("failed to get classification cache: %w", err)
	}
	var res CachedResult
	if err := json.Unmarshal([]byte(val), &res); err != nil {
		return CachedResult{}, false, fmt.Errorf("failed to unmarshal classification cache: %w", err)
	}
	return res, true, nil
}

func (c *KVCache) Set(ctx context.Context, address string, result CachedResult) error {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal classification cache: %w", err)
	}
	if err := c.kv.Set(ctx, cacheKey(address), string(b), c.ttl); err != nil {
		return fmt.Errorf("failed to set classification cache: %w", err)
	}
	return nil
}

// Purge 清空全部分类缓存，返回删除的键数量
func (c *KVCache) Purge(ctx context.Context) (int, error) {
	keys, err := c.kv.ScanKeys(ctx, cacheKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to scan classification cache: %w", err)
	}
	if err := c.kv.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("failed to purge classification cache: %w", err)
	}
	return len(keys), nil
}
