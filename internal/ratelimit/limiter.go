package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter 外部调用节流（与分类逻辑解耦，可替换策略）
type Limiter interface {
	// Wait 阻塞直到允许下一次调用或 ctx 取消
	Wait(ctx context.Context) error
}

// 节流模式
const (
	ModeInterval    = "interval"
	ModeTokenBucket = "token_bucket"
	ModeNone        = "none"
)

// IntervalLimiter 固定间隔调度：相邻两次许可之间至少间隔 interval，首个许可立即放行
type IntervalLimiter struct {
	limiter *rate.Limiter
}

// NewInterval 创建固定间隔调度器（容量为 1 的令牌桶）
func NewInterval(interval time.Duration) *IntervalLimiter {
	return &IntervalLimiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait 等待到下一个时间槽
func (l *IntervalLimiter) Wait(ctx context.Context) error {
	return wait(ctx, l.limiter)
}

// TokenBucket 令牌桶
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket 创建令牌桶：每秒 rps 个令牌，容量 burst
func NewTokenBucket(rps float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait 获取一个令牌
func (t *TokenBucket) Wait(ctx context.Context) error {
	return wait(ctx, t.limiter)
}

// wait 截止时间不够等待下一个令牌时，rate 直接返回非 ctx 错误；统一映射为 context.DeadlineExceeded
func wait(ctx context.Context, l *rate.Limiter) error {
	err := l.Wait(ctx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

type unlimited struct{}

func (unlimited) Wait(ctx context.Context) error { return ctx.Err() }

// Unlimited 不节流（仅检查 ctx 取消）
func Unlimited() Limiter { return unlimited{} }

// FromConfig 根据配置构造节流器
func FromConfig(mode string, interval time.Duration, rps float64, burst int) (Limiter, error) {
	switch mode {
	case "", ModeInterval:
		if interval <= 0 {
			return nil, fmt.Errorf("interval limiter requires a positive interval, got %s", interval)
		}
		return NewInterval(interval), nil
	case ModeTokenBucket:
		if rps <= 0 {
			return nil, fmt.Errorf("token bucket limiter requires positive rps, got %v", rps)
		}
		return NewTokenBucket(rps, burst), nil
	case ModeNone:
		return Unlimited(), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit mode: %s", mode)
	}
}
