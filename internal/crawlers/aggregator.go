package crawlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/RecoveryAshes/FlickrExtractor/internal/cdn"
	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
	"github.com/rs/zerolog/log"
)

// AggregateStats 一次聚合的统计
type AggregateStats struct {
	Candidates   int      // 策略返回的候选URL总数
	Accepted     int      // 规范化成功数
	Rejected     int      // 规范化失败数(非CDN/缩略图/格式错误)
	NewResources int      // 本次新增资源数
	Failed       []string // 执行失败的策略名
}

// Aggregator 跨策略去重聚合器
// 按固定顺序执行策略, 所有候选经规范化后写入身份表(后写覆盖)
type Aggregator struct {
	canon      *cdn.Canonicalizer
	strategies []Strategy
}

// NewAggregator 创建聚合器, strategies为空时使用默认策略
func NewAggregator(canon *cdn.Canonicalizer, strategies ...Strategy) *Aggregator {
	if canon == nil {
		canon = cdn.NewCanonicalizer(cdn.Options{})
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Aggregator{canon: canon, strategies: strategies}
}

// Canonicalizer 返回聚合器使用的规范化器
func (a *Aggregator) Canonicalizer() *cdn.Canonicalizer {
	return a.canon
}

// Aggregate 在上下文上执行全部策略并合并到table
// 单个策略失败(错误或panic)只记录日志, 不影响其他策略; 宿主不可用或ctx取消时返回错误
func (a *Aggregator) Aggregate(ctx context.Context, host Host, handle ContextHandle, table *models.IdentityTable) (AggregateStats, error) {
	var stats AggregateStats

	for _, s := range a.strategies {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		urls, err := a.runStrategy(ctx, s, host, handle)
		if err != nil {
			if errors.Is(err, ErrHostUnavailable) {
				return stats, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			log.Warn().Err(err).Str("strategy", s.Name()).Msg("扫描策略执行失败")
			stats.Failed = append(stats.Failed, s.Name())
			continue
		}

		stats.Candidates += len(urls)
		for _, raw := range urls {
			c, ok := a.canon.Canonicalize(raw)
			if !ok {
				stats.Rejected++
				continue
			}
			stats.Accepted++
			if table.Add(c.ID, c.Size, c.URL) {
				stats.NewResources++
			}
		}
	}

	log.Debug().
		Int("candidates", stats.Candidates).
		Int("accepted", stats.Accepted).
		Int("new", stats.NewResources).
		Int("total", table.Len()).
		Msg("聚合完成")

	return stats, nil
}

// AggregateNew 使用新的身份表执行一次聚合
func (a *Aggregator) AggregateNew(ctx context.Context, host Host, handle ContextHandle) (*models.IdentityTable, AggregateStats, error) {
	table := models.NewIdentityTable()
	stats, err := a.Aggregate(ctx, host, handle, table)
	return table, stats, err
}

// runStrategy 执行单个策略, 把panic转换为错误
func (a *Aggregator) runStrategy(ctx context.Context, s Strategy, host Host, handle ContextHandle) (urls []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("策略 %s panic: %v", s.Name(), r)
		}
	}()
	return s.Scan(ctx, host, handle)
}
