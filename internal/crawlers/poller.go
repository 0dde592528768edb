package crawlers

import (
	"context"
	"errors"
	"time"

	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
	"github.com/rs/zerolog/log"
)

// PollState 稳定检测状态
type PollState string

const (
	PollIdle      PollState = "idle"    // 基线聚合尚未完成
	PollPolling   PollState = "polling" // 轮询中(中途出错时停留在此状态)
	PollStable    PollState = "stable"    // 连续多次无新资源
	PollExhausted PollState = "exhausted" // 达到最大轮询次数
)

// Scheduler 轮询等待
type Scheduler interface {
	Wait(ctx context.Context, d time.Duration) error
}

// TimerScheduler 基于 time.Timer 的等待
type TimerScheduler struct{}

// Wait 等待d或ctx取消
func (TimerScheduler) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PollerConfig 稳定检测配置
type PollerConfig struct {
	Interval        time.Duration // 轮询间隔 (默认:1.2s)
	MaxPolls        int           // 最大轮询次数 (默认:30)
	StableThreshold int           // 连续无变化次数阈值 (默认:3)
}

// PollResult 稳定检测结果
type PollResult struct {
	State PollState
	Polls int // 实际轮询次数(不含入口基线)
	Count int // 最终资源数
	Table *models.IdentityTable
}

// Poller 无限滚动页面的稳定检测器
// 入口先滚到顶部并做一次基线聚合; 之后每轮触发加载更多、等待、重新聚合, 比较资源数
type Poller struct {
	agg    *Aggregator
	sched  Scheduler
	config PollerConfig

	// OnPoll 每轮结束后回调(可选)
	OnPoll func(poll, count int)
}

// NewPoller 创建稳定检测器, sched为nil时使用 TimerScheduler
func NewPoller(agg *Aggregator, sched Scheduler, config PollerConfig) *Poller {
	if sched == nil {
		sched = TimerScheduler{}
	}
	if config.Interval <= 0 {
		config.Interval = 1200 * time.Millisecond
	}
	if config.MaxPolls <= 0 {
		config.MaxPolls = 30
	}
	if config.StableThreshold <= 0 {
		config.StableThreshold = 3
	}
	return &Poller{agg: agg, sched: sched, config: config}
}

// Run 执行稳定检测, 正常结束时返回 Stable 或 Exhausted
// 出错时返回当前已收集的表和错误, 基线聚合失败时状态仍为 Idle
func (p *Poller) Run(ctx context.Context, host Host, handle ContextHandle) (PollResult, error) {
	result := PollResult{State: PollIdle, Table: models.NewIdentityTable()}

	p.scrollBestEffort(ctx, host, handle, PayloadScrollTop)

	if _, err := p.agg.Aggregate(ctx, host, handle, result.Table); err != nil {
		result.Count = result.Table.Len()
		return result, err
	}
	result.State = PollPolling

	lastCount := result.Table.Len()
	noChangeStreak := 0

	for result.Polls < p.config.MaxPolls {
		if err := scroll(ctx, host, handle, PayloadScrollBottom); err != nil {
			if errors.Is(err, ErrHostUnavailable) {
				result.Count = result.Table.Len()
				return result, err
			}
			log.Debug().Err(err).Msg("触发加载更多失败")
		}

		if err := p.sched.Wait(ctx, p.config.Interval); err != nil {
			result.Count = result.Table.Len()
			return result, err
		}

		if _, err := p.agg.Aggregate(ctx, host, handle, result.Table); err != nil {
			result.Count = result.Table.Len()
			return result, err
		}
		result.Polls++

		count := result.Table.Len()
		if count == lastCount {
			noChangeStreak++
		} else {
			noChangeStreak = 0
			lastCount = count
		}

		if p.OnPoll != nil {
			p.OnPoll(result.Polls, count)
		}
		log.Debug().Int("poll", result.Polls).Int("count", count).Int("streak", noChangeStreak).Msg("稳定检测轮询")

		if noChangeStreak >= p.config.StableThreshold {
			result.State = PollStable
			break
		}
	}

	if result.State != PollStable {
		result.State = PollExhausted
	}
	result.Count = result.Table.Len()

	p.scrollBestEffort(ctx, host, handle, PayloadScrollTop)
	return result, nil
}

// scrollBestEffort 滚动失败只记录日志
func (p *Poller) scrollBestEffort(ctx context.Context, host Host, handle ContextHandle, payload Payload) {
	if err := scroll(ctx, host, handle, payload); err != nil {
		log.Debug().Err(err).Str("payload", payload.String()).Msg("滚动失败")
	}
}
