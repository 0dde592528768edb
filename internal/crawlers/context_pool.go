package crawlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// closeTimeout 关闭上下文的超时, 与调用方ctx是否取消无关
const closeTimeout = 10 * time.Second

// PoolStats 上下文池统计
type PoolStats struct {
	Opened int // 累计打开
	Closed int // 累计关闭
	Peak   int // 同时打开的峰值
}

// ContextPool 浏览上下文池
// 职责: 限制同时打开的上下文数量, 打开前检查系统资源, 保证每个打开的上下文都被关闭
type ContextPool struct {
	host    Host
	monitor *ResourceMonitor
	limit   int

	open   map[ContextHandle]string // handle -> url
	stats  PoolStats
	closed bool
	mu     sync.Mutex
}

// NewContextPool 创建上下文池, limit<1时按1处理(顺序使用)
func NewContextPool(host Host, monitor *ResourceMonitor, limit int) *ContextPool {
	if limit < 1 {
		limit = 1
	}
	return &ContextPool{
		host:    host,
		monitor: monitor,
		limit:   limit,
		open:    make(map[ContextHandle]string),
	}
}

// Acquire 打开一个新的上下文
func (cp *ContextPool) Acquire(ctx context.Context, url string) (ContextHandle, error) {
	cp.mu.Lock()
	if cp.closed {
		cp.mu.Unlock()
		return "", fmt.Errorf("上下文池已关闭")
	}
	if len(cp.open) >= cp.limit {
		n := len(cp.open)
		cp.mu.Unlock()
		return "", fmt.Errorf("%w: 当前%d个, 上限%d个", ErrContextLimit, n, cp.limit)
	}
	cp.mu.Unlock()

	if cp.monitor != nil {
		if ok, reason := cp.monitor.CheckResourceAvailability(); !ok {
			return "", fmt.Errorf("%w: %s", ErrLowResources, reason)
		}
	}

	handle, err := cp.host.CreateContext(ctx, url)
	if err != nil {
		return "", err
	}

	cp.mu.Lock()
	cp.open[handle] = url
	cp.stats.Opened++
	if len(cp.open) > cp.stats.Peak {
		cp.stats.Peak = len(cp.open)
	}
	current := len(cp.open)
	cp.mu.Unlock()

	log.Debug().Str("handle", string(handle)).Str("url", url).Int("open", current).Msg("打开上下文")
	return handle, nil
}

// Release 关闭上下文
// 使用与调用方取消解耦的ctx, 取消或超时不会跳过关闭
func (cp *ContextPool) Release(ctx context.Context, handle ContextHandle) {
	cp.mu.Lock()
	_, tracked := cp.open[handle]
	delete(cp.open, handle)
	if tracked {
		cp.stats.Closed++
	}
	cp.mu.Unlock()

	if !tracked {
		return
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()

	if err := cp.host.CloseContext(closeCtx, handle); err != nil {
		log.Warn().Err(err).Str("handle", string(handle)).Msg("关闭上下文失败")
	}
}

// Host 池所包装的宿主
func (cp *ContextPool) Host() Host {
	return cp.host
}

// OpenCount 当前打开的上下文数量
func (cp *ContextPool) OpenCount() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.open)
}

// Stats 返回统计快照
func (cp *ContextPool) Stats() PoolStats {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.stats
}

// Close 关闭池中所有剩余上下文
func (cp *ContextPool) Close() error {
	cp.mu.Lock()
	if cp.closed {
		cp.mu.Unlock()
		return nil
	}
	cp.closed = true
	handles := make([]ContextHandle, 0, len(cp.open))
	for h := range cp.open {
		handles = append(handles, h)
	}
	cp.mu.Unlock()

	for _, h := range handles {
		cp.Release(context.Background(), h)
	}

	log.Debug().Int("leaked", len(handles)).Msg("上下文池已关闭")
	return nil
}
