package crawlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// growingPage 每次渲染扫描返回的资源数依次为counts
func growingPage(counts ...int) *fakePage {
	page := &fakePage{}
	for _, n := range counts {
		page.rendered = append(page.rendered, cdnURLs(n, "b"))
	}
	return page
}

func TestPoller_StableAfterThreshold(t *testing.T) {
	host := newFakeHost()
	handle := host.openActive(albumURL1, growingPage(5, 8, 8, 8, 8))
	sched := &instantScheduler{}

	var polls []int
	p := NewPoller(NewAggregator(nil), sched, PollerConfig{Interval: time.Second, MaxPolls: 30, StableThreshold: 3})
	p.OnPoll = func(poll, count int) { polls = append(polls, count) }

	result, err := p.Run(context.Background(), host, handle)
	require.NoError(t, err)

	assert.Equal(t, PollStable, result.State)
	assert.Equal(t, 4, result.Polls)
	assert.Equal(t, 8, result.Count)
	assert.Equal(t, 8, result.Table.Len())
	assert.Equal(t, []int{8, 8, 8, 8}, polls)
	assert.Equal(t, 4, sched.waits)

	// 入口和结束各滚到顶部一次, 每轮滚到底部一次
	assert.Equal(t, 2, host.countEvaluated(PayloadScrollTop))
	assert.Equal(t, 4, host.countEvaluated(PayloadScrollBottom))
}

func TestPoller_Exhausted(t *testing.T) {
	host := newFakeHost()
	handle := host.openActive(albumURL1, growingPage(1, 2, 3, 4, 5, 6))

	p := NewPoller(NewAggregator(nil), &instantScheduler{}, PollerConfig{MaxPolls: 4, StableThreshold: 3})
	result, err := p.Run(context.Background(), host, handle)
	require.NoError(t, err)

	assert.Equal(t, PollExhausted, result.State)
	assert.Equal(t, 4, result.Polls)
	assert.Equal(t, 5, result.Count)
}

func TestPoller_StaticPageStabilizes(t *testing.T) {
	host := newFakeHost()
	handle := host.openActive(albumURL1, growingPage(3))

	p := NewPoller(NewAggregator(nil), &instantScheduler{}, PollerConfig{MaxPolls: 10, StableThreshold: 2})
	result, err := p.Run(context.Background(), host, handle)
	require.NoError(t, err)

	assert.Equal(t, PollStable, result.State)
	assert.Equal(t, 2, result.Polls)
	assert.Equal(t, 3, result.Count)
}

func TestPoller_MonotonicTable(t *testing.T) {
	host := newFakeHost()
	// 虚拟列表: 后面的扫描看不到前面的资源, 表中资源不会减少
	page := &fakePage{rendered: [][]string{
		{cdnURL(1, "b"), cdnURL(2, "b")},
		{cdnURL(3, "b")},
		{cdnURL(4, "b")},
	}}
	handle := host.openActive(albumURL1, page)

	p := NewPoller(NewAggregator(nil), &instantScheduler{}, PollerConfig{MaxPolls: 10, StableThreshold: 1})
	result, err := p.Run(context.Background(), host, handle)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Count)
}

func TestPoller_Cancelled(t *testing.T) {
	host := newFakeHost()
	handle := host.openActive(albumURL1, growingPage(2, 4, 6))

	ctx, cancel := context.WithCancel(context.Background())
	p := NewPoller(NewAggregator(nil), &instantScheduler{}, PollerConfig{MaxPolls: 10, StableThreshold: 3})
	p.OnPoll = func(poll, count int) {
		if poll == 1 {
			cancel()
		}
	}

	result, err := p.Run(ctx, host, handle)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PollPolling, result.State)
	assert.Equal(t, 4, result.Count)
	assert.Equal(t, 1, result.Polls)
}

func TestPoller_HostUnavailable(t *testing.T) {
	host := newFakeHost()
	handle := host.openActive(albumURL1, growingPage(2))
	host.crash()

	result, err := NewPoller(NewAggregator(nil), &instantScheduler{}, PollerConfig{}).Run(context.Background(), host, handle)
	assert.ErrorIs(t, err, ErrHostUnavailable)
	assert.Equal(t, PollIdle, result.State, "基线聚合失败")
	assert.Zero(t, result.Polls)
}

func TestTimerScheduler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, TimerScheduler{}.Wait(ctx, time.Hour), context.Canceled)
	assert.NoError(t, TimerScheduler{}.Wait(context.Background(), time.Millisecond))
}
