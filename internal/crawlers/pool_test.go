package crawlers

import (
	"context"
	"testing"

	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextPool_Limit(t *testing.T) {
	host := newFakeHost()
	host.pages["https://a"] = &fakePage{}
	host.pages["https://b"] = &fakePage{}

	pool := NewContextPool(host, nil, 1)
	ctx := context.Background()

	h1, err := pool.Acquire(ctx, "https://a")
	require.NoError(t, err)

	_, err = pool.Acquire(ctx, "https://b")
	assert.ErrorIs(t, err, ErrContextLimit)

	pool.Release(ctx, h1)
	assert.Zero(t, pool.OpenCount())
	assert.Zero(t, host.OpenContexts())

	h2, err := pool.Acquire(ctx, "https://b")
	require.NoError(t, err)
	pool.Release(ctx, h2)
	pool.Release(ctx, h2) // 重复释放无副作用

	stats := pool.Stats()
	assert.Equal(t, PoolStats{Opened: 2, Closed: 2, Peak: 1}, stats)
}

func TestContextPool_ReleaseAfterCancel(t *testing.T) {
	host := newFakeHost()
	host.pages["https://a"] = &fakePage{}
	pool := NewContextPool(host, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	h, err := pool.Acquire(ctx, "https://a")
	require.NoError(t, err)

	cancel()
	pool.Release(ctx, h)
	assert.Zero(t, host.OpenContexts())
}

func TestContextPool_CloseReleasesAll(t *testing.T) {
	host := newFakeHost()
	host.pages["https://a"] = &fakePage{}
	host.pages["https://b"] = &fakePage{}
	pool := NewContextPool(host, nil, 2)

	_, err := pool.Acquire(context.Background(), "https://a")
	require.NoError(t, err)
	_, err = pool.Acquire(context.Background(), "https://b")
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Stats().Peak)

	require.NoError(t, pool.Close())
	assert.Zero(t, host.OpenContexts())

	_, err = pool.Acquire(context.Background(), "https://a")
	assert.Error(t, err)
}

func TestContextPool_LowResources(t *testing.T) {
	host := newFakeHost()
	host.pages["https://a"] = &fakePage{}

	// 要求的可用内存远超任何机器
	monitor := NewResourceMonitor(ResourceMonitorConfig{MinAvailableMemory: 1 << 62})
	pool := NewContextPool(host, monitor, 1)

	_, err := pool.Acquire(context.Background(), "https://a")
	assert.ErrorIs(t, err, ErrLowResources)
	assert.Zero(t, host.OpenContexts())
}

func TestContextPool_CreateFailure(t *testing.T) {
	host := newFakeHost()
	pool := NewContextPool(host, nil, 1)

	_, err := pool.Acquire(context.Background(), "https://missing")
	assert.Error(t, err)
	assert.Zero(t, pool.OpenCount())
}

func TestResourceMonitor(t *testing.T) {
	monitor := NewResourceMonitor(ResourceMonitorConfig{CPULoadThreshold: 200})
	ok, reason := monitor.CheckResourceAvailability()
	assert.True(t, ok)
	assert.Empty(t, reason)

	status := monitor.GetMemoryStatus()
	assert.NotEmpty(t, status.MemoryPressure)

	monitor.StartMonitoring(0)
	monitor.StartMonitoring(0)
	monitor.StopMonitoring()
	monitor.StopMonitoring()
}

func TestMemberQueue(t *testing.T) {
	q := NewMemberQueue(3)
	ctx := context.Background()

	a := models.CollectionMember{ID: "1", Title: "A", SourceURL: "https://www.flickr.com/photos/x/albums/1"}
	b := models.CollectionMember{ID: "2", Title: "B", SourceURL: "https://www.flickr.com/photos/x/albums/2"}

	require.NoError(t, q.Push(a))
	require.NoError(t, q.Push(b))
	assert.Error(t, q.Push(a), "重复ID应被拒绝")
	assert.Error(t, q.Push(models.CollectionMember{ID: "3"}), "无效URL应被拒绝")
	assert.Equal(t, 2, q.PendingCount())

	got, ok := q.Pop(ctx)
	require.True(t, ok)
	assert.Equal(t, "1", got.ID)

	rest := q.Drain()
	require.Len(t, rest, 1)
	assert.Equal(t, "2", rest[0].ID)

	_, ok = q.Pop(ctx)
	assert.False(t, ok)

	q.Close()
	assert.Error(t, q.Push(models.CollectionMember{ID: "4", SourceURL: "https://www.flickr.com/photos/x/albums/4"}))
}

func TestMemberQueue_Full(t *testing.T) {
	q := NewMemberQueue(1)
	require.NoError(t, q.Push(models.CollectionMember{ID: "1", SourceURL: "https://a/1"}))
	assert.Error(t, q.Push(models.CollectionMember{ID: "2", SourceURL: "https://a/2"}))
}

func TestMemberQueue_PopCancelled(t *testing.T) {
	q := NewMemberQueue(1)
	require.NoError(t, q.Push(models.CollectionMember{ID: "1", SourceURL: "https://a/1"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := q.Pop(ctx)
	assert.False(t, ok)
	assert.Equal(t, 1, q.PendingCount())
}
