package crawlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
)

// MemberQueue 集合成员队列
// 职责: 按加入顺序提供待采集成员, 同一ID只入队一次
type MemberQueue struct {
	pending chan models.CollectionMember
	seen    map[string]bool
	mu      sync.RWMutex
	closed  bool
}

// NewMemberQueue 创建容量为capacity的队列
func NewMemberQueue(capacity int) *MemberQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &MemberQueue{
		pending: make(chan models.CollectionMember, capacity),
		seen:    make(map[string]bool),
	}
}

// Push 加入成员, 校验失败或重复时返回错误
func (q *MemberQueue) Push(m models.CollectionMember) error {
	if err := m.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("队列已关闭")
	}
	if q.seen[m.ID] {
		return fmt.Errorf("集合已在队列中: %s", m.ID)
	}

	select {
	case q.pending <- m:
		q.seen[m.ID] = true
		return nil
	default:
		return fmt.Errorf("队列已满(容量%d)", cap(q.pending))
	}
}

// Pop 取出下一个成员, 队列为空或ctx取消时返回false
func (q *MemberQueue) Pop(ctx context.Context) (models.CollectionMember, bool) {
	if ctx.Err() != nil {
		return models.CollectionMember{}, false
	}
	select {
	case m, ok := <-q.pending:
		return m, ok
	default:
		return models.CollectionMember{}, false
	}
}

// Drain 取出所有剩余成员
func (q *MemberQueue) Drain() []models.CollectionMember {
	var rest []models.CollectionMember
	for {
		select {
		case m, ok := <-q.pending:
			if !ok {
				return rest
			}
			rest = append(rest, m)
		default:
			return rest
		}
	}
}

// PendingCount 待处理数量
func (q *MemberQueue) PendingCount() int {
	return len(q.pending)
}

// Close 关闭队列, 之后Push返回错误
func (q *MemberQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		close(q.pending)
		q.closed = true
	}
}
