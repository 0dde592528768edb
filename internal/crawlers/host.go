package crawlers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// 错误类型定义
var (
	ErrHostUnavailable = errors.New("宿主不可用(浏览器已关闭或崩溃)")
	ErrLoadTimeout     = errors.New("页面加载超时")
	ErrUnknownPayload  = errors.New("未知的扫描载荷")
	ErrContextLimit    = errors.New("已达浏览上下文数量上限")
	ErrInvalidResult   = errors.New("扫描结果无效")
	ErrLowResources    = errors.New("系统资源不足")
)

// ContextHandle 浏览上下文句柄(标签页/文档)
type ContextHandle string

// Host 页面自动化接口
// RodHost 以浏览器标签页作为上下文, StaticHost 以抓取到的静态文档作为上下文
type Host interface {
	// QueryActiveContext 返回当前活动上下文(用户正在查看的页面)
	QueryActiveContext(ctx context.Context) (ContextHandle, error)

	// CreateContext 打开URL并返回新的上下文; 宿主本身不可用时返回 ErrHostUnavailable
	CreateContext(ctx context.Context, url string) (ContextHandle, error)

	// WaitLoad 等待上下文加载完成, 超时返回 ErrLoadTimeout
	WaitLoad(ctx context.Context, handle ContextHandle, timeout time.Duration) error

	// Evaluate 在上下文中执行一个已注册的扫描载荷
	Evaluate(ctx context.Context, handle ContextHandle, payload Payload) (*ScanResult, error)

	// CloseContext 关闭上下文, 重复关闭不报错
	CloseContext(ctx context.Context, handle ContextHandle) error

	// OpenContexts 当前由本宿主打开且未关闭的上下文数量
	OpenContexts() int

	// Close 释放宿主资源
	Close() error
}

// RawMember 列表载荷返回的原始集合条目
type RawMember struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Count string `json:"count"` // 页面上的数量文本, 如 "128 photos"
}

// ScanResult 载荷执行结果
// URL字符串在边界两侧保持逐字节一致, 规范化由调用方完成
type ScanResult struct {
	Payload string      `json:"payload"`
	URLs    []string    `json:"urls,omitempty"`
	Members []RawMember `json:"members,omitempty"`
	Texts   []string    `json:"texts,omitempty"`
	Title   string      `json:"title,omitempty"`
}

// Validate 校验结果与载荷声明的输出类型一致
func (r *ScanResult) Validate(p Payload) error {
	if r == nil {
		return fmt.Errorf("%w: %s 返回空结果", ErrInvalidResult, p)
	}
	if r.Payload != "" && r.Payload != p.String() {
		return fmt.Errorf("%w: 期望 %s, 实际 %s", ErrInvalidResult, p, r.Payload)
	}

	switch p.Output {
	case OutputURLs:
		if len(r.Members) > 0 || len(r.Texts) > 0 {
			return fmt.Errorf("%w: %s 只应返回URL", ErrInvalidResult, p)
		}
	case OutputMembers:
		if len(r.URLs) > 0 || len(r.Texts) > 0 {
			return fmt.Errorf("%w: %s 只应返回集合条目", ErrInvalidResult, p)
		}
		for i, m := range r.Members {
			if m.ID == "" {
				return fmt.Errorf("%w: %s 第%d个条目缺少ID", ErrInvalidResult, p, i+1)
			}
		}
	case OutputTexts:
		if len(r.URLs) > 0 || len(r.Members) > 0 {
			return fmt.Errorf("%w: %s 只应返回文本", ErrInvalidResult, p)
		}
	case OutputNone:
		if len(r.URLs) > 0 || len(r.Members) > 0 || len(r.Texts) > 0 {
			return fmt.Errorf("%w: %s 不应返回数据", ErrInvalidResult, p)
		}
	}
	return nil
}
