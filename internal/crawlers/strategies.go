package crawlers

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
	"github.com/rs/zerolog/log"
)

// Strategy 媒体URL扫描策略
// 每种策略对应一个只读的扫描载荷, 返回未规范化的候选URL
type Strategy interface {
	Name() string
	Scan(ctx context.Context, host Host, handle ContextHandle) ([]string, error)
}

// evaluate 执行已注册载荷并校验结果
func evaluate(ctx context.Context, host Host, handle ContextHandle, p Payload) (*ScanResult, error) {
	if !IsRegistered(p) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPayload, p)
	}
	res, err := host.Evaluate(ctx, handle, p)
	if err != nil {
		return nil, err
	}
	if err := res.Validate(p); err != nil {
		return nil, err
	}
	return res, nil
}

// RenderedElementStrategy 已渲染元素: img的src/currentSrc/srcset/data-src, source的srcset, 内联style背景
type RenderedElementStrategy struct{}

func (RenderedElementStrategy) Name() string { return "rendered" }

func (RenderedElementStrategy) Scan(ctx context.Context, host Host, handle ContextHandle) ([]string, error) {
	res, err := evaluate(ctx, host, handle, PayloadRenderedMedia)
	if err != nil {
		return nil, err
	}
	return res.URLs, nil
}

// ComputedStyleStrategy 计算样式中的背景图
type ComputedStyleStrategy struct{}

func (ComputedStyleStrategy) Name() string { return "styles" }

func (ComputedStyleStrategy) Scan(ctx context.Context, host Host, handle ContextHandle) ([]string, error) {
	res, err := evaluate(ctx, host, handle, PayloadStyleMedia)
	if err != nil {
		return nil, err
	}
	return res.URLs, nil
}

// EmbeddedScriptStrategy 内嵌脚本
// 载荷只返回脚本原文, URL匹配在这里完成
type EmbeddedScriptStrategy struct{}

func (EmbeddedScriptStrategy) Name() string { return "scripts" }

func (EmbeddedScriptStrategy) Scan(ctx context.Context, host Host, handle ContextHandle) ([]string, error) {
	res, err := evaluate(ctx, host, handle, PayloadScriptTexts)
	if err != nil {
		return nil, err
	}
	var urls []string
	for _, text := range res.Texts {
		urls = append(urls, ExtractCDNURLs(text)...)
	}
	return urls, nil
}

// DefaultStrategies 默认策略, 按固定顺序执行
func DefaultStrategies() []Strategy {
	return []Strategy{
		RenderedElementStrategy{},
		ComputedStyleStrategy{},
		EmbeddedScriptStrategy{},
	}
}

// ListingStrategy 列表页集合发现
type ListingStrategy struct{}

// Discover 扫描列表页中的集合链接, 返回通过校验的成员(按ID去重)
// 页面链接全部缺失时回退到内嵌脚本中的集合数据
func (ListingStrategy) Discover(ctx context.Context, host Host, handle ContextHandle, pageURL string) ([]models.CollectionMember, error) {
	res, err := evaluate(ctx, host, handle, PayloadListingLinks)
	if err != nil {
		return nil, fmt.Errorf("扫描集合链接失败: %w", err)
	}

	raw := res.Members
	if len(raw) == 0 {
		scripts, err := evaluate(ctx, host, handle, PayloadScriptTexts)
		if err != nil {
			log.Warn().Err(err).Msg("读取内嵌脚本失败,跳过脚本回退")
		} else {
			raw = MembersFromScripts(scripts.Texts, pageURL)
		}
	}

	members := NormalizeMembers(raw, pageURL)
	log.Debug().Int("raw", len(raw)).Int("valid", len(members)).Str("url", pageURL).Msg("集合发现完成")
	return members, nil
}

// ReadTitle 读取页面标题(集合标题元素或文档标题)
func ReadTitle(ctx context.Context, host Host, handle ContextHandle) (string, error) {
	res, err := evaluate(ctx, host, handle, PayloadPageTitle)
	if err != nil {
		return "", err
	}
	return res.Title, nil
}

// ReadHTML 读取页面HTML
func ReadHTML(ctx context.Context, host Host, handle ContextHandle) (string, error) {
	res, err := evaluate(ctx, host, handle, PayloadPageHTML)
	if err != nil {
		return "", err
	}
	if len(res.Texts) == 0 {
		return "", nil
	}
	return res.Texts[0], nil
}

// scroll 执行滚动载荷
func scroll(ctx context.Context, host Host, handle ContextHandle, p Payload) error {
	_, err := evaluate(ctx, host, handle, p)
	return err
}
