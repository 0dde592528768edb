// Package crawlers 提供页面宿主、扫描策略、跨策略聚合和稳定检测
//
// # 概述
//
// crawlers包通过 Host 接口驱动页面: 动态模式使用go-rod打开浏览器标签页,
// 静态模式使用Colly抓取HTML文档。所有页面读取都以已注册的扫描载荷(Payload)完成,
// 宿主返回未规范化的原始URL, 规范化和去重由 Aggregator 统一处理。
//
// # 核心组件
//
// ## Host (页面宿主)
//
//	host, err := NewRodHost(RodHostConfig{Headless: true, Headers: headers})
//	if err != nil { /* 处理错误 */ }
//	defer host.Close()
//
//	handle, err := host.QueryActiveContext(ctx)
//
// StaticHost 对同一组载荷在Go中求值, 滚动载荷为空操作。
//
// ## Strategy / Aggregator
//
// 三种扫描策略按固定顺序执行: 已渲染元素、计算样式、内嵌脚本。
// 单个策略失败只记录日志; 宿主不可用或ctx取消时整次聚合返回错误。
//
//	agg := NewAggregator(cdn.NewCanonicalizer(cdn.Options{}))
//	table, stats, err := agg.AggregateNew(ctx, host, handle)
//
// ## Poller (稳定检测)
//
// 无限滚动页面: 先滚到顶部做基线聚合, 之后每轮滚到底部、等待、重新聚合,
// 资源数连续 StableThreshold 轮不变即为 Stable, 达到 MaxPolls 为 Exhausted。
//
//	p := NewPoller(agg, nil, PollerConfig{Interval: 1200 * time.Millisecond, MaxPolls: 30, StableThreshold: 3})
//	result, err := p.Run(ctx, host, handle)
//
// ## ContextPool / ResourceMonitor
//
// ContextPool 限制同时打开的上下文数量, 打开前检查 ResourceMonitor;
// Release 使用与调用方取消无关的ctx, 保证已打开的上下文一定被关闭。
//
// ## MemberQueue
//
// 列表页发现的集合成员按发现顺序入队, 同一ID只入队一次。
//
// # 并发安全
//
//   - RodHost/StaticHost: sync.RWMutex
//   - ContextPool: sync.Mutex
//   - MemberQueue: channel + sync.RWMutex
//   - ResourceMonitor: sync.RWMutex
//   - Aggregator/Poller 本身无共享状态, 身份表由调用方独占
package crawlers
