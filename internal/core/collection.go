package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RecoveryAshes/FlickrExtractor/internal/crawlers"
	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
	"github.com/RecoveryAshes/FlickrExtractor/internal/utils"
)

const (
	reasonCancelled       = "已取消"
	reasonHostUnavailable = "浏览器不可用"
	reasonExhausted       = "达到最大轮询次数仍未稳定"
)

// ProgressReporter 采集进度回调
type ProgressReporter interface {
	OnProgress(current, total int, label string)
	OnError(memberID, reason string)
	OnComplete(results *models.CollectionResults)
}

// LogReporter 把进度写入日志
type LogReporter struct{}

func (LogReporter) OnProgress(current, total int, label string) {
	utils.Infof("📁 [%d/%d] %s", current, total, label)
}

func (LogReporter) OnError(memberID, reason string) {
	utils.Warnf("集合 %s 采集失败: %s", memberID, reason)
}

func (LogReporter) OnComplete(results *models.CollectionResults) {
	counts := results.CountByStatus()
	utils.Infof("✅ 集合采集完成: %d个集合, %d张图片 (失败%d, 跳过%d)",
		results.Len(), results.TotalResources(), counts[models.StatusFailed], counts[models.StatusSkipped])
}

// CollectionCrawler 顺序采集集合成员
// 每个子页面打开一个浏览上下文, 用完立即关闭, 任意时刻最多一个上下文处于打开状态
type CollectionCrawler struct {
	pool     *crawlers.ContextPool
	host     crawlers.Host
	agg      *crawlers.Aggregator
	config   models.CrawlConfig
	sched    crawlers.Scheduler
	reporter ProgressReporter
}

// NewCollectionCrawler 创建集合采集器
func NewCollectionCrawler(pool *crawlers.ContextPool, agg *crawlers.Aggregator, config models.CrawlConfig) *CollectionCrawler {
	return &CollectionCrawler{
		pool:     pool,
		host:     pool.Host(),
		agg:      agg,
		config:   config,
		sched:    crawlers.TimerScheduler{},
		reporter: LogReporter{},
	}
}

// SetReporter 设置进度回调, nil恢复为日志输出
func (cc *CollectionCrawler) SetReporter(r ProgressReporter) {
	if r == nil {
		r = LogReporter{}
	}
	cc.reporter = r
}

// SetScheduler 设置等待调度器(加载后的等待和稳定检测轮询)
func (cc *CollectionCrawler) SetScheduler(s crawlers.Scheduler) {
	if s == nil {
		s = crawlers.TimerScheduler{}
	}
	cc.sched = s
}

// Crawl 依次采集members, 返回按成员输入顺序排列的结果
// 校验失败的成员直接记为failed, ID为空或重复的成员忽略
// 单个成员失败只记录在结果中; 宿主不可用时中止并返回 ErrHostUnavailable;
// ctx取消时未访问的成员记为skipped, 返回ctx错误
func (cc *CollectionCrawler) Crawl(ctx context.Context, members []models.CollectionMember) (*models.CollectionResults, error) {
	results := models.NewCollectionResults()

	queue := crawlers.NewMemberQueue(len(members))
	defer queue.Close()
	seen := make(map[string]bool, len(members))
	invalid := 0
	for _, m := range members {
		if m.ID == "" || seen[m.ID] {
			utils.Warnf("跳过集合成员 [%s]: ID为空或重复", m.ID)
			continue
		}
		seen[m.ID] = true
		if err := m.Validate(); err != nil {
			results.Put(models.NewFailedResult(m, err.Error()))
			cc.reporter.OnError(m.ID, err.Error())
			invalid++
			continue
		}
		if err := queue.Push(m); err != nil {
			results.Put(models.NewFailedResult(m, err.Error()))
			cc.reporter.OnError(m.ID, err.Error())
			invalid++
		}
	}

	total := queue.PendingCount() + invalid
	current := invalid
	var abortErr error

	for abortErr == nil {
		if err := ctx.Err(); err != nil {
			abortErr = err
			break
		}
		member, ok := queue.Pop(ctx)
		if !ok {
			break
		}
		current++
		cc.reporter.OnProgress(current, total, member.DisplayTitle())

		result, err := cc.crawlMember(ctx, member)
		results.Put(result)
		if result.Status == models.StatusFailed {
			cc.reporter.OnError(member.ID, result.Reason)
		}
		if err != nil {
			abortErr = err
		}
	}

	if abortErr != nil {
		reason := reasonCancelled
		if errors.Is(abortErr, crawlers.ErrHostUnavailable) {
			reason = reasonHostUnavailable
			utils.Errorf("❌ 浏览器不可用,中止采集: %v", abortErr)
		} else {
			utils.Warnf("采集已取消")
		}
		for _, m := range queue.Drain() {
			results.Put(models.NewSkippedResult(m, reason))
		}
	}

	ordered := inputOrder(members, results)
	cc.reporter.OnComplete(ordered.Clone())
	return ordered, abortErr
}

// inputOrder 按members的输入顺序重排结果, 重复ID只保留第一次出现的位置
func inputOrder(members []models.CollectionMember, results *models.CollectionResults) *models.CollectionResults {
	ordered := models.NewCollectionResults()
	for _, m := range members {
		if r, ok := results.Get(m.ID); ok {
			ordered.Put(r)
		}
	}
	return ordered
}

// crawlMember 采集单个成员的全部子页面
// 返回的错误只有两类: 宿主不可用、ctx取消; 其他失败记录在结果中
func (cc *CollectionCrawler) crawlMember(ctx context.Context, member models.CollectionMember) (*models.CollectionResult, error) {
	result := &models.CollectionResult{
		MemberID:  member.ID,
		Title:     member.DisplayTitle(),
		SourceURL: member.SourceURL,
		Table:     models.NewIdentityTable(),
		Status:    models.StatusCompleted,
	}

	var failure string
	var fatal error

	for n := 1; n <= cc.config.MaxSubPages; n++ {
		if err := ctx.Err(); err != nil {
			fatal = err
			break
		}

		page := models.NewSubPage(member, n)
		added, html, err := cc.crawlSubPage(ctx, page, result)
		if err != nil {
			if isFatal(ctx, err) {
				fatal = err
			} else {
				failure = fmt.Sprintf("第%d页: %v", n, err)
				utils.Warnf("子页面采集失败 [%s]: %v", page.URL, err)
			}
			break
		}
		result.SubPages++
		utils.Debugf("子页面 %s: 新增%d, 累计%d", page.URL, added, result.Table.Len())

		if added == 0 || !strings.Contains(html, models.NextPageMarker(n)) {
			break
		}
	}

	switch {
	case fatal != nil:
		reason := reasonCancelled
		if errors.Is(fatal, crawlers.ErrHostUnavailable) {
			reason = reasonHostUnavailable
		}
		if result.Table.Len() == 0 {
			if errors.Is(fatal, crawlers.ErrHostUnavailable) {
				result.Status = models.StatusFailed
			} else {
				result.Status = models.StatusSkipped
			}
		} else {
			result.Status = models.StatusPartial
		}
		result.Reason = reason
		return result, fatal
	case failure != "" && result.Table.Len() == 0:
		result.Status = models.StatusFailed
		result.Reason = failure
	case failure != "":
		result.Status = models.StatusPartial
		result.Reason = failure
	case result.Exhausted:
		result.Status = models.StatusPartial
		result.Reason = reasonExhausted
	}
	return result, nil
}

// crawlSubPage 打开子页面, 等待加载后聚合, 最后读取页面HTML用于判断是否还有下一页
// 加载超时仍尽量聚合已渲染的内容, 再返回加载错误
func (cc *CollectionCrawler) crawlSubPage(ctx context.Context, page models.SubPage, result *models.CollectionResult) (added int, html string, err error) {
	handle, err := cc.pool.Acquire(ctx, page.URL)
	if err != nil {
		return 0, "", fmt.Errorf("打开页面失败: %w", err)
	}
	defer cc.pool.Release(ctx, handle)

	loadErr := cc.host.WaitLoad(ctx, handle, cc.config.LoadTimeout)
	if loadErr != nil && isFatal(ctx, loadErr) {
		return 0, "", loadErr
	}
	if loadErr == nil {
		if err := cc.sched.Wait(ctx, cc.config.SettleDelay); err != nil {
			return 0, "", err
		}
	}

	before := result.Table.Len()
	if cc.config.UsePoller && loadErr == nil {
		poller := crawlers.NewPoller(cc.agg, cc.sched, crawlers.PollerConfig{
			Interval:        cc.config.PollInterval,
			MaxPolls:        cc.config.MaxPolls,
			StableThreshold: cc.config.StableThreshold,
		})
		pr, perr := poller.Run(ctx, cc.host, handle)
		result.Table.Merge(pr.Table)
		result.Polls += pr.Polls
		if perr == nil && pr.State == crawlers.PollExhausted {
			result.Exhausted = true
			utils.Warnf("子页面 %s 达到最大轮询次数仍未稳定, 结果可能不完整", page.URL)
		}
		err = perr
	} else {
		_, err = cc.agg.Aggregate(ctx, cc.host, handle, result.Table)
	}
	added = result.Table.Len() - before

	if err != nil {
		return added, "", err
	}
	if loadErr != nil {
		return added, "", loadErr
	}

	html, err = crawlers.ReadHTML(ctx, cc.host, handle)
	if err != nil {
		if isFatal(ctx, err) {
			return added, "", err
		}
		utils.Debugf("读取页面HTML失败 [%s]: %v", page.URL, err)
		html = ""
	}
	return added, html, nil
}

// isFatal 宿主不可用或ctx已结束
func isFatal(ctx context.Context, err error) bool {
	return errors.Is(err, crawlers.ErrHostUnavailable) || ctx.Err() != nil
}
