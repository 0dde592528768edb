package core

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/RecoveryAshes/FlickrExtractor/internal/cdn"
	"github.com/RecoveryAshes/FlickrExtractor/internal/crawlers"
	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
	"github.com/RecoveryAshes/FlickrExtractor/internal/utils"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// PageType 页面类型
type PageType string

const (
	PageAlbumsList  PageType = "albums-list"  // 集合列表页
	PageSingleAlbum PageType = "single-album" // 单个集合
	PagePhotostream PageType = "photostream"  // 其他flickr页面
	PageOther       PageType = "other"        // 非flickr页面
)

var singleAlbumPattern = regexp.MustCompile(`/(?:albums|sets)/\d+`)

// DetectPageType 根据URL判断页面类型
func DetectPageType(rawURL string) PageType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return PageOther
	}
	host := strings.ToLower(u.Hostname())
	if host != "flickr.com" && !strings.HasSuffix(host, ".flickr.com") {
		return PageOther
	}
	if strings.Contains(u.Path, "/albums") || strings.Contains(u.Path, "/sets") {
		if singleAlbumPattern.MatchString(u.Path) {
			return PageSingleAlbum
		}
		return PageAlbumsList
	}
	return PagePhotostream
}

// PageResult 当前页面的提取结果
type PageResult struct {
	Title string
	Table *models.IdentityTable
	Poll  *crawlers.PollResult // 仅 loadAll 时有值
}

// SessionStats 会话统计
type SessionStats struct {
	Albums int // 已发现的集合数
	Images int // 已提取的资源数(集合结果或当前页面)
}

// Session 一次提取会话
// 持有已发现的集合、集合采集结果和当前页面结果; 重新采集时整体替换, 外部只读取副本
type Session struct {
	ID      string
	pageURL string

	pool   *crawlers.ContextPool
	host   crawlers.Host
	agg    *crawlers.Aggregator
	config models.CrawlConfig

	sched    crawlers.Scheduler
	reporter ProgressReporter

	mu      sync.RWMutex
	members []models.CollectionMember
	results *models.CollectionResults
	page    *PageResult
}

// NewSession 创建会话, pageURL为当前活动页面的地址
func NewSession(pageURL string, pool *crawlers.ContextPool, agg *crawlers.Aggregator, config models.CrawlConfig) *Session {
	return &Session{
		ID:       uuid.NewString(),
		pageURL:  pageURL,
		pool:     pool,
		host:     pool.Host(),
		agg:      agg,
		config:   config,
		sched:    crawlers.TimerScheduler{},
		reporter: LogReporter{},
		results:  models.NewCollectionResults(),
	}
}

// SetReporter 设置集合采集的进度回调
func (s *Session) SetReporter(r ProgressReporter) {
	s.reporter = r
}

// SetScheduler 设置等待调度器
func (s *Session) SetScheduler(sched crawlers.Scheduler) {
	s.sched = sched
}

// PageURL 当前页面地址
func (s *Session) PageURL() string {
	return s.pageURL
}

// DiscoverCollections 在活动页面上查找集合
func (s *Session) DiscoverCollections(ctx context.Context) ([]models.CollectionMember, error) {
	handle, err := s.host.QueryActiveContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取活动页面失败: %w", err)
	}

	members, err := crawlers.ListingStrategy{}.Discover(ctx, s.host, handle, s.pageURL)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.members = members
	s.mu.Unlock()

	if len(members) == 0 {
		utils.Warnf("未找到集合, 请确认当前是集合列表页: %s", s.pageURL)
	} else {
		utils.Infof("📚 找到 %d 个集合", len(members))
	}
	return append([]models.CollectionMember(nil), members...), nil
}

// Members 已发现的集合
func (s *Session) Members() []models.CollectionMember {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CollectionMember(nil), s.members...)
}

// ExtractCurrentPage 提取活动页面的图片, loadAll时持续滚动直到稳定
func (s *Session) ExtractCurrentPage(ctx context.Context, loadAll bool) (*PageResult, error) {
	handle, err := s.host.QueryActiveContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取活动页面失败: %w", err)
	}

	title, err := crawlers.ReadTitle(ctx, s.host, handle)
	if err != nil {
		utils.Debugf("读取页面标题失败: %v", err)
	}

	result := &PageResult{Title: strings.TrimSpace(title)}
	if loadAll {
		poller := crawlers.NewPoller(s.agg, s.sched, crawlers.PollerConfig{
			Interval:        s.config.PollInterval,
			MaxPolls:        s.config.MaxPolls,
			StableThreshold: s.config.StableThreshold,
		})
		poller.OnPoll = func(poll, count int) {
			utils.Infof("⏳ 加载更多: 第%d轮, 已找到%d张", poll, count)
		}
		pr, err := poller.Run(ctx, s.host, handle)
		result.Table = pr.Table
		result.Poll = &pr
		if err != nil {
			return nil, err
		}
		utils.Infof("加载完成 (%s, %d轮)", pr.State, pr.Polls)
	} else {
		table, _, err := s.agg.AggregateNew(ctx, s.host, handle)
		if err != nil {
			return nil, err
		}
		result.Table = table
	}

	s.mu.Lock()
	s.page = result
	s.mu.Unlock()

	utils.Infof("🖼️  当前页面找到 %d 张图片", result.Table.Len())
	return result, nil
}

// CrawlCollections 采集已发现的集合, selected为空时采集全部, 否则只采集指定ID
// 结果整体替换上一次采集的结果, 出错时仍保留已完成部分
func (s *Session) CrawlCollections(ctx context.Context, selected []string) (*models.CollectionResults, error) {
	members := s.Members()
	if len(members) == 0 {
		return nil, fmt.Errorf("没有可采集的集合, 请先查找集合")
	}
	if len(selected) > 0 {
		want := lo.SliceToMap(selected, func(id string) (string, bool) { return strings.TrimSpace(id), true })
		members = lo.Filter(members, func(m models.CollectionMember, _ int) bool { return want[m.ID] })
		if len(members) == 0 {
			return nil, fmt.Errorf("所选集合不存在: %s", strings.Join(selected, ","))
		}
	}

	crawler := NewCollectionCrawler(s.pool, s.agg, s.config)
	crawler.SetReporter(s.reporter)
	crawler.SetScheduler(s.sched)

	results, err := crawler.Crawl(ctx, members)

	s.mu.Lock()
	s.results = results
	s.mu.Unlock()

	return results.Clone(), err
}

// Results 集合采集结果的副本
func (s *Session) Results() *models.CollectionResults {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results.Clone()
}

// Page 当前页面结果的副本
func (s *Session) Page() *PageResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.page == nil {
		return nil
	}
	c := *s.page
	c.Table = s.page.Table.Clone()
	return &c
}

// Stats 会话统计
func (s *Session) Stats() SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := SessionStats{Albums: len(s.members)}
	if s.results.Len() > 0 {
		stats.Images = s.results.TotalResources()
	} else if s.page != nil {
		stats.Images = s.page.Table.Len()
	}
	return stats
}

// FormatText 按档位输出当前结果, 有集合结果时优先输出集合
func (s *Session) FormatText(tier cdn.Tier) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.results.Len() > 0 {
		return FormatAsText(s.results, tier)
	}
	if s.page != nil {
		return FormatPageText(s.page.Title, s.page.Table, tier)
	}
	return ""
}
