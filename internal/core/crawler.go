package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/RecoveryAshes/FlickrExtractor/internal/cdn"
	"github.com/RecoveryAshes/FlickrExtractor/internal/crawlers"
	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
	"github.com/RecoveryAshes/FlickrExtractor/internal/utils"
)

// HostFactory 创建页面宿主
type HostFactory func(config *Config, headers http.Header) (crawlers.Host, error)

// DefaultHostFactory 按 browser.mode 创建 RodHost 或 StaticHost
func DefaultHostFactory(config *Config, headers http.Header) (crawlers.Host, error) {
	switch config.Mode() {
	case models.ModeStatic:
		return crawlers.NewStaticHost(crawlers.StaticHostConfig{
			Timeout:            config.HTTP.Timeout,
			Headers:            headers,
			InsecureSkipVerify: config.HTTP.InsecureSkipVerify,
		}), nil
	default:
		return crawlers.NewRodHost(crawlers.RodHostConfig{
			Headless:   config.Crawl.Headless,
			BrowserBin: config.Browser.Bin,
			ControlURL: config.Browser.ControlURL,
			NoSandbox:  config.Browser.NoSandbox,
			Headers:    headers,
		})
	}
}

// RunOptions 单次运行选项
type RunOptions struct {
	LoadAll    bool     // 当前页面持续滚动直到稳定
	Selected   []string // 只采集这些集合ID
	ListOnly   bool     // 集合列表页只列出集合, 不采集
	ForcedType PageType // 非空时跳过URL判断
}

// RunResult 单次运行结果
type RunResult struct {
	Task       *models.CrawlTask
	PageType   PageType
	Members    []models.CollectionMember
	Results    *models.CollectionResults
	Page       *PageResult
	Text       string
	ReportPath string
}

// Crawler 主提取协调器
// 负责创建宿主、打开入口页面、按页面类型选择流程、输出文本和报告
type Crawler struct {
	config    *Config
	targetURL string
	tier      cdn.Tier

	headerProvider models.HeaderProvider
	hostFactory    HostFactory
	reporter       ProgressReporter
	sched          crawlers.Scheduler
}

// NewCrawler 创建主提取器
func NewCrawler(targetURL string, config *Config, headerProvider models.HeaderProvider) (*Crawler, error) {
	if err := models.ValidateURL(targetURL); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Crawler{
		config:         config,
		targetURL:      targetURL,
		tier:           config.Tier(),
		headerProvider: headerProvider,
		hostFactory:    DefaultHostFactory,
		reporter:       LogReporter{},
		sched:          crawlers.TimerScheduler{},
	}, nil
}

// SetHostFactory 替换宿主创建方式
func (c *Crawler) SetHostFactory(f HostFactory) {
	c.hostFactory = f
}

// SetReporter 设置集合采集的进度回调
func (c *Crawler) SetReporter(r ProgressReporter) {
	c.reporter = r
}

// SetScheduler 设置等待调度器
func (c *Crawler) SetScheduler(s crawlers.Scheduler) {
	c.sched = s
}

// Run 执行一次提取
// 流程:
//  1. 创建宿主并打开入口页面
//  2. 集合列表页: 查找集合, 关闭入口页面后依次采集
//  3. 其他页面: 提取当前页面
//  4. 生成文本输出和报告
func (c *Crawler) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	task, err := models.NewCrawlTask(c.targetURL, c.config.Mode(), c.config.Crawl)
	if err != nil {
		return nil, err
	}

	pageType := opts.ForcedType
	if pageType == "" {
		pageType = DetectPageType(c.targetURL)
	}
	task.PageType = string(pageType)
	task.Start()

	utils.Infof("🚀 开始提取任务")
	utils.Infof("目标URL: %s", c.targetURL)
	utils.Infof("页面类型: %s, 模式: %s, 档位: %s", pageType, task.Mode, c.tier)

	result := &RunResult{Task: task, PageType: pageType}
	runErr := c.run(ctx, task, pageType, opts, result)
	task.Finish(runErr, errors.Is(runErr, context.Canceled))

	if c.config.Output.Report && (result.Results != nil || result.Page != nil) {
		report := models.NewCrawlReport(task)
		if result.Results != nil {
			report.AddResults(result.Results, c.tier)
		} else {
			report.AddPage(result.Page.Title, result.Page.Table, c.tier)
		}
		path, err := utils.NewReporter(c.config.Output.BaseDir).GenerateReport(report)
		if err != nil {
			utils.Warnf("生成报告失败: %v", err)
		}
		result.ReportPath = path
	}

	if runErr != nil {
		return result, runErr
	}
	utils.Infof("✅ 提取任务完成, 耗时 %.2f秒", time.Since(*task.StartedAt).Seconds())
	return result, nil
}

func (c *Crawler) run(ctx context.Context, task *models.CrawlTask, pageType PageType, opts RunOptions, result *RunResult) error {
	var headers http.Header
	if c.headerProvider != nil {
		h, err := c.headerProvider.GetHeaders()
		if err != nil {
			return fmt.Errorf("加载请求头失败: %w", err)
		}
		headers = h
	}

	host, err := c.hostFactory(c.config, headers)
	if err != nil {
		return fmt.Errorf("%w: %v", crawlers.ErrHostUnavailable, err)
	}
	defer func() {
		if err := host.Close(); err != nil {
			utils.Warnf("关闭宿主失败: %v", err)
		}
	}()

	monitor := crawlers.NewResourceMonitor(crawlers.ResourceMonitorConfig{
		MinAvailableMemory: int64(c.config.Resource.MinAvailableMemory) * 1024 * 1024,
		CPULoadThreshold:   c.config.Resource.CPULoadThreshold,
	})
	monitor.StartMonitoring(c.config.Resource.MonitorInterval)
	defer monitor.StopMonitoring()

	pool := crawlers.NewContextPool(host, monitor, c.config.Resource.MaxContexts)
	defer pool.Close()

	agg := crawlers.NewAggregator(cdn.NewCanonicalizer(c.config.CanonicalizerOptions()))
	session := NewSession(c.targetURL, pool, agg, c.config.Crawl)
	session.SetReporter(c.reporter)
	session.SetScheduler(c.sched)
	utils.Debugf("会话ID: %s", session.ID)

	entry, err := c.openEntry(ctx, host)
	if err != nil {
		return err
	}
	entryOpen := true
	closeEntry := func() {
		if entryOpen {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := host.CloseContext(closeCtx, entry); err != nil {
				utils.Warnf("关闭入口页面失败: %v", err)
			}
			entryOpen = false
		}
	}
	defer closeEntry()

	if pageType == PageAlbumsList {
		members, err := session.DiscoverCollections(ctx)
		if err != nil {
			return err
		}
		result.Members = members
		if opts.ListOnly {
			return nil
		}
		if len(members) == 0 {
			return fmt.Errorf("未找到集合")
		}

		closeEntry()
		_, err = session.CrawlCollections(ctx, opts.Selected)
		result.Results = session.Results()
		result.Text = session.FormatText(c.tier)
		return err
	}

	page, err := session.ExtractCurrentPage(ctx, opts.LoadAll)
	if err != nil {
		return err
	}
	result.Page = page
	result.Text = session.FormatText(c.tier)
	return nil
}

// openEntry 打开入口页面并等待加载, 加载超时只记录警告
func (c *Crawler) openEntry(ctx context.Context, host crawlers.Host) (crawlers.ContextHandle, error) {
	handle, err := host.CreateContext(ctx, c.targetURL)
	if err != nil {
		if errors.Is(err, crawlers.ErrHostUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("打开入口页面失败: %w", err)
	}

	if err := host.WaitLoad(ctx, handle, c.config.Crawl.LoadTimeout); err != nil {
		if ctx.Err() != nil || errors.Is(err, crawlers.ErrHostUnavailable) {
			_ = host.CloseContext(context.WithoutCancel(ctx), handle)
			return "", err
		}
		utils.Warnf("入口页面加载未完成, 继续提取: %v", err)
	}
	if err := c.sched.Wait(ctx, c.config.Crawl.SettleDelay); err != nil {
		_ = host.CloseContext(context.WithoutCancel(ctx), handle)
		return "", err
	}
	return handle, nil
}
