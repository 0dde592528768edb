package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/FlickrExtractor/internal/crawlers"
	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
	"github.com/RecoveryAshes/FlickrExtractor/internal/utils"
)

// BatchCrawler 批量提取器, 依次处理URL列表
type BatchCrawler struct {
	config         *Config
	opts           RunOptions
	batchDelay     time.Duration
	continueOnErr  bool
	headerProvider models.HeaderProvider

	// newCrawler 可替换, 便于设置宿主工厂等
	newCrawler func(targetURL string) (*Crawler, error)
}

// BatchResult 单个URL的结果
type BatchResult struct {
	URL         string
	Success     bool
	Error       error
	Run         *RunResult
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量提取摘要
type BatchSummary struct {
	TotalURLs      int
	SuccessCount   int
	FailCount      int
	TotalResources int
	TotalDuration  float64
	Results        []BatchResult
}

// NewBatchCrawler 创建批量提取器
func NewBatchCrawler(config *Config, opts RunOptions, batchDelay time.Duration, continueOnErr bool, headerProvider models.HeaderProvider) *BatchCrawler {
	bc := &BatchCrawler{
		config:         config,
		opts:           opts,
		batchDelay:     batchDelay,
		continueOnErr:  continueOnErr,
		headerProvider: headerProvider,
	}
	bc.newCrawler = func(targetURL string) (*Crawler, error) {
		return NewCrawler(targetURL, bc.config, bc.headerProvider)
	}
	return bc
}

// SetCrawlerFactory 替换单个URL提取器的创建方式
func (bc *BatchCrawler) SetCrawlerFactory(f func(targetURL string) (*Crawler, error)) {
	bc.newCrawler = f
}

// CrawlBatch 批量提取URL列表
// 宿主不可用或ctx取消时停止处理剩余URL
func (bc *BatchCrawler) CrawlBatch(ctx context.Context, urls []string) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量提取: %d个URL", len(urls))

	summary := &BatchSummary{
		TotalURLs: len(urls),
		Results:   make([]BatchResult, 0, len(urls)),
	}
	startTime := time.Now()

	for i, targetURL := range urls {
		if err := ctx.Err(); err != nil {
			summary.TotalDuration = time.Since(startTime).Seconds()
			return summary, err
		}

		utils.Infof("==================== [%d/%d] ====================", i+1, len(urls))
		utils.Infof("目标URL: %s", targetURL)

		result := bc.crawlSingleURL(ctx, targetURL)
		summary.Results = append(summary.Results, result)

		if result.Success {
			summary.SuccessCount++
			summary.TotalResources += runResources(result.Run)
		} else {
			summary.FailCount++
			utils.Errorf("❌ 提取失败: %v", result.Error)

			if errors.Is(result.Error, crawlers.ErrHostUnavailable) || ctx.Err() != nil {
				break
			}
			if !bc.continueOnErr {
				utils.Warn("批量提取中止 (--continue-on-error=false)")
				break
			}
		}

		if i < len(urls)-1 && bc.batchDelay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一个URL...", bc.batchDelay.Seconds())
			if err := (crawlers.TimerScheduler{}).Wait(ctx, bc.batchDelay); err != nil {
				break
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()
	bc.printSummary(summary)
	return summary, ctx.Err()
}

// crawlSingleURL 提取单个URL
func (bc *BatchCrawler) crawlSingleURL(ctx context.Context, targetURL string) BatchResult {
	result := BatchResult{URL: targetURL, ProcessedAt: time.Now()}
	startTime := time.Now()

	crawler, err := bc.newCrawler(targetURL)
	if err != nil {
		result.Error = fmt.Errorf("创建提取器失败: %w", err)
		result.Duration = time.Since(startTime).Seconds()
		return result
	}

	run, err := crawler.Run(ctx, bc.opts)
	result.Run = run
	result.Duration = time.Since(startTime).Seconds()
	if err != nil {
		result.Error = err
		return result
	}
	result.Success = true
	return result
}

// runResources 单次运行得到的资源数
func runResources(run *RunResult) int {
	if run == nil {
		return 0
	}
	if run.Results != nil {
		return run.Results.TotalResources()
	}
	if run.Page != nil {
		return run.Page.Table.Len()
	}
	return 0
}

// printSummary 打印批量提取摘要
func (bc *BatchCrawler) printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 批量提取摘要")
	utils.Info("==================================================")
	utils.Infof("总URL数: %d", summary.TotalURLs)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("🖼️  图片总数: %d", summary.TotalResources)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的URL:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.URL, result.Error)
			}
		}
	}
}
