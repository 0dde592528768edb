package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// GenerateReport 保存提取报告, 返回报告文件路径
func (r *Reporter) GenerateReport(report *models.CrawlReport) (string, error) {
	reportsDir := filepath.Join(r.outputDir, "reports")
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	data, err := report.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化JSON失败: %w", err)
	}

	name := "report.json"
	if report.TaskID != "" {
		name = fmt.Sprintf("report_%s.json", report.TaskID)
	}
	path := filepath.Join(reportsDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	Infof("✅ 报告已生成: %s", path)
	return path, nil
}

// NewProgressBar 创建进度条, 输出到stderr
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// BarReporter 以进度条展示集合采集进度
type BarReporter struct {
	bar *progressbar.ProgressBar
	mu  sync.Mutex
}

// NewBarReporter 创建进度条报告器
func NewBarReporter() *BarReporter {
	return &BarReporter{}
}

// OnProgress 更新当前进度, 首次调用时按total创建进度条
func (b *BarReporter) OnProgress(current, total int, label string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar == nil {
		b.bar = NewProgressBar(total, "采集集合")
	}
	b.bar.Describe(fmt.Sprintf("[%d/%d] %s", current, total, label))
	_ = b.bar.Set(current - 1)
}

// OnError 记录单个集合失败
func (b *BarReporter) OnError(memberID, reason string) {
	Warnf("集合 %s 采集失败: %s", memberID, reason)
}

// OnComplete 结束进度条并输出汇总
func (b *BarReporter) OnComplete(results *models.CollectionResults) {
	b.mu.Lock()
	if b.bar != nil {
		_ = b.bar.Finish()
	}
	b.mu.Unlock()

	counts := results.CountByStatus()
	Infof("集合采集完成: 共%d个, 完成%d, 部分%d, 失败%d, 跳过%d, 资源%d",
		results.Len(),
		counts[models.StatusCompleted],
		counts[models.StatusPartial],
		counts[models.StatusFailed],
		counts[models.StatusSkipped],
		results.TotalResources())
}
