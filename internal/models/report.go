package models

import (
	"encoding/json"
	"time"

	"github.com/RecoveryAshes/FlickrExtractor/internal/cdn"
)

// CrawlReport 提取报告
type CrawlReport struct {
	// 任务信息
	TaskID    string     `json:"task_id"`
	TargetURL string     `json:"target_url"`
	PageType  string     `json:"page_type"`
	Mode      CrawlMode  `json:"mode"`
	Tier      string     `json:"tier"`
	Status    TaskStatus `json:"status"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	Stats       ReportStats         `json:"stats"`
	Collections []CollectionSummary `json:"collections"`

	ErrorMessage string      `json:"error_message,omitempty"`
	Config       CrawlConfig `json:"config"`
}

// ReportStats 报告统计
type ReportStats struct {
	Collections int `json:"collections"` // 集合数
	Completed   int `json:"completed"`
	Partial     int `json:"partial"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	Resources   int `json:"resources"` // 去重后的资源数
	Variants    int `json:"variants"`  // 尺寸变体总数
}

// CollectionSummary 单个集合的报告条目
type CollectionSummary struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	SourceURL string       `json:"source_url"`
	Status    MemberStatus `json:"status"`
	Reason    string       `json:"reason,omitempty"`
	SubPages  int          `json:"sub_pages"`
	Exhausted bool         `json:"exhausted,omitempty"` // 轮询耗尽仍未稳定
	Resources int          `json:"resources"`
	URLs      []string     `json:"urls"` // 按档位选择后的URL
}

// NewCrawlReport 由任务创建报告骨架
func NewCrawlReport(task *CrawlTask) *CrawlReport {
	r := &CrawlReport{
		TaskID:       task.ID,
		TargetURL:    task.TargetURL,
		PageType:     task.PageType,
		Mode:         task.Mode,
		Tier:         task.Config.Tier,
		Status:       task.Status,
		StartTime:    task.CreatedAt,
		EndTime:      time.Now(),
		ErrorMessage: task.ErrorMessage,
		Config:       task.Config,
	}
	if task.StartedAt != nil {
		r.StartTime = *task.StartedAt
	}
	if task.CompletedAt != nil {
		r.EndTime = *task.CompletedAt
	}
	r.Duration = r.EndTime.Sub(r.StartTime).Seconds()
	return r
}

// AddResults 把集合结果写入报告
func (r *CrawlReport) AddResults(results *CollectionResults, tier cdn.Tier) {
	for _, res := range results.All() {
		r.Collections = append(r.Collections, CollectionSummary{
			ID:        res.MemberID,
			Title:     res.Title,
			SourceURL: res.SourceURL,
			Status:    res.Status,
			Reason:    res.Reason,
			SubPages:  res.SubPages,
			Exhausted: res.Exhausted,
			Resources: res.Count(),
			URLs:      res.Table.Resolve(tier),
		})
		r.Stats.Collections++
		r.Stats.Resources += res.Count()
		r.Stats.Variants += res.Table.VariantCount()
		switch res.Status {
		case StatusCompleted:
			r.Stats.Completed++
		case StatusPartial:
			r.Stats.Partial++
		case StatusFailed:
			r.Stats.Failed++
		case StatusSkipped:
			r.Stats.Skipped++
		}
	}
}

// AddPage 把单页结果写入报告
func (r *CrawlReport) AddPage(title string, table *IdentityTable, tier cdn.Tier) {
	r.Collections = append(r.Collections, CollectionSummary{
		ID:        "page",
		Title:     title,
		SourceURL: r.TargetURL,
		Status:    StatusCompleted,
		SubPages:  1,
		Resources: table.Len(),
		URLs:      table.Resolve(tier),
	})
	r.Stats.Collections++
	r.Stats.Completed++
	r.Stats.Resources += table.Len()
	r.Stats.Variants += table.VariantCount()
}

// ToJSON 序列化为JSON
func (r *CrawlReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *CrawlReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
