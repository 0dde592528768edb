package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 待执行
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusFailed    TaskStatus = "failed"    // 失败
	TaskStatusCancelled TaskStatus = "cancelled" // 已取消
)

// CrawlMode 页面获取方式
type CrawlMode string

const (
	ModeDynamic CrawlMode = "dynamic" // 浏览器渲染(rod)
	ModeStatic  CrawlMode = "static"  // 静态文档(colly)
)

// ParseCrawlMode 解析获取方式
func ParseCrawlMode(s string) (CrawlMode, error) {
	switch CrawlMode(s) {
	case ModeDynamic, ModeStatic:
		return CrawlMode(s), nil
	case "":
		return ModeDynamic, nil
	}
	return "", fmt.Errorf("无效的模式: %s (有效值: dynamic, static)", s)
}

// CrawlConfig 集合采集配置
type CrawlConfig struct {
	Tier            string        `json:"tier" mapstructure:"tier"`                         // 画质档位 (默认:large)
	LoadTimeout     time.Duration `json:"load_timeout" mapstructure:"load_timeout"`         // 单个子页面加载超时 (默认:30s)
	SettleDelay     time.Duration `json:"settle_delay" mapstructure:"settle_delay"`         // 加载完成后的等待时间 (默认:1.5s)
	MaxSubPages     int           `json:"max_sub_pages" mapstructure:"max_sub_pages"`       // 每个集合的最大子页面数 (默认:50)
	UsePoller       bool          `json:"use_poller" mapstructure:"use_poller"`             // 子页面使用稳定检测(滚动加载)
	PollInterval    time.Duration `json:"poll_interval" mapstructure:"poll_interval"`       // 轮询间隔 (默认:1.2s)
	MaxPolls        int           `json:"max_polls" mapstructure:"max_polls"`               // 最大轮询次数 (默认:30)
	StableThreshold int           `json:"stable_threshold" mapstructure:"stable_threshold"` // 连续无变化次数阈值 (默认:3)
	Headless        bool          `json:"headless" mapstructure:"headless"`                 // 无头模式 (默认:true)
}

// DefaultCrawlConfig 默认配置
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		Tier:            "large",
		LoadTimeout:     30 * time.Second,
		SettleDelay:     1500 * time.Millisecond,
		MaxSubPages:     50,
		PollInterval:    1200 * time.Millisecond,
		MaxPolls:        30,
		StableThreshold: 3,
		Headless:        true,
	}
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.LoadTimeout <= 0 || c.LoadTimeout > 5*time.Minute {
		return fmt.Errorf("加载超时必须在0-5分钟之间")
	}
	if c.SettleDelay < 0 || c.SettleDelay > time.Minute {
		return fmt.Errorf("等待时间必须在0-60秒之间")
	}
	if c.MaxSubPages < 1 || c.MaxSubPages > 500 {
		return fmt.Errorf("最大子页面数必须在1-500之间")
	}
	if c.PollInterval < 0 || c.PollInterval > time.Minute {
		return fmt.Errorf("轮询间隔必须在0-60秒之间")
	}
	if c.MaxPolls < 1 || c.MaxPolls > 1000 {
		return fmt.Errorf("最大轮询次数必须在1-1000之间")
	}
	if c.StableThreshold < 1 || c.StableThreshold > c.MaxPolls {
		return fmt.Errorf("稳定阈值必须在1-%d之间", c.MaxPolls)
	}
	return nil
}

// CrawlTask 一次提取任务
type CrawlTask struct {
	ID          string     `json:"id"`                     // 任务唯一ID (UUID)
	TargetURL   string     `json:"target_url"`             // 目标URL
	Domain      string     `json:"domain"`                 // 解析的域名
	PageType    string     `json:"page_type"`              // 页面类型
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	StartedAt   *time.Time `json:"started_at,omitempty"`   // 开始时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 完成时间

	Config CrawlConfig `json:"config"`
	Mode   CrawlMode   `json:"mode"`
	Status TaskStatus  `json:"status"`

	ErrorMessage string `json:"error_message,omitempty"`
}

// NewCrawlTask 创建新任务
func NewCrawlTask(targetURL string, mode CrawlMode, config CrawlConfig) (*CrawlTask, error) {
	parsed, err := ParseTargetURL(targetURL)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &CrawlTask{
		ID:        uuid.New().String(),
		TargetURL: targetURL,
		Domain:    parsed.Host,
		CreatedAt: time.Now(),
		Config:    config,
		Mode:      mode,
		Status:    TaskStatusPending,
	}, nil
}

// Start 标记任务开始
func (t *CrawlTask) Start() {
	now := time.Now()
	t.StartedAt = &now
	t.Status = TaskStatusRunning
}

// Finish 根据错误标记任务结束状态
func (t *CrawlTask) Finish(err error, cancelled bool) {
	now := time.Now()
	t.CompletedAt = &now
	switch {
	case cancelled:
		t.Status = TaskStatusCancelled
	case err != nil:
		t.Status = TaskStatusFailed
	default:
		t.Status = TaskStatusCompleted
	}
	if err != nil {
		t.ErrorMessage = err.Error()
	}
}

// ToJSON 序列化为JSON
func (t *CrawlTask) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// FromJSON 从JSON反序列化
func (t *CrawlTask) FromJSON(data []byte) error {
	return json.Unmarshal(data, t)
}
