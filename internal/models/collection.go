package models

import (
	"fmt"
	"net/url"
	"strings"
)

// MemberStatus 集合成员的采集状态
type MemberStatus string

const (
	StatusCompleted MemberStatus = "completed" // 全部子页面完成
	StatusPartial   MemberStatus = "partial"   // 部分子页面失败,结果不完整
	StatusFailed    MemberStatus = "failed"    // 未获得任何资源
	StatusSkipped   MemberStatus = "skipped"   // 被取消或中止,未访问
)

// CollectionMember 列表页中发现的一个集合(相册)
type CollectionMember struct {
	ID            string `json:"id"`             // 集合ID
	Title         string `json:"title"`          // 标题
	SourceURL     string `json:"source_url"`     // 集合首页URL
	DeclaredCount int    `json:"declared_count"` // 页面声明的资源数, 0表示未知
}

// ParseTargetURL 解析目标页面URL, 只接受带主机名的绝对http(s)地址
func ParseTargetURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("URL必须包含主机名")
	}
	return parsed, nil
}

// ValidateURL 验证目标页面URL
func ValidateURL(raw string) error {
	_, err := ParseTargetURL(raw)
	return err
}

// Validate 边界校验: ID非空, URL为绝对http(s)地址且不带查询串和片段
// 分页地址由 SourceURL 追加 /pageN 得到
func (m CollectionMember) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("集合ID不能为空")
	}
	u, err := ParseTargetURL(m.SourceURL)
	if err != nil {
		return fmt.Errorf("集合 %s 的URL无效: %w", m.ID, err)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("集合 %s 的URL不能带查询串或片段: %s", m.ID, m.SourceURL)
	}
	if m.DeclaredCount < 0 {
		return fmt.Errorf("集合 %s 的声明数量不能为负数", m.ID)
	}
	return nil
}

// DisplayTitle 输出用标题, 无标题时回退为ID
func (m CollectionMember) DisplayTitle() string {
	if t := strings.TrimSpace(m.Title); t != "" {
		return t
	}
	return "Album_" + m.ID
}

// CollectionResult 单个集合的采集结果
type CollectionResult struct {
	MemberID  string         `json:"member_id"`
	Title     string         `json:"title"`
	SourceURL string         `json:"source_url"`
	Table     *IdentityTable `json:"resources"`
	Status    MemberStatus   `json:"status"`
	Reason    string         `json:"reason,omitempty"`    // 失败/部分完成/跳过的原因
	SubPages  int            `json:"sub_pages"`           // 成功处理的子页面数
	Polls     int            `json:"polls,omitempty"`     // 稳定检测轮询次数
	Exhausted bool           `json:"exhausted,omitempty"` // 有子页面轮询耗尽仍未稳定
}

// NewFailedResult 创建失败结果, 资源表为空
func NewFailedResult(member CollectionMember, reason string) *CollectionResult {
	return &CollectionResult{
		MemberID:  member.ID,
		Title:     member.DisplayTitle(),
		SourceURL: member.SourceURL,
		Table:     NewIdentityTable(),
		Status:    StatusFailed,
		Reason:    reason,
	}
}

// NewSkippedResult 创建跳过结果
func NewSkippedResult(member CollectionMember, reason string) *CollectionResult {
	r := NewFailedResult(member, reason)
	r.Status = StatusSkipped
	return r
}

// Count 资源数量
func (r *CollectionResult) Count() int {
	return r.Table.Len()
}

// Clone 深拷贝
func (r *CollectionResult) Clone() *CollectionResult {
	c := *r
	if r.Table != nil {
		c.Table = r.Table.Clone()
	}
	return &c
}

// CollectionResults 一次采集的有序结果集 (成员ID -> 结果)
type CollectionResults struct {
	order   []string
	results map[string]*CollectionResult
}

// NewCollectionResults 创建空结果集
func NewCollectionResults() *CollectionResults {
	return &CollectionResults{results: make(map[string]*CollectionResult)}
}

// Put 写入结果, 同ID覆盖但保留原位置
func (c *CollectionResults) Put(r *CollectionResult) {
	if _, exists := c.results[r.MemberID]; !exists {
		c.order = append(c.order, r.MemberID)
	}
	c.results[r.MemberID] = r
}

// Get 获取结果
func (c *CollectionResults) Get(memberID string) (*CollectionResult, bool) {
	r, ok := c.results[memberID]
	return r, ok
}

// Len 结果数量
func (c *CollectionResults) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// All 按写入顺序返回全部结果
func (c *CollectionResults) All() []*CollectionResult {
	if c == nil {
		return nil
	}
	out := make([]*CollectionResult, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.results[id])
	}
	return out
}

// TotalResources 所有集合的资源总数
func (c *CollectionResults) TotalResources() int {
	total := 0
	for _, r := range c.All() {
		total += r.Count()
	}
	return total
}

// CountByStatus 统计各状态数量
func (c *CollectionResults) CountByStatus() map[MemberStatus]int {
	counts := make(map[MemberStatus]int)
	for _, r := range c.All() {
		counts[r.Status]++
	}
	return counts
}

// Clone 深拷贝, 供外部只读使用
func (c *CollectionResults) Clone() *CollectionResults {
	out := NewCollectionResults()
	for _, r := range c.All() {
		out.Put(r.Clone())
	}
	return out
}
