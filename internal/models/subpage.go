package models

import (
	"fmt"
	"strings"
)

// SubPage 集合的一个分页
// 用途:
//   - 采集器按序号顺序访问同一集合的分页
//   - 第1页使用集合原始URL, 之后为 <base>/page<N>
type SubPage struct {
	// MemberID 所属集合ID
	MemberID string

	// Index 分页序号, 从1开始
	Index int

	// URL 分页完整URL
	URL string
}

// SubPageURL 计算集合第n页的URL
func SubPageURL(base string, n int) string {
	if n <= 1 {
		return base
	}
	return fmt.Sprintf("%s/page%d", strings.TrimRight(base, "/"), n)
}

// NextPageMarker 第n页之后一页在页面中的引用标记
func NextPageMarker(n int) string {
	return fmt.Sprintf("/page%d", n+1)
}

// NewSubPage 创建分页
func NewSubPage(member CollectionMember, n int) SubPage {
	return SubPage{
		MemberID: member.ID,
		Index:    n,
		URL:      SubPageURL(member.SourceURL, n),
	}
}
