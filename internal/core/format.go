package core

import (
	"fmt"
	"strings"

	"github.com/RecoveryAshes/FlickrExtractor/internal/cdn"
	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
)

// FormatAsText 按档位输出集合结果
// 每个集合: 标题, 空行, 每行一个URL, 空行; 失败和部分完成的集合在标题后标注状态
func FormatAsText(results *models.CollectionResults, tier cdn.Tier) string {
	var b strings.Builder
	for _, r := range results.All() {
		b.WriteString(r.Title)
		switch r.Status {
		case models.StatusFailed, models.StatusSkipped:
			b.WriteString(" (0 images, " + string(r.Status) + ")")
		case models.StatusPartial:
			b.WriteString(fmt.Sprintf(" (%d images, %s)", r.Count(), r.Status))
		}
		b.WriteString("\n\n")
		for _, u := range r.Table.Resolve(tier) {
			b.WriteString(u)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatPageText 按档位输出单页结果, 有标题时以标题开头
func FormatPageText(title string, table *models.IdentityTable, tier cdn.Tier) string {
	var b strings.Builder
	if title != "" {
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	for _, u := range table.Resolve(tier) {
		b.WriteString(u)
		b.WriteString("\n")
	}
	return b.String()
}
