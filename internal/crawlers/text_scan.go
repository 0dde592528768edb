package crawlers

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/net/html"
)

// mediaURLPattern 文本中的候选媒体URL, 主机过滤交给规范化器
var mediaURLPattern = regexp.MustCompile(`(?i)(?:https?:)?//[a-z0-9.-]+/\d+/[^\s"'<>()\\]+?\.(?:jpe?g|png|gif)`)

// cssURLPattern style中的 url(...) 引用
var cssURLPattern = regexp.MustCompile(`url\(\s*['"]?([^'")\s]+)['"]?\s*\)`)

var escapeReplacer = strings.NewReplacer(
	`\\/`, `/`,
	`\/`, `/`,
	`\u002F`, `/`,
	`\u002f`, `/`,
)

// unescapeScriptText 还原脚本/JSON中被转义的斜杠和HTML实体
func unescapeScriptText(text string) string {
	return html.UnescapeString(escapeReplacer.Replace(text))
}

// ExtractCDNURLs 从任意文本(脚本、HTML、JSON)中提取候选媒体URL, 按出现顺序去重
func ExtractCDNURLs(text string) []string {
	if text == "" {
		return nil
	}
	return lo.Uniq(mediaURLPattern.FindAllString(unescapeScriptText(text), -1))
}

// ExtractStyleURLs 从style文本中提取 url(...) 引用
func ExtractStyleURLs(style string) []string {
	var urls []string
	for _, m := range cssURLPattern.FindAllStringSubmatch(html.UnescapeString(style), -1) {
		urls = append(urls, m[1])
	}
	return urls
}

// splitSrcset 拆分 srcset 属性为URL列表
func splitSrcset(srcset string) []string {
	var urls []string
	for _, part := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) > 0 {
			urls = append(urls, fields[0])
		}
	}
	return urls
}
