package crawlers

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// albumPathPattern 集合链接路径 /photos/<user>/(albums|sets)/<id>
var albumPathPattern = regexp.MustCompile(`/photos/([^/]+)/(?:albums|sets)/(\d+)`)

// scriptAlbumPattern 内嵌脚本中的集合JSON片段
var scriptAlbumPattern = regexp.MustCompile(`"id":"(\d+)"[^}]*"title":"([^"]+)"`)

var countPattern = regexp.MustCompile(`\d[\d,.]*`)

// NormalizeMembers 把原始条目转换为通过校验的集合成员
// 相对链接按页面URL解析; 条目缺少ID时从链接路径中提取; 按ID去重保留首次出现
func NormalizeMembers(raw []RawMember, pageURL string) []models.CollectionMember {
	base, _ := url.Parse(pageURL)

	members := make([]models.CollectionMember, 0, len(raw))
	for _, r := range raw {
		href := strings.TrimSpace(r.URL)
		if base != nil && href != "" {
			if ref, err := url.Parse(href); err == nil {
				abs := base.ResolveReference(ref)
				abs.RawQuery, abs.Fragment, abs.ForceQuery = "", "", false
				href = abs.String()
			}
		}

		id := strings.TrimSpace(r.ID)
		if m := albumPathPattern.FindStringSubmatch(href); m != nil && id == "" {
			id = m[2]
		}

		member := models.CollectionMember{
			ID:            id,
			Title:         strings.TrimSpace(r.Title),
			SourceURL:     href,
			DeclaredCount: parseDeclaredCount(r.Count),
		}
		if err := member.Validate(); err != nil {
			log.Debug().Err(err).Str("id", id).Msg("丢弃无效集合条目")
			continue
		}
		members = append(members, member)
	}

	return lo.UniqBy(members, func(m models.CollectionMember) string { return m.ID })
}

// parseDeclaredCount 解析 "1,234 photos" 形式的数量, 无法解析时返回0
func parseDeclaredCount(s string) int {
	m := countPattern.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.NewReplacer(",", "", ".", "").Replace(m))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// listingOwner 从列表页URL中取出用户段
func listingOwner(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(u.Path, "/")
	if len(parts) > 2 && parts[1] == "photos" {
		return parts[2]
	}
	return ""
}

// albumURL 由列表页URL和集合ID拼出集合地址
func albumURL(pageURL, id string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s://%s/photos/%s/albums/%s", u.Scheme, u.Host, listingOwner(pageURL), id)
}

// MembersFromScripts 从内嵌脚本中的集合模型数据提取条目
func MembersFromScripts(texts []string, pageURL string) []RawMember {
	var raw []RawMember
	seen := make(map[string]bool)
	for _, text := range texts {
		if !strings.Contains(text, "albumModels") && !strings.Contains(text, "setModels") {
			continue
		}
		for _, m := range scriptAlbumPattern.FindAllStringSubmatch(text, -1) {
			if seen[m[1]] {
				continue
			}
			seen[m[1]] = true
			raw = append(raw, RawMember{
				ID:    m[1],
				Title: unescapeScriptText(m[2]),
				URL:   albumURL(pageURL, m[1]),
			})
		}
	}
	return raw
}

// ExtractListing 在静态文档中查找集合链接
// 依次尝试: 集合卡片链接, 任意集合链接, data-albumid 元素
func ExtractListing(doc *goquery.Document, pageURL string) []RawMember {
	base, _ := url.Parse(pageURL)
	resolve := func(href string) string {
		ref, err := url.Parse(href)
		if err != nil || base == nil {
			return href
		}
		return base.ResolveReference(ref).String()
	}

	seen := make(map[string]bool)
	var raw []RawMember

	doc.Find(`a.photo-list-album[href*="/albums/"], a.photo-list-album[href*="/sets/"]`).Each(func(_ int, s *goquery.Selection) {
		href := resolve(s.AttrOr("href", ""))
		m := albumPathPattern.FindStringSubmatch(href)
		if m == nil || seen[m[2]] {
			return
		}
		seen[m[2]] = true

		title := s.AttrOr("title", "")
		if title == "" {
			title = strings.TrimSpace(s.Find(".album-title, h4").First().Text())
		}
		if title == "" {
			title = "Untitled"
		}
		raw = append(raw, RawMember{
			ID:    m[2],
			Title: title,
			URL:   href,
			Count: strings.TrimSpace(s.Find(".album-photo-count").First().Text()),
		})
	})

	if len(raw) == 0 {
		doc.Find(`a[href*="/albums/"], a[href*="/sets/"]`).Each(func(_ int, s *goquery.Selection) {
			href := resolve(s.AttrOr("href", ""))
			m := albumPathPattern.FindStringSubmatch(href)
			if m == nil || seen[m[2]] {
				return
			}
			seen[m[2]] = true

			title := s.AttrOr("title", "")
			if title == "" {
				title = strings.TrimSpace(s.Find(".album-title, h4").First().Text())
			}
			if text := strings.TrimSpace(s.Text()); title == "" && len(text) < 60 {
				title = strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
			}
			if title == "" || title == "Albums" {
				return
			}
			raw = append(raw, RawMember{ID: m[2], Title: title, URL: href})
		})
	}

	if len(raw) == 0 {
		doc.Find("[data-albumid]").Each(func(_ int, s *goquery.Selection) {
			id := strings.TrimSpace(s.AttrOr("data-albumid", ""))
			if id == "" || seen[id] {
				return
			}
			seen[id] = true

			title := strings.TrimSpace(s.Find(".album-title, h4").First().Text())
			if title == "" {
				title = "Untitled"
			}
			raw = append(raw, RawMember{ID: id, Title: title, URL: albumURL(pageURL, id)})
		})
	}

	return raw
}
