// Package cdn 识别CDN图片URL命名规则,提取资源标识与尺寸代码,并按画质档位选择最佳尺寸
package cdn

import (
	"net/url"
	"regexp"
	"strings"
)

// ResourceID 资源唯一标识(URL路径中的数字ID段)
type ResourceID string

// SizeCode 尺寸代码(URL中 _b / _k / _3k 等后缀)
type SizeCode string

// SizeUnspecified URL未携带尺寸后缀时使用的哨兵值,与所有已声明尺寸都不相等
const SizeUnspecified SizeCode = "-"

// DefaultHosts 默认识别的CDN主机
var DefaultHosts = []string{"live.staticflickr.com", "*.staticflickr.com"}

// DefaultSuppressedSizes 默认丢弃的缩略图级尺寸(方形75/方形150/缩略100)
var DefaultSuppressedSizes = []SizeCode{"s", "q", "t"}

// cdnPathPattern 匹配 /<bucket>/<id>_<secret>[_<size>].<ext>
var cdnPathPattern = regexp.MustCompile(`^/(\d+)/([0-9A-Za-z]+)_([0-9A-Za-z]+)(?:_([0-9A-Za-z]{1,3}))?\.(?i:jpe?g|png|gif)$`)

// Canonical 规范化结果
type Canonical struct {
	ID   ResourceID
	Size SizeCode
	URL  string // 规范化后的URL(https、无query/fragment)
}

// Options 规范化器配置
type Options struct {
	Hosts      []string   // 允许的主机, 支持 "*.example.com" 通配
	Suppressed []SizeCode // 直接丢弃的尺寸代码
}

// Canonicalizer URL规范化器
// 纯函数语义: 不持有可变状态, 可被多个组件共享
type Canonicalizer struct {
	primaryHost string // 通配匹配的主机统一改写为此主机
	exactHosts  map[string]bool
	hostSuffix  []string
	suppressed  map[SizeCode]bool
}

// NewCanonicalizer 创建规范化器, 未配置的字段使用默认值
func NewCanonicalizer(opts Options) *Canonicalizer {
	hosts := opts.Hosts
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	suppressed := opts.Suppressed
	if suppressed == nil {
		suppressed = DefaultSuppressedSizes
	}

	c := &Canonicalizer{
		exactHosts: make(map[string]bool),
		suppressed: make(map[SizeCode]bool),
	}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if strings.HasPrefix(h, "*.") {
			c.hostSuffix = append(c.hostSuffix, h[1:])
			continue
		}
		if c.primaryHost == "" {
			c.primaryHost = h
		}
		c.exactHosts[h] = true
	}
	for _, s := range suppressed {
		c.suppressed[SizeCode(strings.ToLower(string(s)))] = true
	}
	return c
}

// Canonicalize 将原始URL映射为 (资源ID, 尺寸代码)
// 返回false表示不识别: 非CDN主机、路径不符合命名规则、尺寸属于丢弃集合或输入格式错误
func (c *Canonicalizer) Canonicalize(raw string) (Canonical, bool) {
	raw = strings.Trim(strings.TrimSpace(raw), `"'`)
	if raw == "" {
		return Canonical{}, false
	}

	// 协议相对URL补全协议
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Canonical{}, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Canonical{}, false
	}

	host := strings.ToLower(u.Hostname())
	if !c.IsCDNHost(host) {
		return Canonical{}, false
	}

	m := cdnPathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return Canonical{}, false
	}

	size := SizeCode(strings.ToLower(m[4]))
	if size == "" {
		size = SizeUnspecified
	}
	if c.suppressed[size] {
		return Canonical{}, false
	}

	return Canonical{
		ID:   ResourceID(m[2]),
		Size: size,
		URL:  "https://" + c.canonicalHost(host) + u.Path,
	}, true
}

// canonicalHost 通配匹配的子域名(farmN等)统一改写为第一个精确主机
func (c *Canonicalizer) canonicalHost(host string) string {
	if c.exactHosts[host] || c.primaryHost == "" {
		return host
	}
	return c.primaryHost
}

// IsCDNHost 判断主机是否属于已配置的CDN
func (c *Canonicalizer) IsCDNHost(host string) bool {
	host = strings.ToLower(host)
	if c.exactHosts[host] {
		return true
	}
	for _, suffix := range c.hostSuffix {
		if strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
			return true
		}
	}
	return false
}

// IsSuppressed 判断尺寸是否在丢弃集合中
func (c *Canonicalizer) IsSuppressed(size SizeCode) bool {
	return c.suppressed[size]
}
