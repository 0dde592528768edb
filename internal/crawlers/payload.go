package crawlers

import "fmt"

// OutputKind 载荷输出类型
type OutputKind int

const (
	OutputURLs    OutputKind = iota // URL列表
	OutputMembers                   // 集合条目
	OutputTexts                     // 原始文本(脚本内容/页面HTML)
	OutputTitle                     // 标题
	OutputNone                      // 仅产生副作用(滚动)
)

// Payload 已命名、带版本的扫描载荷描述
// 宿主只执行注册表中的载荷, 不在运行时拼接代码
type Payload struct {
	Name    string
	Version int
	Output  OutputKind
}

// String 返回 name/vN 形式的标识
func (p Payload) String() string {
	return fmt.Sprintf("%s/v%d", p.Name, p.Version)
}

// 载荷注册表
var (
	PayloadRenderedMedia = Payload{Name: "media.rendered", Version: 1, Output: OutputURLs}
	PayloadStyleMedia    = Payload{Name: "media.styles", Version: 1, Output: OutputURLs}
	PayloadScriptTexts   = Payload{Name: "media.scripts", Version: 1, Output: OutputTexts}
	PayloadListingLinks  = Payload{Name: "listing.links", Version: 1, Output: OutputMembers}
	PayloadPageTitle     = Payload{Name: "page.title", Version: 1, Output: OutputTitle}
	PayloadPageHTML      = Payload{Name: "page.html", Version: 1, Output: OutputTexts}
	PayloadScrollBottom  = Payload{Name: "page.scroll-bottom", Version: 1, Output: OutputNone}
	PayloadScrollTop     = Payload{Name: "page.scroll-top", Version: 1, Output: OutputNone}
)

var payloadRegistry = map[string]Payload{}

func init() {
	for _, p := range []Payload{
		PayloadRenderedMedia, PayloadStyleMedia, PayloadScriptTexts, PayloadListingLinks,
		PayloadPageTitle, PayloadPageHTML, PayloadScrollBottom, PayloadScrollTop,
	} {
		payloadRegistry[p.String()] = p
	}
}

// LookupPayload 按标识查找已注册的载荷
func LookupPayload(id string) (Payload, error) {
	p, ok := payloadRegistry[id]
	if !ok {
		return Payload{}, fmt.Errorf("%w: %s", ErrUnknownPayload, id)
	}
	return p, nil
}

// IsRegistered 载荷是否在注册表中(名称、版本、输出类型均一致)
func IsRegistered(p Payload) bool {
	r, ok := payloadRegistry[p.String()]
	return ok && r == p
}
