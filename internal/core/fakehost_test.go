package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/FlickrExtractor/internal/crawlers"
	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
)

// scriptedPage 预设的子页面
type scriptedPage struct {
	urls []string // 渲染扫描返回的URL
	html string   // 页面HTML, 用于判断是否引用下一页
	grow bool     // 每次渲染扫描额外返回一个新资源
}

// scriptedHost 按URL返回预设页面的内存宿主
type scriptedHost struct {
	pages map[string]*scriptedPage

	mu      sync.Mutex
	next    int
	open    map[crawlers.ContextHandle]string
	scans   map[crawlers.ContextHandle]int
	visited []string
}

func newScriptedHost(pages map[string]*scriptedPage) *scriptedHost {
	return &scriptedHost{
		pages: pages,
		open:  make(map[crawlers.ContextHandle]string),
		scans: make(map[crawlers.ContextHandle]int),
	}
}

func (h *scriptedHost) QueryActiveContext(ctx context.Context) (crawlers.ContextHandle, error) {
	return "", fmt.Errorf("没有活动页面")
}

func (h *scriptedHost) CreateContext(ctx context.Context, url string) (crawlers.ContextHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.visited = append(h.visited, url)
	if _, ok := h.pages[url]; !ok {
		return "", fmt.Errorf("页面不存在: %s", url)
	}
	h.next++
	handle := crawlers.ContextHandle(fmt.Sprintf("page-%d", h.next))
	h.open[handle] = url
	return handle, nil
}

func (h *scriptedHost) WaitLoad(ctx context.Context, handle crawlers.ContextHandle, timeout time.Duration) error {
	return ctx.Err()
}

func (h *scriptedHost) Evaluate(ctx context.Context, handle crawlers.ContextHandle, payload crawlers.Payload) (*crawlers.ScanResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	url, ok := h.open[handle]
	if !ok {
		return nil, fmt.Errorf("未知上下文: %s", handle)
	}
	page := h.pages[url]

	res := &crawlers.ScanResult{Payload: payload.String()}
	switch payload {
	case crawlers.PayloadRenderedMedia:
		res.URLs = append([]string(nil), page.urls...)
		if page.grow {
			h.scans[handle]++
			res.URLs = append(res.URLs, flickrURL(900+h.scans[handle], "b"))
		}
	case crawlers.PayloadPageHTML:
		res.Texts = []string{page.html}
	}
	return res, nil
}

func (h *scriptedHost) CloseContext(ctx context.Context, handle crawlers.ContextHandle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.open, handle)
	return nil
}

func (h *scriptedHost) OpenContexts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.open)
}

func (h *scriptedHost) Close() error { return nil }

func (h *scriptedHost) visits() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.visited...)
}

func flickrURL(id int, size string) string {
	return fmt.Sprintf("https://live.staticflickr.com/65535/%d_ab12_%s.jpg", id, size)
}

// newScriptedCrawler 在scriptedHost上创建集合采集器
func newScriptedCrawler(t *testing.T, host crawlers.Host, mutate func(*models.CrawlConfig)) (*CollectionCrawler, *hookReporter) {
	t.Helper()
	config := models.DefaultCrawlConfig()
	config.SettleDelay = 0
	if mutate != nil {
		mutate(&config)
	}

	cc := NewCollectionCrawler(crawlers.NewContextPool(host, nil, 1), crawlers.NewAggregator(nil), config)
	cc.SetScheduler(noWait{})
	reporter := &hookReporter{}
	cc.SetReporter(reporter)
	return cc, reporter
}
