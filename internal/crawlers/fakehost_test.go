package crawlers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakePage 预设的页面内容
type fakePage struct {
	rendered [][]string // 每次渲染扫描依次返回, 用完后重复最后一项
	styles   []string
	scripts  []string
	members  []RawMember
	title    string
	html     string

	loadErr  error
	evalErrs map[string]error // payload.String() -> 错误
	panicOn  string           // 对该载荷panic
}

type fakeContext struct {
	url           string
	page          *fakePage
	renderedCalls int
}

// fakeHost 内存中的Host实现
type fakeHost struct {
	pages      map[string]*fakePage
	createErrs map[string]error

	contexts  map[ContextHandle]*fakeContext
	active    ContextHandle
	next      int
	created   []string
	closedCnt int
	evaluated []string
	closed    bool
	mu        sync.Mutex
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		pages:      make(map[string]*fakePage),
		createErrs: make(map[string]error),
		contexts:   make(map[ContextHandle]*fakeContext),
	}
}

// openActive 以url打开一个上下文并设为活动页面
func (h *fakeHost) openActive(url string, page *fakePage) ContextHandle {
	h.pages[url] = page
	handle, _ := h.CreateContext(context.Background(), url)
	h.mu.Lock()
	h.created = nil
	h.mu.Unlock()
	return handle
}

func (h *fakeHost) QueryActiveContext(ctx context.Context) (ContextHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "", ErrHostUnavailable
	}
	if h.active == "" {
		return "", fmt.Errorf("没有活动页面")
	}
	return h.active, nil
}

func (h *fakeHost) CreateContext(ctx context.Context, url string) (ContextHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "", ErrHostUnavailable
	}
	if err := h.createErrs[url]; err != nil {
		return "", err
	}
	page, ok := h.pages[url]
	if !ok {
		return "", fmt.Errorf("页面不存在: %s", url)
	}
	h.next++
	handle := ContextHandle(fmt.Sprintf("ctx-%d", h.next))
	h.contexts[handle] = &fakeContext{url: url, page: page}
	h.created = append(h.created, url)
	if h.active == "" {
		h.active = handle
	}
	return handle, nil
}

func (h *fakeHost) WaitLoad(ctx context.Context, handle ContextHandle, timeout time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.contexts[handle]
	if !ok {
		return fmt.Errorf("未知上下文: %s", handle)
	}
	return c.page.loadErr
}

func (h *fakeHost) Evaluate(ctx context.Context, handle ContextHandle, payload Payload) (*ScanResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHostUnavailable
	}
	c, ok := h.contexts[handle]
	if !ok {
		return nil, fmt.Errorf("未知上下文: %s", handle)
	}
	h.evaluated = append(h.evaluated, payload.String())

	if c.page.panicOn == payload.String() {
		panic("载荷崩溃")
	}
	if err := c.page.evalErrs[payload.String()]; err != nil {
		return nil, err
	}

	res := &ScanResult{Payload: payload.String()}
	switch payload {
	case PayloadRenderedMedia:
		if n := len(c.page.rendered); n > 0 {
			i := c.renderedCalls
			if i >= n {
				i = n - 1
			}
			res.URLs = c.page.rendered[i]
		}
		c.renderedCalls++
	case PayloadStyleMedia:
		res.URLs = c.page.styles
	case PayloadScriptTexts:
		res.Texts = c.page.scripts
	case PayloadListingLinks:
		res.Members = c.page.members
	case PayloadPageTitle:
		res.Title = c.page.title
	case PayloadPageHTML:
		res.Texts = []string{c.page.html}
	}
	return res, nil
}

func (h *fakeHost) CloseContext(ctx context.Context, handle ContextHandle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.contexts[handle]; ok {
		delete(h.contexts, handle)
		h.closedCnt++
	}
	if h.active == handle {
		h.active = ""
	}
	return nil
}

func (h *fakeHost) OpenContexts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.contexts)
}

func (h *fakeHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// crash 模拟浏览器崩溃
func (h *fakeHost) crash() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

func (h *fakeHost) countEvaluated(p Payload) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, id := range h.evaluated {
		if id == p.String() {
			n++
		}
	}
	return n
}

// instantScheduler 不等待的调度器
type instantScheduler struct {
	waits int
}

func (s *instantScheduler) Wait(ctx context.Context, d time.Duration) error {
	s.waits++
	return ctx.Err()
}
