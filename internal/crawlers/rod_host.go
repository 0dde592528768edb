package crawlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/RecoveryAshes/FlickrExtractor/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodHostConfig 浏览器宿主配置
type RodHostConfig struct {
	Headless   bool        // 无头模式
	BrowserBin string      // 浏览器可执行文件, 为空时由launcher查找或下载
	ControlURL string      // 连接已运行的浏览器(DevTools地址), 为空时启动新浏览器
	NoSandbox  bool        // 容器环境下关闭沙箱
	Headers    http.Header // 额外请求头
}

// RodHost 基于go-rod的浏览器宿主, 每个标签页是一个上下文
type RodHost struct {
	config   RodHostConfig
	browser  *rod.Browser
	launcher *launcher.Launcher

	pages  map[ContextHandle]*rod.Page
	owned  map[ContextHandle]bool // 由本宿主创建的标签页
	active ContextHandle
	closed bool
	mu     sync.Mutex
}

// NewRodHost 启动(或连接)浏览器
func NewRodHost(config RodHostConfig) (*RodHost, error) {
	h := &RodHost{
		config: config,
		pages:  make(map[ContextHandle]*rod.Page),
		owned:  make(map[ContextHandle]bool),
	}

	controlURL := config.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(config.Headless)
		if config.BrowserBin != "" {
			l = l.Bin(config.BrowserBin)
		}
		if config.NoSandbox {
			l = l.NoSandbox(true)
		}
		l = l.Set("ignore-certificate-errors")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("启动浏览器失败: %w", err)
		}
		controlURL = u
		h.launcher = l
	}

	h.browser = rod.New().ControlURL(controlURL)
	if err := h.browser.Connect(); err != nil {
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	utils.Debugf("浏览器已连接: %s (无头模式: %v)", controlURL, config.Headless)
	return h, nil
}

// QueryActiveContext 返回最近打开的标签页, 没有时取浏览器中的第一个标签页
func (h *RodHost) QueryActiveContext(ctx context.Context) (ContextHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return "", ErrHostUnavailable
	}
	if h.active != "" {
		if _, ok := h.pages[h.active]; ok {
			return h.active, nil
		}
	}

	pages, err := h.browser.Context(ctx).Pages()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHostUnavailable, err)
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("没有活动页面")
	}

	page := pages[0]
	handle := ContextHandle(page.TargetID)
	h.pages[handle] = page
	h.active = handle
	return handle, nil
}

// CreateContext 新建标签页并导航到url
func (h *RodHost) CreateContext(ctx context.Context, url string) (handle ContextHandle, err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("创建标签页panic: %v", r)
			err = fmt.Errorf("%w: %v", ErrHostUnavailable, r)
		}
	}()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", ErrHostUnavailable
	}
	h.mu.Unlock()

	page, err := h.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("%w: 创建标签页失败: %v", ErrHostUnavailable, err)
	}
	handle = ContextHandle(page.TargetID)

	h.mu.Lock()
	h.pages[handle] = page
	h.owned[handle] = true
	h.active = handle
	h.mu.Unlock()

	if len(h.config.Headers) > 0 {
		if _, err := page.SetExtraHeaders(headerDict(h.config.Headers)); err != nil {
			utils.Warnf("设置请求头失败: %v", err)
		}
	}

	if err := page.Context(ctx).Navigate(url); err != nil {
		h.closePage(handle)
		return "", fmt.Errorf("导航失败 [%s]: %w", url, err)
	}

	utils.Debugf("打开标签页: %s", url)
	return handle, nil
}

// WaitLoad 等待页面load事件
func (h *RodHost) WaitLoad(ctx context.Context, handle ContextHandle, timeout time.Duration) error {
	page, err := h.page(handle)
	if err != nil {
		return err
	}

	p := page.Context(ctx)
	if timeout > 0 {
		p = p.Timeout(timeout)
	}
	if err := p.WaitLoad(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: %v", ErrLoadTimeout, timeout)
		}
		return fmt.Errorf("等待页面加载失败: %w", err)
	}
	return nil
}

// Evaluate 执行载荷对应的固定脚本
func (h *RodHost) Evaluate(ctx context.Context, handle ContextHandle, payload Payload) (result *ScanResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("执行载荷panic [%s]: %v", payload, r)
			err = fmt.Errorf("%w: %v", ErrHostUnavailable, r)
		}
	}()

	js, ok := rodPayloadJS[payload.String()]
	if !ok || !IsRegistered(payload) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPayload, payload)
	}

	page, err := h.page(handle)
	if err != nil {
		return nil, err
	}

	obj, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, fmt.Errorf("执行载荷 %s 失败: %w", payload, err)
	}

	raw, err := obj.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	return decodePayloadValue(payload, raw)
}

// decodePayloadValue 按载荷输出类型解码脚本返回值
func decodePayloadValue(payload Payload, raw []byte) (*ScanResult, error) {
	result := &ScanResult{Payload: payload.String()}

	var err error
	switch payload.Output {
	case OutputURLs:
		err = json.Unmarshal(raw, &result.URLs)
	case OutputMembers:
		err = json.Unmarshal(raw, &result.Members)
	case OutputTexts:
		err = json.Unmarshal(raw, &result.Texts)
	case OutputTitle:
		err = json.Unmarshal(raw, &result.Title)
	case OutputNone:
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s 返回值格式错误: %v", ErrInvalidResult, payload, err)
	}
	return result, nil
}

// CloseContext 关闭标签页
func (h *RodHost) CloseContext(ctx context.Context, handle ContextHandle) error {
	return h.closePage(handle)
}

func (h *RodHost) closePage(handle ContextHandle) error {
	h.mu.Lock()
	page, ok := h.pages[handle]
	owned := h.owned[handle]
	delete(h.pages, handle)
	delete(h.owned, handle)
	if h.active == handle {
		h.active = ""
	}
	h.mu.Unlock()

	if !ok || !owned {
		return nil
	}
	if err := page.Close(); err != nil {
		return fmt.Errorf("关闭标签页失败: %w", err)
	}
	return nil
}

// OpenContexts 本宿主打开且未关闭的标签页数量
func (h *RodHost) OpenContexts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.owned)
}

// Close 关闭所有标签页和浏览器
func (h *RodHost) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	handles := make([]ContextHandle, 0, len(h.owned))
	for handle := range h.owned {
		handles = append(handles, handle)
	}
	h.mu.Unlock()

	for _, handle := range handles {
		if err := h.closePage(handle); err != nil {
			utils.Warnf("%v", err)
		}
	}

	var err error
	if h.launcher != nil {
		if err = h.browser.Close(); err != nil {
			err = fmt.Errorf("关闭浏览器失败: %w", err)
		}
		h.launcher.Cleanup()
	}
	utils.Debugf("浏览器已关闭")
	return err
}

func (h *RodHost) page(handle ContextHandle) (*rod.Page, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHostUnavailable
	}
	page, ok := h.pages[handle]
	if !ok {
		return nil, fmt.Errorf("未知上下文: %s", handle)
	}
	return page, nil
}

// headerDict 转换为 SetExtraHeaders 需要的 [name, value, ...] 形式
func headerDict(headers http.Header) []string {
	dict := make([]string, 0, len(headers)*2)
	for name, values := range headers {
		if len(values) > 0 {
			dict = append(dict, name, values[0])
		}
	}
	return dict
}

// rodPayloadJS 每个载荷对应的固定脚本, 只读取页面或滚动, 不接受外部代码
var rodPayloadJS = map[string]string{
	PayloadRenderedMedia.String(): `() => {
		var out = [];
		var push = function (u) { if (u && typeof u === 'string') out.push(u); };
		var srcset = function (s) {
			if (!s) return;
			s.split(',').forEach(function (part) {
				var f = part.trim().split(/\s+/)[0];
				push(f);
			});
		};
		document.querySelectorAll('img').forEach(function (img) {
			push(img.getAttribute('src'));
			push(img.currentSrc);
			push(img.src);
			srcset(img.getAttribute('srcset'));
			push(img.getAttribute('data-src'));
		});
		document.querySelectorAll('source[srcset]').forEach(function (s) {
			srcset(s.getAttribute('srcset'));
		});
		document.querySelectorAll('[style*="background"]').forEach(function (el) {
			var style = el.getAttribute('style') || '';
			var re = /url\(\s*['"]?([^'")\s]+)['"]?\s*\)/g;
			var m;
			while ((m = re.exec(style)) !== null) push(m[1]);
		});
		return out;
	}`,

	PayloadStyleMedia.String(): `() => {
		var out = [];
		var re = /url\(\s*['"]?([^'")\s]+)['"]?\s*\)/g;
		var els = document.querySelectorAll('body *');
		for (var i = 0; i < els.length && i < 20000; i++) {
			var bg = window.getComputedStyle(els[i]).backgroundImage;
			if (!bg || bg === 'none') continue;
			var m;
			re.lastIndex = 0;
			while ((m = re.exec(bg)) !== null) out.push(m[1]);
		}
		return out;
	}`,

	PayloadScriptTexts.String(): `() => {
		var out = [];
		document.querySelectorAll('script:not([src])').forEach(function (s) {
			if (s.textContent) out.push(s.textContent);
		});
		return out;
	}`,

	PayloadListingLinks.String(): `() => {
		var albums = [];
		var seen = {};
		var re = /\/photos\/[^\/]+\/(?:albums|sets)\/(\d+)/;

		var links = document.querySelectorAll('a.photo-list-album[href*="/albums/"], a.photo-list-album[href*="/sets/"]');
		for (var i = 0; i < links.length; i++) {
			var link = links[i];
			var m = link.href.match(re);
			if (!m || seen[m[1]]) continue;
			seen[m[1]] = true;
			var title = link.getAttribute('title') || '';
			if (!title) {
				var h = link.querySelector('.album-title, h4');
				if (h) title = h.textContent.trim();
			}
			var countEl = link.querySelector('.album-photo-count');
			albums.push({ id: m[1], title: title || 'Untitled', url: link.href, count: countEl ? countEl.textContent.trim() : '' });
		}

		if (albums.length === 0) {
			var all = document.querySelectorAll('a[href*="/albums/"], a[href*="/sets/"]');
			for (var j = 0; j < all.length; j++) {
				var l2 = all[j];
				var m2 = l2.href.match(re);
				if (!m2 || seen[m2[1]]) continue;
				seen[m2[1]] = true;
				var t2 = l2.getAttribute('title') || '';
				if (!t2) {
					var h2 = l2.querySelector('.album-title, h4');
					if (h2) t2 = h2.textContent.trim();
				}
				if (!t2 && l2.textContent.trim().length < 60) {
					t2 = l2.textContent.trim().split('\n')[0].trim();
				}
				if (t2 && t2 !== 'Albums') {
					albums.push({ id: m2[1], title: t2, url: l2.href, count: '' });
				}
			}
		}

		if (albums.length === 0) {
			var divs = document.querySelectorAll('[data-albumid]');
			var user = window.location.pathname.split('/')[2] || '';
			for (var k = 0; k < divs.length; k++) {
				var aid = divs[k].getAttribute('data-albumid');
				if (!aid || seen[aid]) continue;
				seen[aid] = true;
				var h3 = divs[k].querySelector('.album-title, h4');
				albums.push({ id: aid, title: h3 ? h3.textContent.trim() : 'Untitled', url: window.location.origin + '/photos/' + user + '/albums/' + aid, count: '' });
			}
		}
		return albums;
	}`,

	PayloadPageTitle.String(): `() => {
		var el = document.querySelector('.album-title-cntl, h1.title, .album-title, .set-title');
		if (el && el.textContent.trim()) return el.textContent.trim();
		var parts = document.title.split('|');
		if (parts.length > 1) return parts[0].trim();
		return document.title.trim();
	}`,

	PayloadPageHTML.String(): `() => [document.documentElement.outerHTML]`,

	PayloadScrollBottom.String(): `() => { window.scrollTo(0, document.body.scrollHeight); return null; }`,

	PayloadScrollTop.String(): `() => { window.scrollTo(0, 0); return null; }`,
}
