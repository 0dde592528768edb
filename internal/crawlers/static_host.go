package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/FlickrExtractor/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
)

// StaticHostConfig 静态宿主配置
type StaticHostConfig struct {
	Timeout            time.Duration // 单次请求超时 (默认:30s)
	Headers            http.Header   // 额外请求头
	InsecureSkipVerify bool          // 跳过TLS证书验证
}

// staticDoc 一个已抓取的文档
type staticDoc struct {
	url  string
	html string
	doc  *goquery.Document
}

// StaticHost 基于colly的静态宿主
// 每个上下文是一次同步抓取得到的HTML文档, 载荷在Go中对文档求值, 滚动为空操作
type StaticHost struct {
	collector *colly.Collector
	headers   http.Header

	docs   map[ContextHandle]*staticDoc
	active ContextHandle
	closed bool
	mu     sync.RWMutex
}

// NewStaticHost 创建静态宿主
func NewStaticHost(config StaticHostConfig) *StaticHost {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)
	c.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
	})

	utils.Debugf("静态宿主: 请求超时 %s", timeout)

	return &StaticHost{
		collector: c,
		headers:   config.Headers,
		docs:      make(map[ContextHandle]*staticDoc),
	}
}

// QueryActiveContext 返回最近一次抓取的文档
func (h *StaticHost) QueryActiveContext(ctx context.Context) (ContextHandle, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return "", ErrHostUnavailable
	}
	if h.active == "" {
		return "", fmt.Errorf("没有活动页面")
	}
	return h.active, nil
}

// CreateContext 同步抓取url并解析为文档
func (h *StaticHost) CreateContext(ctx context.Context, url string) (ContextHandle, error) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return "", ErrHostUnavailable
	}

	body, err := h.fetch(ctx, url)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("解析HTML失败 [%s]: %w", url, err)
	}

	handle := ContextHandle("static-" + uuid.NewString())

	h.mu.Lock()
	h.docs[handle] = &staticDoc{url: url, html: string(body), doc: doc}
	h.active = handle
	h.mu.Unlock()

	return handle, nil
}

// fetch 使用collector副本抓取
// 副本的请求绑定ctx, ctx取消时立即返回且进行中的HTTP请求随之中止
func (h *StaticHost) fetch(ctx context.Context, url string) ([]byte, error) {
	c := h.collector.Clone()
	c.Context = ctx

	var body []byte
	c.OnRequest(func(r *colly.Request) {
		for name, values := range h.headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
		utils.Debugf("访问: %s", r.URL.String())
	})
	c.OnResponse(func(r *colly.Response) {
		encoding := r.Headers.Get("Content-Encoding")
		decoded, err := decompressResponse(encoding, r.Body)
		if err != nil {
			// colly可能已经解压过gzip, 此时保留原始内容
			utils.Debugf("解压响应失败 [%s] (编码=%s): %v", url, encoding, err)
			decoded = r.Body
		}
		body = decoded
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("抓取失败 [%s]: %w", url, err)
		}
	}
	if body == nil {
		return nil, fmt.Errorf("抓取失败 [%s]: 响应为空", url)
	}
	return body, nil
}

// WaitLoad 静态文档在创建时已加载完成
func (h *StaticHost) WaitLoad(ctx context.Context, handle ContextHandle, timeout time.Duration) error {
	_, err := h.doc(handle)
	return err
}

// Evaluate 在Go中对文档执行载荷
func (h *StaticHost) Evaluate(ctx context.Context, handle ContextHandle, payload Payload) (*ScanResult, error) {
	if !IsRegistered(payload) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPayload, payload)
	}
	d, err := h.doc(handle)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{Payload: payload.String()}
	switch payload {
	case PayloadRenderedMedia:
		result.URLs = renderedMediaURLs(d.doc)
	case PayloadStyleMedia:
		result.URLs = styleMediaURLs(d.doc)
	case PayloadScriptTexts:
		d.doc.Find("script:not([src])").Each(func(_ int, s *goquery.Selection) {
			if text := s.Text(); text != "" {
				result.Texts = append(result.Texts, text)
			}
		})
	case PayloadListingLinks:
		result.Members = ExtractListing(d.doc, d.url)
	case PayloadPageTitle:
		result.Title = documentTitle(d.doc)
	case PayloadPageHTML:
		result.Texts = []string{d.html}
	case PayloadScrollBottom, PayloadScrollTop:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPayload, payload)
	}
	return result, nil
}

// CloseContext 丢弃文档
func (h *StaticHost) CloseContext(ctx context.Context, handle ContextHandle) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.docs, handle)
	if h.active == handle {
		h.active = ""
	}
	return nil
}

// OpenContexts 未关闭的文档数量
func (h *StaticHost) OpenContexts() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.docs)
}

// Close 释放全部文档
func (h *StaticHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	h.docs = make(map[ContextHandle]*staticDoc)
	h.active = ""
	return nil
}

func (h *StaticHost) doc(handle ContextHandle) (*staticDoc, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil, ErrHostUnavailable
	}
	d, ok := h.docs[handle]
	if !ok {
		return nil, fmt.Errorf("未知上下文: %s", handle)
	}
	return d, nil
}

// renderedMediaURLs img/source 属性和内联背景
func renderedMediaURLs(doc *goquery.Document) []string {
	var urls []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"src", "data-src"} {
			if v, ok := s.Attr(attr); ok && v != "" {
				urls = append(urls, v)
			}
		}
		urls = append(urls, splitSrcset(s.AttrOr("srcset", ""))...)
	})
	doc.Find("source[srcset]").Each(func(_ int, s *goquery.Selection) {
		urls = append(urls, splitSrcset(s.AttrOr("srcset", ""))...)
	})
	doc.Find(`[style*="background"]`).Each(func(_ int, s *goquery.Selection) {
		urls = append(urls, ExtractStyleURLs(s.AttrOr("style", ""))...)
	})
	return urls
}

// styleMediaURLs style属性与<style>块中的背景图
// 静态文档没有计算样式, 以样式表文本近似
func styleMediaURLs(doc *goquery.Document) []string {
	var urls []string
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		urls = append(urls, ExtractStyleURLs(s.AttrOr("style", ""))...)
	})
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		urls = append(urls, ExtractStyleURLs(s.Text())...)
	})
	return urls
}

// documentTitle 集合标题元素, 否则取文档标题 "|" 之前的部分
func documentTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find(".album-title-cntl, h1.title, .album-title, .set-title").First().Text()); t != "" {
		return t
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if parts := strings.Split(title, "|"); len(parts) > 1 {
		return strings.TrimSpace(parts[0])
	}
	return title
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
