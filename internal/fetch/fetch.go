// 包 fetch 封装抓取用的 HTTP 客户端（代理/超时/重试/固定请求头）。
// 一次运行只创建一个 Client，所有请求共享连接、Cookie 与请求头。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// ErrExhausted 表示重试次数用尽仍未拿到任何响应。
var ErrExhausted = errors.New("fetch: retries exhausted")

const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultAcceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
	DefaultMaxAttempts    = 3

	maxBody = 4 << 20
)

// DefaultDelays 为第 i 次传输失败后的等待时间。
var DefaultDelays = []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}

// Response 为已收到的 HTTP 响应（含错误状态码），Body 已完整读出。
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}

// NotFound 表示源站确认资源不存在。
func (r *Response) NotFound() bool { return r != nil && r.StatusCode == http.StatusNotFound }

// OK 表示 2xx。
func (r *Response) OK() bool { return r != nil && r.StatusCode >= 200 && r.StatusCode < 300 }

// Client 为带重试的 HTTP 客户端。
type Client struct {
	http     *http.Client
	ua       string
	lang     string
	attempts int
	delays   []time.Duration
	sleep    func(context.Context, time.Duration) error
}

// Options 为客户端构造参数，零值字段使用默认值。
type Options struct {
	ProxyHTTP      string
	ProxyHTTPS     string
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	MaxAttempts    int
	Delays         []time.Duration
	// Sleep 可替换退避等待，测试中使用。
	Sleep func(context.Context, time.Duration) error
}

// New 创建客户端，支持 http/https 代理与基础超时配置。
func New(opts Options) (*Client, error) {
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && opts.ProxyHTTPS != "" {
				return url.Parse(opts.ProxyHTTPS)
			}
			if req.URL.Scheme == "http" && opts.ProxyHTTP != "" {
				return url.Parse(opts.ProxyHTTP)
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	c := &Client{
		http:     &http.Client{Transport: transport, Jar: jar, Timeout: opts.Timeout},
		ua:       opts.UserAgent,
		lang:     opts.AcceptLanguage,
		attempts: opts.MaxAttempts,
		delays:   opts.Delays,
		sleep:    opts.Sleep,
	}
	if c.ua == "" {
		c.ua = DefaultUserAgent
	}
	if c.lang == "" {
		c.lang = DefaultAcceptLanguage
	}
	if c.attempts <= 0 {
		c.attempts = DefaultMaxAttempts
	}
	if c.delays == nil {
		c.delays = DefaultDelays
	}
	if c.sleep == nil {
		c.sleep = Sleep
	}
	return c, nil
}

// Get 发起 GET 请求。只有传输层错误（超时、连接失败、DNS 等）才会重试；
// 收到的任何 HTTP 响应（包括 4xx/5xx）立即返回。
// 重试耗尽时返回包裹 ErrExhausted 的错误。
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	var lastErr error
	for i := 0; i < c.attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("new request %s: %w", rawURL, err)
		}
		req.Header.Set("User-Agent", c.ua)
		req.Header.Set("Accept-Language", c.lang)

		resp, err := c.do(req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if i == c.attempts-1 {
			break
		}
		if err := c.sleep(ctx, c.delay(i)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("GET %s after %d attempts: %w: %v", rawURL, c.attempts, ErrExhausted, lastErr)
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		// 读取响应体中断同样属于传输失败
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{URL: req.URL.String(), StatusCode: resp.StatusCode, Body: b}, nil
}

// delay 取第 i 次失败后的等待时间，超出表长时沿用最后一项。
func (c *Client) delay(i int) time.Duration {
	if len(c.delays) == 0 {
		return 0
	}
	if i >= len(c.delays) {
		return c.delays[len(c.delays)-1]
	}
	return c.delays[i]
}

// Sleep 等待 d 或 ctx 结束。
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
