// 包 config 负责加载与校验应用配置（settings.yaml），
// 对外提供结构体 Config 及默认值/合法性校验。所有键都可省略。
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"fanqie-tracker/internal/fetch"
)

type Config struct {
	StateDir        string  `yaml:"STATE_DIR"`
	Sources         Sources `yaml:"SOURCES"`
	HTTP            HTTP    `yaml:"HTTP"`
	Retry           Retry   `yaml:"RETRY"`
	Rate            Rate    `yaml:"RATE"`
	Proxy           Proxy   `yaml:"PROXY"`
	History         History `yaml:"HISTORY"`
	MetricsTextfile string  `yaml:"METRICS_TEXTFILE"`
	Report          string  `yaml:"REPORT"`
	LogLevel        string  `yaml:"LOG_LEVEL"`
	LogFormat       string  `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale       string  `yaml:"LOG_LOCALE"` // zh-CN|en|vi
	LogColor        string  `yaml:"LOG_COLOR"`  // auto|always|never
}

// Sources 为两个站点的地址前缀，书籍 ID 直接拼在后面。
type Sources struct {
	Fanqie string `yaml:"FANQIE"`
	Wiki   string `yaml:"WIKI"`
}

type HTTP struct {
	Timeout        time.Duration `yaml:"TIMEOUT"`
	UserAgent      string        `yaml:"USER_AGENT"`
	AcceptLanguage string        `yaml:"ACCEPT_LANGUAGE"`
}

// Retry 为单次运行内的重试预算；跨运行的重试由台账负责。
type Retry struct {
	Attempts int             `yaml:"ATTEMPTS"`
	Delays   []time.Duration `yaml:"DELAYS"`
}

// Rate 为请求之间的固定间隔，用于避免被源站封禁。
type Rate struct {
	BookDelay time.Duration `yaml:"BOOK_DELAY"`
	WikiDelay time.Duration `yaml:"WIKI_DELAY"`
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

// History 为运行历史库，DSN 为空时不记录。
type History struct {
	DSN string `yaml:"DSN"`
}

// Default 返回全部使用默认值的配置。
func Default() *Config {
	c := &Config{}
	_ = c.Validate()
	return c
}

// Load 从文件读取 YAML 并反序列化为 Config，同时进行基础校验与默认值填充。
// allowMissing 为 true 时文件不存在视为空配置。
func Load(path string, allowMissing bool) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Validate 负责合法性检查与默认值设置，避免在业务层分散判空逻辑。
func (c *Config) Validate() error {
	if c.StateDir == "" {
		c.StateDir = "."
	}
	if c.Sources.Fanqie == "" {
		c.Sources.Fanqie = "https://fanqienovel.com/page/"
	}
	if c.Sources.Wiki == "" {
		c.Sources.Wiki = "https://wikicv.net/truyen/"
	}
	for _, u := range []string{c.Sources.Fanqie, c.Sources.Wiki} {
		pu, err := url.Parse(u)
		if err != nil || (pu.Scheme != "http" && pu.Scheme != "https") || pu.Host == "" {
			return fmt.Errorf("SOURCES: invalid url %q", u)
		}
	}
	if c.HTTP.Timeout < 0 {
		return errors.New("HTTP.TIMEOUT must be >= 0")
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 15 * time.Second
	}
	if c.HTTP.UserAgent == "" {
		// 允许用环境变量覆盖 UA，便于应对 403
		c.HTTP.UserAgent = os.Getenv("TRACKER_UA")
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = fetch.DefaultUserAgent
	}
	if c.HTTP.AcceptLanguage == "" {
		c.HTTP.AcceptLanguage = fetch.DefaultAcceptLanguage
	}
	if c.Retry.Attempts < 0 {
		return errors.New("RETRY.ATTEMPTS must be >= 0")
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = fetch.DefaultMaxAttempts
	}
	if len(c.Retry.Delays) == 0 {
		c.Retry.Delays = append([]time.Duration(nil), fetch.DefaultDelays...)
	}
	for _, d := range c.Retry.Delays {
		if d < 0 {
			return errors.New("RETRY.DELAYS must be >= 0")
		}
	}
	if c.Rate.BookDelay < 0 || c.Rate.WikiDelay < 0 {
		return errors.New("RATE delays must be >= 0")
	}
	if c.Rate.BookDelay == 0 {
		c.Rate.BookDelay = 1500 * time.Millisecond
	}
	if c.Rate.WikiDelay == 0 {
		c.Rate.WikiDelay = time.Second
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "zh-CN"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}

// FetchOptions 转换为抓取客户端参数。
func (c *Config) FetchOptions() fetch.Options {
	return fetch.Options{
		ProxyHTTP:      c.Proxy.HTTP,
		ProxyHTTPS:     c.Proxy.HTTPS,
		Timeout:        c.HTTP.Timeout,
		UserAgent:      c.HTTP.UserAgent,
		AcceptLanguage: c.HTTP.AcceptLanguage,
		MaxAttempts:    c.Retry.Attempts,
		Delays:         c.Retry.Delays,
	}
}
