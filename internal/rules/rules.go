// 包 rules 负责加载并提供页面解析规则（rules.yaml），
// 以站点名（fanqie/wiki）组织 CSS 选择器与下架页面的标题特征。
package rules

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules 为两个站点的解析规则。
type Rules struct {
	Fanqie Fanqie `yaml:"fanqie"`
	Wiki   Wiki   `yaml:"wiki"`
}

// Fanqie 描述书页的选择器：
// - status/last_updated/chapters：取文本或属性（支持 a@href 语法与 "||" 回退）
// - chapters_pattern：从章节标题中提取数字的正则，需包含一个捕获组
// - removed_titles：下架页面 <title> 的正则，任一匹配且页面没有书籍信息时视为已下架
type Fanqie struct {
	Status          string   `yaml:"status"`
	LastUpdated     string   `yaml:"last_updated"`
	Chapters        string   `yaml:"chapters"`
	ChaptersPattern string   `yaml:"chapters_pattern"`
	RemovedTitles   []string `yaml:"removed_titles"`
}

// Wiki 描述 wiki 条目页的选择器。
type Wiki struct {
	Title string `yaml:"title"`
}

// Default 返回内置规则。
func Default() *Rules {
	return &Rules{
		Fanqie: Fanqie{
			Status:          ".info-label span",
			LastUpdated:     ".info-last .info-last-time",
			Chapters:        ".page-directory-header h3",
			ChaptersPattern: `(\d+)章`,
			RemovedTitles:   []string{`^404(\s*[-_|·].*)?$`, `^页面不存在`, `^(该书|书籍)已下架`},
		},
		Wiki: Wiki{
			Title: ".cover-info h2",
		},
	}
}

// Load 从文件加载 YAML，未填写的字段回退到内置规则。
func Load(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var r Rules
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("unmarshal rules %s: %w", path, err)
	}
	r.fill(Default())
	return &r, nil
}

func (r *Rules) fill(d *Rules) {
	set := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	set(&r.Fanqie.Status, d.Fanqie.Status)
	set(&r.Fanqie.LastUpdated, d.Fanqie.LastUpdated)
	set(&r.Fanqie.Chapters, d.Fanqie.Chapters)
	set(&r.Fanqie.ChaptersPattern, d.Fanqie.ChaptersPattern)
	set(&r.Wiki.Title, d.Wiki.Title)
	if len(r.Fanqie.RemovedTitles) == 0 {
		r.Fanqie.RemovedTitles = d.Fanqie.RemovedTitles
	}
}
