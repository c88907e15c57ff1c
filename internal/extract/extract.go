// 包 extract 将抓取到的页面转换为部分字段：
// - Book：书页的连载状态、最后更新时间与章节数，或下架标记
// - Wiki：wiki 条目的越南语标题
// 选择器来自 rules.yaml，语法与 "选择器@属性" / "||" 回退一致。
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"fanqie-tracker/internal/fetch"
	"fanqie-tracker/internal/model"
	"fanqie-tracker/internal/rules"
)

// Extractor 持有编译好的规则。
type Extractor struct {
	rules    *rules.Rules
	chapters *regexp.Regexp
	removed  []*regexp.Regexp
}

// New 编译规则中的正则，规则为 nil 时使用内置规则。
func New(r *rules.Rules) (*Extractor, error) {
	if r == nil {
		r = rules.Default()
	}
	re, err := regexp.Compile(r.Fanqie.ChaptersPattern)
	if err != nil {
		return nil, fmt.Errorf("compile chapters_pattern %q: %w", r.Fanqie.ChaptersPattern, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("chapters_pattern %q needs a capture group", r.Fanqie.ChaptersPattern)
	}
	e := &Extractor{rules: r, chapters: re}
	for _, pat := range r.Fanqie.RemovedTitles {
		if strings.TrimSpace(pat) == "" {
			continue
		}
		rt, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("compile removed_titles %q: %w", pat, err)
		}
		e.removed = append(e.removed, rt)
	}
	return e, nil
}

// Book 解析书页。404 或下架标题返回 model.Removed()；
// 页面仍带有状态或章节信息时不认为已下架。没有任何预期标记时返回全空的 Partial。
func (e *Extractor) Book(resp *fetch.Response) model.Partial {
	if resp.NotFound() {
		return model.Removed()
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return model.Partial{}
	}
	fr := e.rules.Fanqie
	var p model.Partial
	if s := classifyStatus(getVal(doc.Selection, fr.Status)); s != "" {
		p.Status = model.String(s)
	}
	if ts := getVal(doc.Selection, fr.LastUpdated); ts != "" {
		p.LastUpdated = model.String(ts)
	}
	if m := e.chapters.FindStringSubmatch(getVal(doc.Selection, fr.Chapters)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			p.Chapters = model.Int(n)
		}
	}
	if p.Status == nil && p.Chapters == nil && e.removedTitle(strings.TrimSpace(doc.Find("title").First().Text())) {
		return model.Removed()
	}
	return p
}

// Wiki 解析 wiki 条目页，非 2xx 响应没有标题。
func (e *Extractor) Wiki(resp *fetch.Response) model.WikiPartial {
	if !resp.OK() {
		return model.WikiPartial{}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return model.WikiPartial{}
	}
	title := norm.NFC.String(getVal(doc.Selection, e.rules.Wiki.Title))
	if title == "" {
		return model.WikiPartial{}
	}
	return model.WikiPartial{Title: model.String(title)}
}

// classifyStatus 归一已知状态，其余标签原样返回。
func classifyStatus(text string) string {
	switch {
	case text == "":
		return ""
	case strings.Contains(text, model.StatusOngoing):
		return model.StatusOngoing
	case strings.Contains(text, model.StatusCompleted):
		return model.StatusCompleted
	default:
		return text
	}
}

func (e *Extractor) removedTitle(title string) bool {
	if title == "" {
		return false
	}
	for _, re := range e.removed {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// BookURL 拼接书页地址。
func BookURL(base, fanqieID string) string {
	return joinBase(base, fanqieID)
}

// WikiURL 拼接 wiki 条目地址；wiki_id 中的 "~" 需转义为 %7E。
func WikiURL(base, wikiID string) string {
	return joinBase(base, strings.ReplaceAll(wikiID, "~", "%7E"))
}

func joinBase(base, id string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strings.TrimPrefix(id, "/")
}
