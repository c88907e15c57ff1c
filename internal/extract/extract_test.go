package extract

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"fanqie-tracker/internal/fetch"
	"fanqie-tracker/internal/model"
	"fanqie-tracker/internal/rules"
)

const bookPage = `<!doctype html><html><head><title>某书 - 番茄小说</title></head><body>
<div class="info-label"><span>连载中</span><span>都市</span></div>
<div class="info-last"><span class="info-last-title">第50章</span><span class="info-last-time">2024-05-01 12:00</span></div>
<div class="page-directory-header"><h3>目录 · 50章</h3></div>
</body></html>`

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(nil)
	require.NoError(t, err)
	return e
}

func page(code int, body string) *fetch.Response {
	return &fetch.Response{StatusCode: code, Body: []byte(body)}
}

func TestBook_AllFields(t *testing.T) {
	p := newExtractor(t).Book(page(http.StatusOK, bookPage))
	require.NotNil(t, p.Chapters)
	assert.Equal(t, 50, *p.Chapters)
	assert.Equal(t, model.StatusOngoing, model.Deref(p.Status))
	assert.Equal(t, "2024-05-01 12:00", model.Deref(p.LastUpdated))
	assert.False(t, p.IsRemoved())
}

func TestBook_CompletedAndUnknownStatus(t *testing.T) {
	e := newExtractor(t)
	p := e.Book(page(200, `<div class="info-label"><span>已完结 </span></div>`))
	assert.Equal(t, model.StatusCompleted, model.Deref(p.Status))

	p = e.Book(page(200, `<div class="info-label"><span>暂停更新</span></div>`))
	assert.Equal(t, "暂停更新", model.Deref(p.Status))
}

func TestBook_NotFoundIsRemoved(t *testing.T) {
	p := newExtractor(t).Book(page(http.StatusNotFound, ""))
	assert.True(t, p.IsRemoved())
	assert.Nil(t, p.Chapters)
	assert.Nil(t, p.LastUpdated)
}

func TestBook_RemovedTitle(t *testing.T) {
	e := newExtractor(t)
	for _, title := range []string{"该书已下架", "404", "404 - 番茄小说", "页面不存在_番茄小说官网"} {
		p := e.Book(page(200, `<html><head><title>`+title+`</title></head><body></body></html>`))
		assert.True(t, p.IsRemoved(), title)
	}
}

func TestBook_LiveTitleContaining404(t *testing.T) {
	e := newExtractor(t)
	p := e.Book(page(200, `<html><head><title>404号房间完整版在线免费阅读_番茄小说官网</title></head><body>
<div class="info-label"><span>连载中</span></div>
<div class="page-directory-header"><h3>目录 120章</h3></div></body></html>`))
	assert.False(t, p.IsRemoved())
	assert.Equal(t, model.StatusOngoing, model.Deref(p.Status))
	assert.Equal(t, 120, model.Deref(p.Chapters))

	// 没有书籍信息时，书名里带 404 也不算下架页面
	p = e.Book(page(200, `<html><head><title>404号房间完整版在线免费阅读_番茄小说官网</title></head></html>`))
	assert.False(t, p.IsRemoved())
	assert.True(t, p.Empty())
}

func TestBook_RemovedTitleIgnoredWithBookInfo(t *testing.T) {
	p := newExtractor(t).Book(page(200, `<html><head><title>该书已下架</title></head><body>
<div class="info-label"><span>已完结</span></div></body></html>`))
	assert.False(t, p.IsRemoved())
	assert.Equal(t, model.StatusCompleted, model.Deref(p.Status))
}

func TestNew_BadRemovedPattern(t *testing.T) {
	r := rules.Default()
	r.Fanqie.RemovedTitles = []string{"("}
	_, err := New(r)
	require.Error(t, err)
}

func TestBook_MalformedIsEmpty(t *testing.T) {
	e := newExtractor(t)
	assert.True(t, e.Book(page(200, `<html><body><p>captcha</p></body></html>`)).Empty())
	assert.True(t, e.Book(page(http.StatusInternalServerError, "oops")).Empty())
	// 有标题但没有数字
	assert.True(t, e.Book(page(200, `<div class="page-directory-header"><h3>目录</h3></div>`)).Empty())
}

func TestWiki_Title(t *testing.T) {
	e := newExtractor(t)
	// 组合字符形式的越南语标题会被归一为 NFC
	decomposed := norm.NFD.String("Truyện X")
	p := e.Wiki(page(200, `<div class="cover-info"><div><h2> `+decomposed+` </h2></div></div>`))
	require.NotNil(t, p.Title)
	assert.Equal(t, "Truyện X", *p.Title)

	assert.Nil(t, e.Wiki(page(http.StatusNotFound, "")).Title)
	assert.Nil(t, e.Wiki(page(200, `<div class="cover-info"></div>`)).Title)
}

func TestNew_CustomRules(t *testing.T) {
	r := rules.Default()
	r.Wiki.Title = "h1.name||h2"
	r.Fanqie.Chapters = "span@data-count"
	r.Fanqie.ChaptersPattern = `(\d+)`
	e, err := New(r)
	require.NoError(t, err)

	assert.Equal(t, "Y", model.Deref(e.Wiki(page(200, `<h2>Y</h2>`)).Title))
	assert.Equal(t, 7, model.Deref(e.Book(page(200, `<span data-count="7"></span>`)).Chapters))

	r.Fanqie.ChaptersPattern = `\d+`
	_, err = New(r)
	require.Error(t, err)
	r.Fanqie.ChaptersPattern = `(`
	_, err = New(r)
	require.Error(t, err)
}

func TestURLs(t *testing.T) {
	assert.Equal(t, "https://fanqienovel.com/page/123", BookURL("https://fanqienovel.com/page/", "123"))
	assert.Equal(t, "https://fanqienovel.com/page/123", BookURL("https://fanqienovel.com/page", "123"))
	assert.Equal(t, "https://wikicv.net/truyen/abc%7Edef", WikiURL("https://wikicv.net/truyen/", "abc~def"))
}
