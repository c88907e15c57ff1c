// 包 reconcile 负责抓取与合并的主流程：
// - 逐本抓取书页，按字段合并进书单记录
// - 区分成功 / 已下架 / 重试耗尽，并据此维护重试台账
// - 正在上传的书缺标题时补抓 wiki 标题
// 整个流程串行执行，请求之间有固定间隔。
package reconcile

import (
	"context"
	"errors"
	"time"

	"fanqie-tracker/internal/extract"
	"fanqie-tracker/internal/fetch"
	"fanqie-tracker/internal/ledger"
	"fanqie-tracker/internal/logx"
	"fanqie-tracker/internal/model"
	"fanqie-tracker/internal/report"
	"fanqie-tracker/internal/store"
)

const (
	CollectionWaiting   = "waiting"
	CollectionUploading = "uploading"
)

// Outcome 为单次抓取的分类结果。
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRemoved   Outcome = "removed"
	OutcomeExhausted Outcome = "exhausted"

	OutcomeWikiTitle     Outcome = "wiki_title"
	OutcomeWikiMissing   Outcome = "wiki_missing"
	OutcomeWikiExhausted Outcome = "wiki_exhausted"
)

// Fetcher 为远端抓取接口，*fetch.Client 实现了它。
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Response, error)
}

// Attempt 描述一次抓取，交给 Observer 记录。
type Attempt struct {
	Collection string
	FanqieID   string
	Outcome    Outcome
	StatusCode int
}

// Observer 接收每次抓取的结果（历史库、指标）。
type Observer interface {
	Observe(ctx context.Context, a Attempt)
}

// Options 为 Reconciler 参数。
type Options struct {
	BookBase  string
	WikiBase  string
	BookDelay time.Duration
	WikiDelay time.Duration
	Extractor *extract.Extractor
	Observer  Observer
	// Sleep 可替换请求间隔等待，测试中使用。
	Sleep func(context.Context, time.Duration) error
}

// Reconciler 持有共享的抓取客户端与解析规则。
type Reconciler struct {
	fetch Fetcher
	opts  Options
}

// Result 为一个书单一轮的结果。
type Result struct {
	// Failed 为重试耗尽的书，Cleared 为本轮成功或确认下架的书。
	Failed  []string
	Cleared []string
	Stats   report.Stats
}

// New 创建 Reconciler。Extractor 为空时使用内置规则。
func New(f Fetcher, opts Options) (*Reconciler, error) {
	if opts.Extractor == nil {
		e, err := extract.New(nil)
		if err != nil {
			return nil, err
		}
		opts.Extractor = e
	}
	if opts.Sleep == nil {
		opts.Sleep = fetch.Sleep
	}
	return &Reconciler{fetch: f, opts: opts}, nil
}

// Waiting 按存储顺序处理等待书单，原地合并 books 中的字段。
// 只有 ctx 结束时返回错误。
func (r *Reconciler) Waiting(ctx context.Context, books []model.WaitingBook) (Result, error) {
	res := Result{Stats: report.Stats{Total: len(books)}}
	for i := range books {
		b := &books[i]
		p, outcome, err := r.book(ctx, CollectionWaiting, b.FanqieID)
		if err != nil {
			return res, err
		}
		if outcome == OutcomeExhausted {
			res.fail(b.FanqieID)
			continue
		}
		b.Apply(p)
		res.clear(b.FanqieID, p)
	}
	return res, nil
}

// Uploading 按存储顺序处理正在上传的书单；章节数只写入 FanqieChapters。
func (r *Reconciler) Uploading(ctx context.Context, books []model.UploadingBook) (Result, error) {
	res := Result{Stats: report.Stats{Total: len(books)}}
	for i := range books {
		b := &books[i]
		p, outcome, err := r.book(ctx, CollectionUploading, b.FanqieID)
		if err != nil {
			return res, err
		}
		if outcome == OutcomeExhausted {
			res.fail(b.FanqieID)
		} else {
			b.Apply(p)
			res.clear(b.FanqieID, p)
		}
		// 缺标题时每轮都会再试一次，这里的失败不进入台账
		if b.NeedsTitle() {
			ok, err := r.wiki(ctx, b)
			if err != nil {
				return res, err
			}
			if ok {
				res.Stats.Titles++
			}
		}
	}
	return res, nil
}

// Pass 依次处理两个书单，返回更新后的书单、收敛后的台账与本轮失败的 ID。
// 入参 lists 不会被修改。
func (r *Reconciler) Pass(ctx context.Context, lists store.Lists, prev *ledger.Ledger) (store.Lists, *ledger.Ledger, []string, error) {
	out := store.Lists{
		Waiting:   append([]model.WaitingBook(nil), lists.Waiting...),
		Uploading: append([]model.UploadingBook(nil), lists.Uploading...),
	}
	w, err := r.Waiting(ctx, out.Waiting)
	if err != nil {
		return lists, prev, nil, err
	}
	u, err := r.Uploading(ctx, out.Uploading)
	if err != nil {
		return lists, prev, nil, err
	}
	failed := append(append([]string{}, w.Failed...), u.Failed...)
	cleared := append(append([]string{}, w.Cleared...), u.Cleared...)
	return out, ledger.Close(prev, failed, cleared), failed, nil
}

// book 抓取并解析单本书页，之后等待 BookDelay。
func (r *Reconciler) book(ctx context.Context, collection, id string) (model.Partial, Outcome, error) {
	resp, err := r.fetch.Get(ctx, extract.BookURL(r.opts.BookBase, id))
	if err != nil && ctx.Err() != nil {
		return model.Partial{}, "", ctx.Err()
	}
	var (
		p       model.Partial
		outcome Outcome
		code    int
	)
	switch {
	case err != nil:
		if !errors.Is(err, fetch.ErrExhausted) {
			logx.Warnf("[%s|%s] 请求无法发出：%v", collection, id, err)
		} else {
			logx.Warnf("[%s|%s] 重试耗尽，加入重试台账：%v", collection, id, err)
		}
		outcome = OutcomeExhausted
	default:
		code = resp.StatusCode
		p = r.opts.Extractor.Book(resp)
		outcome = OutcomeSuccess
		switch {
		case p.IsRemoved():
			outcome = OutcomeRemoved
			logx.Infof("[%s|%s] 已下架（HTTP %d）", collection, id, code)
		case p.Empty():
			logx.Warnf("[%s|%s] 页面未找到预期字段（HTTP %d），保留原值", collection, id, code)
		default:
			logx.Infof("[%s|%s] %d章 %s %s", collection, id, model.Deref(p.Chapters), model.Deref(p.Status), model.Deref(p.LastUpdated))
		}
	}
	r.observe(ctx, Attempt{Collection: collection, FanqieID: id, Outcome: outcome, StatusCode: code})
	if err := r.opts.Sleep(ctx, r.opts.BookDelay); err != nil {
		return model.Partial{}, "", err
	}
	return p, outcome, nil
}

// wiki 补抓标题，之后等待 WikiDelay。返回是否写入了标题。
func (r *Reconciler) wiki(ctx context.Context, b *model.UploadingBook) (bool, error) {
	wikiID := model.Deref(b.WikiID)
	resp, err := r.fetch.Get(ctx, extract.WikiURL(r.opts.WikiBase, wikiID))
	if err != nil && ctx.Err() != nil {
		return false, ctx.Err()
	}
	a := Attempt{Collection: CollectionUploading, FanqieID: b.FanqieID}
	var got bool
	if err != nil {
		a.Outcome = OutcomeWikiExhausted
		logx.Warnf("[wiki|%s] 抓取失败，下轮重试：%v", wikiID, err)
	} else {
		a.StatusCode = resp.StatusCode
		wp := r.opts.Extractor.Wiki(resp)
		if wp.Title != nil {
			b.ApplyWiki(wp)
			got = true
			a.Outcome = OutcomeWikiTitle
			logx.Infof("[wiki|%s] 标题：%s", wikiID, *wp.Title)
		} else {
			a.Outcome = OutcomeWikiMissing
			logx.Warnf("[wiki|%s] 未找到标题（HTTP %d）", wikiID, resp.StatusCode)
		}
	}
	r.observe(ctx, a)
	if err := r.opts.Sleep(ctx, r.opts.WikiDelay); err != nil {
		return got, err
	}
	return got, nil
}

func (r *Reconciler) observe(ctx context.Context, a Attempt) {
	if r.opts.Observer != nil {
		r.opts.Observer.Observe(ctx, a)
	}
}

func (res *Result) fail(id string) {
	res.Failed = append(res.Failed, id)
	res.Stats.Failed++
}

func (res *Result) clear(id string, p model.Partial) {
	res.Cleared = append(res.Cleared, id)
	switch {
	case p.IsRemoved():
		res.Stats.Removed++
	case p.Empty():
		res.Stats.Empty++
	default:
		res.Stats.Updated++
	}
}
