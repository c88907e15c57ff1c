package reconcile

import (
	"context"
	"fmt"
	"time"

	"fanqie-tracker/internal/history"
	"fanqie-tracker/internal/ledger"
	"fanqie-tracker/internal/logx"
	"fanqie-tracker/internal/metrics"
	"fanqie-tracker/internal/report"
	"fanqie-tracker/internal/store"
)

// Runner 执行一次完整运行：加锁→读取→等待书单→保存→上传书单→保存→保存台账。
// 每个书单在自己那一轮结束后立即落盘，崩溃最多丢失一个书单的本轮进度。
type Runner struct {
	store   *store.Store
	rec     *Reconciler
	history *history.SQLite
	metrics *metrics.Metrics

	// ReportPath / MetricsPath 为空时跳过对应输出。
	ReportPath  string
	MetricsPath string

	runID string
}

// NewRunner 创建 Runner；history 与 m 可为 nil。
// 会把自身注册为 rec 的 Observer。
func NewRunner(s *store.Store, rec *Reconciler, h *history.SQLite, m *metrics.Metrics) *Runner {
	r := &Runner{store: s, rec: rec, history: h, metrics: m}
	rec.opts.Observer = r
	return r
}

// Only 限定本次运行处理的书单，空值表示两个都处理。
type Only string

const (
	OnlyAll       Only = ""
	OnlyWaiting   Only = CollectionWaiting
	OnlyUploading Only = CollectionUploading
)

// Summary 为一次运行的结果。
type Summary struct {
	Report report.Report
	Ledger *ledger.Ledger
}

// Run 执行一次运行。持久化失败立即返回错误，已保存的文件保持有效。
func (r *Runner) Run(ctx context.Context, only Only) (Summary, error) {
	if only != OnlyAll && only != OnlyWaiting && only != OnlyUploading {
		return Summary{}, fmt.Errorf("unknown collection %q", only)
	}
	if err := r.store.Lock(); err != nil {
		return Summary{}, err
	}
	defer func() {
		if err := r.store.Unlock(); err != nil {
			logx.Warnf("释放状态目录锁失败：%v", err)
		}
	}()

	started := time.Now()
	lists, prev, err := r.store.Load()
	if err != nil {
		return Summary{}, fmt.Errorf("load state: %w", err)
	}
	logx.Infof("开始抓取：等待=%d 上传中=%d 重试台账=%d", len(lists.Waiting), len(lists.Uploading), prev.Len())
	if prev.Len() > 0 {
		logx.Warnf("上次失败待重试：%v", prev.IDs())
	}
	r.beginHistory(ctx)

	rep := report.Report{StartedAt: started}
	var failed, cleared []string

	if only != OnlyUploading {
		logx.Infof("[等待书单] %d 本", len(lists.Waiting))
		res, err := r.rec.Waiting(ctx, lists.Waiting)
		if err != nil {
			return Summary{}, err
		}
		if err := r.store.SaveWaiting(lists.Waiting); err != nil {
			return Summary{}, fmt.Errorf("save waiting: %w", err)
		}
		logx.Infof("已保存 %s", store.WaitingFile)
		rep.Waiting = res.Stats
		failed = append(failed, res.Failed...)
		cleared = append(cleared, res.Cleared...)
	}
	if only != OnlyWaiting {
		logx.Infof("[上传书单] %d 本", len(lists.Uploading))
		res, err := r.rec.Uploading(ctx, lists.Uploading)
		if err != nil {
			return Summary{}, err
		}
		if err := r.store.SaveUploading(lists.Uploading); err != nil {
			return Summary{}, fmt.Errorf("save uploading: %w", err)
		}
		logx.Infof("已保存 %s", store.UploadingFile)
		rep.Uploading = res.Stats
		failed = append(failed, res.Failed...)
		cleared = append(cleared, res.Cleared...)
	}

	next := ledger.Close(prev, failed, cleared)
	if err := r.store.SaveLedger(next); err != nil {
		return Summary{}, fmt.Errorf("save ledger: %w", err)
	}
	rep.FinishedAt = time.Now()
	rep.FailedIDs = failed
	rep.Ledger = next.IDs()
	if next.Len() > 0 {
		logx.Warnf("本轮后仍待重试 %d 本：%v", next.Len(), next.IDs())
	}

	r.finish(ctx, lists, rep, next)
	logx.Infof("完成：失败=%d 下架=%d 用时=%s", len(failed), rep.Waiting.Removed+rep.Uploading.Removed, rep.FinishedAt.Sub(started).Round(time.Millisecond))
	return Summary{Report: rep, Ledger: next}, nil
}

// Observe 将抓取结果写入历史库与指标，写历史失败只记日志。
func (r *Runner) Observe(ctx context.Context, a Attempt) {
	if r.metrics != nil {
		r.metrics.Observe(a.Collection, string(a.Outcome))
	}
	if r.history != nil && r.runID != "" {
		err := r.history.Record(ctx, history.Attempt{
			RunID:      r.runID,
			Collection: a.Collection,
			FanqieID:   a.FanqieID,
			Outcome:    string(a.Outcome),
			StatusCode: a.StatusCode,
		})
		if err != nil {
			logx.Warnf("写入抓取历史失败：%v", err)
		}
	}
}

func (r *Runner) beginHistory(ctx context.Context) {
	r.runID = ""
	if r.history == nil {
		return
	}
	id, err := r.history.BeginRun(ctx)
	if err != nil {
		logx.Warnf("写入运行历史失败：%v", err)
		return
	}
	r.runID = id
}

// finish 输出报告、指标与历史汇总；这些都是附属输出，失败不影响本次运行结果。
func (r *Runner) finish(ctx context.Context, lists store.Lists, rep report.Report, next *ledger.Ledger) {
	if r.ReportPath != "" {
		if err := report.Write(r.ReportPath, rep); err != nil {
			logx.Warnf("写入运行报告失败：%v", err)
		}
	}
	if r.metrics != nil {
		r.metrics.Finish(len(lists.Waiting), len(lists.Uploading), next.Len(), rep.FinishedAt.Sub(rep.StartedAt))
		if r.MetricsPath != "" {
			if err := r.metrics.WriteTextfile(r.MetricsPath); err != nil {
				logx.Warnf("写入指标失败：%v", err)
			}
		}
	}
	if r.history != nil && r.runID != "" {
		err := r.history.FinishRun(ctx, history.Run{
			ID:         r.runID,
			FinishedAt: rep.FinishedAt,
			Waiting:    len(lists.Waiting),
			Uploading:  len(lists.Uploading),
			Failed:     len(rep.FailedIDs),
			Removed:    rep.Waiting.Removed + rep.Uploading.Removed,
			Ledger:     next.Len(),
		})
		if err != nil {
			logx.Warnf("写入运行历史失败：%v", err)
		}
	}
}
