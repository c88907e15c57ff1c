// 包 metrics 汇总抓取计数，运行结束后写成 node_exporter textfile 格式。
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 持有独立的注册表，避免与全局默认注册表混用。
type Metrics struct {
	reg *prometheus.Registry

	FetchTotal  *prometheus.CounterVec
	Books       *prometheus.GaugeVec
	LedgerSize  prometheus.Gauge
	LastRun     prometheus.Gauge
	RunDuration prometheus.Gauge
}

// New 创建指标并注册到独立的 Registry。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		FetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_fetch_total",
				Help: "Book page fetches by collection and outcome.",
			},
			[]string{"collection", "outcome"}, // outcome: success, removed, exhausted, wiki_*
		),
		Books: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tracker_books",
				Help: "Books tracked per collection.",
			},
			[]string{"collection"},
		),
		LedgerSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_ledger_size",
			Help: "Books waiting for a retry on the next run.",
		}),
		LastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		RunDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
	}
}

// Observe 累加一次抓取结果。
func (m *Metrics) Observe(collection, outcome string) {
	m.FetchTotal.WithLabelValues(collection, outcome).Inc()
}

// Finish 记录运行结束时的快照。
func (m *Metrics) Finish(waiting, uploading, ledger int, took time.Duration) {
	m.Books.WithLabelValues("waiting").Set(float64(waiting))
	m.Books.WithLabelValues("uploading").Set(float64(uploading))
	m.LedgerSize.Set(float64(ledger))
	m.LastRun.SetToCurrentTime()
	m.RunDuration.Set(took.Seconds())
}

// Registry 返回内部 Registry，便于测试读取。
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// WriteTextfile 写出 textfile（内部先写临时文件再 rename）。
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
