package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"fanqie-tracker/internal/history"
	"fanqie-tracker/internal/ledger"
	"fanqie-tracker/internal/model"
	"fanqie-tracker/internal/store"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(title string, headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if title != "" {
		tw.SetTitle(title)
	}

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// retryMark 标记在重试台账中的书。
func retryMark(l *ledger.Ledger, id string) string {
	if l.Has(id) {
		return "retry"
	}
	return ""
}

func renderWaiting(books []model.WaitingBook, l *ledger.Ledger) string {
	rows := make([][]string, 0, len(books))
	for _, b := range books {
		rows = append(rows, []string{
			b.FanqieID, b.VITitle, optInt(b.CurrentChapters), strconv.Itoa(b.DesiredChapters),
			optString(b.Status), optString(b.LastUpdated), retryMark(l, b.FanqieID),
		})
	}
	return renderTable("waiting",
		[]string{"fanqie_id", "title", "chapters", "desired", "status", "last updated", ""},
		rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignRight})
}

func renderUploading(books []model.UploadingBook, l *ledger.Ledger) string {
	rows := make([][]string, 0, len(books))
	for _, b := range books {
		rows = append(rows, []string{
			b.FanqieID, optString(b.WikiID), optString(b.VITitle), strconv.Itoa(b.UploadedChapters),
			optInt(b.FanqieChapters), optString(b.Status), optString(b.LastUpdated), retryMark(l, b.FanqieID),
		})
	}
	return renderTable("uploading",
		[]string{"fanqie_id", "wiki_id", "title", "uploaded", "source", "status", "last updated", ""},
		rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight})
}

// renderLedger 列出台账中的书及其所在书单；不在任何书单中的 ID 标为 "-"。
func renderLedger(lists store.Lists, l *ledger.Ledger) string {
	where := make(map[string][2]string, len(lists.Waiting)+len(lists.Uploading))
	for _, b := range lists.Waiting {
		where[b.FanqieID] = [2]string{"waiting", b.VITitle}
	}
	for _, b := range lists.Uploading {
		where[b.FanqieID] = [2]string{"uploading", optString(b.VITitle)}
	}
	rows := make([][]string, 0, l.Len())
	for _, id := range l.IDs() {
		w, ok := where[id]
		if !ok {
			w = [2]string{"-", "-"}
		}
		rows = append(rows, []string{id, w[0], w[1]})
	}
	return renderTable("retry ledger", []string{"fanqie_id", "list", "title"}, rows, nil)
}

func renderRuns(runs []history.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			fmtTime(r.StartedAt), fmtTime(r.FinishedAt),
			strconv.Itoa(r.Waiting), strconv.Itoa(r.Uploading),
			strconv.Itoa(r.Failed), strconv.Itoa(r.Removed), strconv.Itoa(r.Ledger),
		})
	}
	return renderTable("runs",
		[]string{"started", "finished", "waiting", "uploading", "failed", "removed", "ledger"},
		rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight})
}

func renderAttempts(attempts []history.Attempt) string {
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		code := "-"
		if a.StatusCode != 0 {
			code = strconv.Itoa(a.StatusCode)
		}
		rows = append(rows, []string{fmtTime(a.CreatedAt), a.Collection, a.Outcome, code})
	}
	return renderTable("attempts", []string{"time", "list", "outcome", "http"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
}
