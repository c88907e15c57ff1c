// 包 report 将一次运行的汇总写为 JSON，供 CI 或机器人读取。
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Stats 为单个书单的统计。
type Stats struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Empty   int `json:"empty"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
	Titles  int `json:"titles,omitempty"`
}

// Report 为导出的顶层结构。
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Waiting    Stats     `json:"waiting"`
	Uploading  Stats     `json:"uploading"`
	FailedIDs  []string  `json:"failed_ids"`
	Ledger     []string  `json:"ledger"`
}

// Write 覆盖写入 path（带缩进格式）。
func Write(path string, r Report) error {
	if r.FailedIDs == nil {
		r.FailedIDs = []string{}
	}
	if r.Ledger == nil {
		r.Ledger = []string{}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	return nil
}
