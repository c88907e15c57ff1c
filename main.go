// 命令行入口：
// - 解析 settings.yaml/rules.yaml 并初始化日志
// - scrape：抓取两个书单并更新重试台账（由 cron 等外部调度触发）
// - status/ledger/history/validate：查看与校验本地状态
package main

import (
	"os"

	"fanqie-tracker/internal/logx"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logx.Errorf("运行失败：%v", err)
		os.Exit(1)
	}
}
