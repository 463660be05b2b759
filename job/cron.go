package job

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"dca-scanner/storage/es"
	"dca-scanner/storage/postgres"
	"dca-scanner/vars"

	"github.com/robfig/cron/v3"
)

// StartCronJob 启动审查记录的定期清理任务
// 保留期由 RETENTION_DAYS 控制，过期的 scan_records 和 ES finding 一起删
func StartCronJob(scanRepo *postgres.ScanRepo, esIndexer *es.FindingIndexer) {
	retentionDays, err := strconv.Atoi(vars.RETENTION_DAYS)
	if err != nil || retentionDays <= 0 {
		retentionDays = 90
	}

	c := cron.New()

	// 每天凌晨 3 点执行
	_, _ = c.AddFunc("0 3 * * *", func() {
		ctx := context.Background()
		cutoff := time.Now().AddDate(0, 0, -retentionDays)

		rows, err := scanRepo.PurgeBefore(ctx, cutoff)
		if err != nil {
			fmt.Println("[Cron] 清理 scan_records 失败:", err)
		} else {
			fmt.Printf("[Cron] 清理了 %d 条过期审查记录 (早于 %s)\n", rows, cutoff.Format("2006-01-02"))
		}

		if err := esIndexer.PurgeBefore(ctx, cutoff); err != nil {
			fmt.Println("[Cron] 清理 ES finding 失败:", err)
		}
	})

	c.Start()
}
