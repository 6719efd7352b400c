// backfill-statistics recomputes daily statistic rows for a past date range.
// Each day is recomputed wholesale, so rerunning is always safe.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/backfill-statistics -days 30
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/stockflow_backend/config"
	"bitbucket.org/mmdatafocus/stockflow_backend/models"
)

func main() {
	days := flag.Int("days", 30, "number of days back from today to recompute")
	flag.Parse()

	if *days <= 0 {
		fmt.Fprintln(os.Stderr, "-days must be positive")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	today := time.Now()
	for i := *days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		if err := models.UpdateDailyStatisticsFor(ctx, day); err != nil {
			fmt.Fprintf(os.Stderr, "failed to recompute %s: %v\n", day.Format("2006-01-02"), err)
			os.Exit(1)
		}
		fmt.Printf("recomputed %s\n", day.Format("2006-01-02"))
	}
}
