package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/forkmetrics/resto_backend/config"
	"github.com/forkmetrics/resto_backend/models"
	"github.com/forkmetrics/resto_backend/tablysync"
)

// Re-runs the Tably aggregation for a date window directly against the
// database, bypassing Pub/Sub. Intended for operator use after a mapping fix
// or a provider-side data correction.
func main() {
	businessID := flag.String("business-id", "", "Optional: backfill only one business. If empty, backfills every connected business.")
	from := flag.String("from", "", "Start date (YYYY-MM-DD). Required.")
	to := flag.String("to", "", "End date (YYYY-MM-DD). Defaults to -from.")
	flag.Parse()

	startDate, err := tablysync.ParseBusinessDate(*from)
	if err != nil {
		fmt.Fprintln(os.Stderr, "-from is required (YYYY-MM-DD)")
		os.Exit(1)
	}
	endDate := startDate
	if strings.TrimSpace(*to) != "" {
		endDate, err = tablysync.ParseBusinessDate(*to)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -to: %v\n", err)
			os.Exit(1)
		}
	}
	if endDate.Before(startDate) {
		fmt.Fprintln(os.Stderr, "-to is before -from")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	models.MigrateTable()

	var connections []models.IntegrationConnection
	connQuery := db.WithContext(ctx).
		Where("provider = ? AND status = ?", models.IntegrationProviderTably, models.IntegrationStatusConnected)
	if strings.TrimSpace(*businessID) != "" {
		connQuery = connQuery.Where("business_id = ?", strings.TrimSpace(*businessID))
	}
	if err := connQuery.Find(&connections).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list connections: %v\n", err)
		os.Exit(1)
	}
	if len(connections) == 0 {
		fmt.Fprintln(os.Stderr, "no connected businesses found to backfill")
		return
	}

	failures := 0
	for _, conn := range connections {
		fmt.Printf("Backfilling tably aggregates business=%s restaurant=%s from=%s to=%s\n",
			conn.BusinessId, conn.RestaurantId,
			startDate.Format(time.DateOnly), endDate.Format(time.DateOnly))

		run := models.IntegrationSyncRun{
			BusinessId:   conn.BusinessId,
			ConnectionId: conn.ID,
			Provider:     models.IntegrationProviderTably,
			Status:       models.SyncRunStatusQueued,
			TriggeredBy:  models.SyncTriggeredSystem,
			StartDate:    startDate,
			EndDate:      endDate,
		}
		if err := db.WithContext(ctx).Create(&run).Error; err != nil {
			fmt.Fprintf(os.Stderr, "business %s: failed to create run: %v\n", conn.BusinessId, err)
			failures++
			continue
		}

		if err := tablysync.ProcessSyncRun(ctx, tablysync.SyncPubSubPayload{
			RunId:        run.ID,
			BusinessId:   conn.BusinessId,
			ConnectionId: conn.ID,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "business %s run %d failed: %v\n", conn.BusinessId, run.ID, err)
			failures++
			continue
		}
	}

	if failures > 0 {
		fmt.Printf("Backfill finished with %d failure(s)\n", failures)
		os.Exit(1)
	}
	fmt.Println("Backfill complete")
}
