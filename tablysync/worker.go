package tablysync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/forkmetrics/resto_backend/config"
	"github.com/forkmetrics/resto_backend/models"
	"github.com/forkmetrics/resto_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// revenueGapTolerance is the rounding slack allowed between the category-sum
// and net-sales revenue computations before a run is flagged.
var revenueGapTolerance = decimal.NewFromInt(1)

// ProcessSyncRun executes one queued sync run end to end: fetch the window's
// orders, aggregate, persist, and record the diagnostics snapshot on the run
// row. Runs for the same business are serialized through a redis lock because
// the persistence writes for a window must not interleave.
func ProcessSyncRun(ctx context.Context, payload SyncPubSubPayload) error {
	if payload.RunId == 0 || payload.BusinessId == "" {
		return errors.New("invalid payload")
	}

	ctx = utils.SetBusinessIdInContext(ctx, payload.BusinessId)
	db := config.GetDB().WithContext(ctx)
	logger := config.GetLogger()

	var run models.IntegrationSyncRun
	if err := db.Where("id = ? AND business_id = ?", payload.RunId, payload.BusinessId).Take(&run).Error; err != nil {
		return err
	}

	// At-least-once delivery: a rerun of a finished run is a no-op.
	if run.Status == models.SyncRunStatusSuccess || run.Status == models.SyncRunStatusFailed || run.Status == models.SyncRunStatusPartial {
		return nil
	}

	var conn models.IntegrationConnection
	if err := db.Where("id = ? AND business_id = ?", run.ConnectionId, payload.BusinessId).Take(&conn).Error; err != nil {
		return err
	}
	if conn.Status != models.IntegrationStatusConnected {
		return errors.New("tably not connected")
	}

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "tably-sync:"+payload.BusinessId, 15*time.Minute, nil)
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				return fmt.Errorf("sync already in flight for business %s", payload.BusinessId)
			}
			return err
		}
		defer lock.Release(ctx)
	}

	now := time.Now()
	startedAt := run.StartedAt
	if startedAt == nil {
		startedAt = &now
	}
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":     models.SyncRunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		return err
	}

	client, err := newTablyClient(conn.AuthSecretRef)
	if err != nil {
		return finishRun(db, &run, &conn, startedAt, models.SyncRunStatusFailed, 0, 1, nil)
	}

	maps, err := loadConfigMappings(ctx, client, &conn)
	if err != nil {
		_ = createSyncError(ctx, db, run.ID, payload.BusinessId, "config", "", "config_fetch_failed", err.Error(), nil, true)
		return finishRun(db, &run, &conn, startedAt, models.SyncRunStatusFailed, 0, 1, nil)
	}

	orders, err := client.fetchOrders(ctx, conn.RestaurantId, run.StartDate, run.EndDate)
	if err != nil {
		_ = createSyncError(ctx, db, run.ID, payload.BusinessId, "orders", "", "fetch_failed", err.Error(), nil, true)
		return finishRun(db, &run, &conn, startedAt, models.SyncRunStatusFailed, len(orders), 1, nil)
	}

	diag := NewDiagnostics()
	daypartRows, dayRows := AggregateOrders(conn.RestaurantId, orders, maps, run.StartDate, run.EndDate, diag)

	errorCount := 0
	status := models.SyncRunStatusSuccess
	if err := ReplaceDaypartRows(ctx, db, payload.BusinessId, daypartRows); err != nil {
		errorCount++
		_ = createSyncError(ctx, db, run.ID, payload.BusinessId, "daypart_summary", "", "persist_failed", err.Error(), nil, true)
	}
	if err := UpsertTransactionRows(ctx, db, payload.BusinessId, dayRows); err != nil {
		errorCount++
		_ = createSyncError(ctx, db, run.ID, payload.BusinessId, "transaction_summary", "", "persist_failed", err.Error(), nil, true)
	}
	if errorCount > 0 {
		// Writes are idempotent per date, so a retry of the whole window
		// fully overwrites whatever landed.
		status = models.SyncRunStatusFailed
		if errorCount < 2 {
			status = models.SyncRunStatusPartial
		}
	}

	snap := diag.Snapshot()
	logSyncSummary(logger, &run, snap)

	statsJSON, _ := json.Marshal(snap)
	return finishRun(db, &run, &conn, startedAt, status, len(orders), errorCount, statsJSON)
}

func finishRun(db *gorm.DB, run *models.IntegrationSyncRun, conn *models.IntegrationConnection, startedAt *time.Time, status string, ordersFetched int, errorCount int, statsJSON []byte) error {
	finishedAt := time.Now()
	durationMs := finishedAt.Sub(*startedAt).Milliseconds()

	updates := map[string]interface{}{
		"status":         status,
		"finished_at":    finishedAt,
		"duration_ms":    durationMs,
		"orders_fetched": ordersFetched,
		"error_count":    errorCount,
	}
	if statsJSON != nil {
		updates["stats_json"] = statsJSON
	}
	if err := db.Model(run).Updates(updates).Error; err != nil {
		return err
	}

	connUpdates := map[string]interface{}{
		"last_sync_at": finishedAt,
	}
	if status == models.SyncRunStatusSuccess {
		connUpdates["last_success_sync_at"] = finishedAt
	}
	return db.Model(&models.IntegrationConnection{}).
		Where("id = ? AND business_id = ?", conn.ID, conn.BusinessId).
		Updates(connUpdates).Error
}

// loadConfigMappings resolves the provider's configuration dictionaries,
// serving from redis when a fresh copy exists. Mapping tables change rarely
// relative to how often syncs run.
func loadConfigMappings(ctx context.Context, client *tablyClient, conn *models.IntegrationConnection) (ConfigMappings, error) {
	cacheKey := configCacheKey(conn.BusinessId, conn.RestaurantId)

	var cached ConfigMappings
	if found, err := config.GetRedisObject(cacheKey, &cached); err == nil && found {
		return cached, nil
	}

	maps, err := client.fetchConfigMappings(ctx, conn.RestaurantId)
	if err != nil {
		return maps, err
	}
	_ = config.SetRedisObject(cacheKey, maps, time.Hour)
	return maps, nil
}

func configCacheKey(businessId, restaurantId string) string {
	return "TablyConfig:" + businessId + ":" + restaurantId
}

func logSyncSummary(logger *logrus.Logger, run *models.IntegrationSyncRun, snap DiagnosticsSnapshot) {
	if logger == nil {
		return
	}
	fields := logrus.Fields{
		"module":            "tablysync",
		"run_id":            run.ID,
		"business_id":       run.BusinessId,
		"start_date":        run.StartDate.Format(time.DateOnly),
		"end_date":          run.EndDate.Format(time.DateOnly),
		"processed_orders":  snap.Exclusions.ProcessedOrders,
		"admitted_checks":   snap.Exclusions.AdmittedChecks,
		"deleted_orders":    snap.Exclusions.DeletedOrders.Count,
		"voided_orders":     snap.Exclusions.VoidedOrders.Count,
		"voided_checks":     snap.Exclusions.VoidedChecks.Count,
		"voided_items":      snap.Exclusions.VoidedItems.Count,
		"out_of_range":      snap.Exclusions.OutOfRangeOrders,
		"unparsable_dates":  snap.Exclusions.UnparsableDates,
		"discount_total":    snap.Discounts.AuthoritativeTotal.String(),
		"discount_estimate": snap.Discounts.DerivedDiscountEstimate.String(),
		"refund_total":      snap.Refunds.TotalApplied.String(),
		"net_sales":         snap.Revenue.NetSalesTotal.String(),
		"category_sales":    snap.Revenue.CategorySalesTotal.String(),
		"revenue_gap":       snap.Revenue.Gap.String(),
	}
	if snap.Revenue.Gap.Abs().GreaterThan(revenueGapTolerance) {
		logger.WithFields(fields).Warn("sync completed with revenue method mismatch")
		return
	}
	logger.WithFields(fields).Info("sync completed")
}

func createSyncError(ctx context.Context, db *gorm.DB, runId uint, businessId string, entityType string, externalId string, code string, message string, payload []byte, retryable bool) error {
	errRec := models.IntegrationSyncError{
		SyncRunId:   runId,
		BusinessId:  businessId,
		EntityType:  entityType,
		ExternalId:  externalId,
		ErrorCode:   code,
		Message:     message,
		PayloadJSON: payload,
		Retryable:   retryable,
	}
	return db.WithContext(ctx).Create(&errRec).Error
}
