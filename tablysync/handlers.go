package tablysync

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/forkmetrics/resto_backend/config"
	"github.com/forkmetrics/resto_backend/models"
	"github.com/forkmetrics/resto_backend/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// resolveBusinessID reads the business scope set by the auth middleware,
// falling back to the X-Business-Id header for internal tooling.
func resolveBusinessID(c *gin.Context) (string, bool) {
	if v, ok := utils.GetBusinessIdFromContext(c.Request.Context()); ok && v != "" {
		return v, true
	}
	if v := strings.TrimSpace(c.GetHeader("X-Business-Id")); v != "" {
		return v, true
	}
	return "", false
}

func getConnection(db *gorm.DB, businessId string) (*models.IntegrationConnection, error) {
	var conn models.IntegrationConnection
	err := db.Where("business_id = ? AND provider = ?", businessId, models.IntegrationProviderTably).
		Take(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// StatusHandler reports the current connection state and last sync times.
func StatusHandler(c *gin.Context) {
	businessId, ok := resolveBusinessID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "business scope required"})
		return
	}
	db := config.GetDB().WithContext(c.Request.Context())

	conn, err := getConnection(db, businessId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusOK, StatusResponse{
			Connection: ConnectionResponse{Status: models.IntegrationStatusDisconnected},
		})
		return
	}
	if err != nil {
		config.LogError(config.GetLogger(), "tablysync", "StatusHandler", "load connection", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		Connection: ConnectionResponse{
			Status:         conn.Status,
			RestaurantId:   conn.RestaurantId,
			RestaurantName: conn.RestaurantName,
		},
		LastSyncAt:        formatTime(conn.LastSyncAt),
		LastSuccessSyncAt: formatTime(conn.LastSuccessSyncAt),
	})
}

// ConnectHandler stores or refreshes the provider connection for the business.
// Reconnecting an existing connection replaces the credential and restaurant
// binding in place.
func ConnectHandler(c *gin.Context) {
	businessId, ok := resolveBusinessID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "business scope required"})
		return
	}

	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.RestaurantId) == "" || strings.TrimSpace(req.APIKey) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "restaurantId and apiKey are required"})
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())

	conn, err := getConnection(db, businessId)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		config.LogError(config.GetLogger(), "tablysync", "ConnectHandler", "load connection", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if conn == nil {
		conn = &models.IntegrationConnection{
			BusinessId: businessId,
			Provider:   models.IntegrationProviderTably,
		}
	}
	conn.Status = models.IntegrationStatusConnected
	conn.AuthType = "api_key"
	conn.AuthSecretRef = req.APIKey
	conn.RestaurantId = req.RestaurantId
	conn.RestaurantName = req.RestaurantName

	if err := db.Save(conn).Error; err != nil {
		config.LogError(config.GetLogger(), "tablysync", "ConnectHandler", "save connection", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// A reconnect may rebind the restaurant or rotate the key; the cached
	// mapping dictionaries are no longer trustworthy.
	_ = config.RemoveRedisKey(configCacheKey(businessId, conn.RestaurantId))

	c.JSON(http.StatusOK, ConnectionResponse{
		Status:         conn.Status,
		RestaurantId:   conn.RestaurantId,
		RestaurantName: conn.RestaurantName,
	})
}

// DisconnectHandler marks the connection disconnected. History and aggregates
// are kept; only future syncs stop.
func DisconnectHandler(c *gin.Context) {
	businessId, ok := resolveBusinessID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "business scope required"})
		return
	}
	db := config.GetDB().WithContext(c.Request.Context())

	conn, err := getConnection(db, businessId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not connected"})
		return
	}
	if err != nil {
		config.LogError(config.GetLogger(), "tablysync", "DisconnectHandler", "load connection", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := db.Model(conn).Update("status", models.IntegrationStatusDisconnected).Error; err != nil {
		config.LogError(config.GetLogger(), "tablysync", "DisconnectHandler", "update connection", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	_ = config.RemoveRedisKey(configCacheKey(businessId, conn.RestaurantId))

	c.JSON(http.StatusOK, gin.H{"status": models.IntegrationStatusDisconnected})
}

// UpdateSettingsHandler stores the caller's provider settings blob on the
// connection. The engine does not interpret it; it travels with the connection
// for the dashboard's benefit.
func UpdateSettingsHandler(c *gin.Context) {
	businessId, ok := resolveBusinessID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "business scope required"})
		return
	}

	var settings json.RawMessage
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())

	conn, err := getConnection(db, businessId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not connected"})
		return
	}
	if err != nil {
		config.LogError(config.GetLogger(), "tablysync", "UpdateSettingsHandler", "load connection", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := db.Model(conn).Update("settings_json", []byte(settings)).Error; err != nil {
		config.LogError(config.GetLogger(), "tablysync", "UpdateSettingsHandler", "update settings", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TriggerSyncHandler creates a queued sync run for the requested business-date
// window and publishes it for asynchronous processing.
func TriggerSyncHandler(c *gin.Context) {
	businessId, ok := resolveBusinessID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "business scope required"})
		return
	}

	var req TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	startDate, err := ParseBusinessDate(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid startDate"})
		return
	}
	endDate, err := ParseBusinessDate(req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid endDate"})
		return
	}
	if endDate.Before(startDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endDate before startDate"})
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())

	conn, err := getConnection(db, businessId)
	if errors.Is(err, utils.ErrorRecordNotFound) || (conn != nil && conn.Status != models.IntegrationStatusConnected) {
		c.JSON(http.StatusConflict, gin.H{"error": "tably not connected"})
		return
	}
	if err != nil {
		config.LogError(config.GetLogger(), "tablysync", "TriggerSyncHandler", "load connection", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	run := models.IntegrationSyncRun{
		BusinessId:   businessId,
		ConnectionId: conn.ID,
		Provider:     models.IntegrationProviderTably,
		Status:       models.SyncRunStatusQueued,
		TriggeredBy:  models.SyncTriggeredManual,
		StartDate:    startDate,
		EndDate:      endDate,
	}
	if err := db.Create(&run).Error; err != nil {
		config.LogError(config.GetLogger(), "tablysync", "TriggerSyncHandler", "create run", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := PublishSyncRun(c.Request.Context(), SyncPubSubPayload{
		RunId:        run.ID,
		BusinessId:   businessId,
		ConnectionId: conn.ID,
	}); err != nil {
		config.LogError(config.GetLogger(), "tablysync", "TriggerSyncHandler", "publish run", map[string]interface{}{
			"run_id": run.ID,
		}, err)
		_ = db.Model(&run).Update("status", models.SyncRunStatusFailed).Error
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue sync"})
		return
	}

	c.JSON(http.StatusAccepted, mapRunToResponse(&run))
}

// SyncHistoryHandler lists recent runs, newest first.
func SyncHistoryHandler(c *gin.Context) {
	businessId, ok := resolveBusinessID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "business scope required"})
		return
	}
	db := config.GetDB().WithContext(c.Request.Context())

	limit := 20
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	var runs []models.IntegrationSyncRun
	if err := db.Where("business_id = ? AND provider = ?", businessId, models.IntegrationProviderTably).
		Order("id DESC").Limit(limit).Find(&runs).Error; err != nil {
		config.LogError(config.GetLogger(), "tablysync", "SyncHistoryHandler", "list runs", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	items := make([]SyncRunResponse, 0, len(runs))
	for i := range runs {
		items = append(items, mapRunToResponse(&runs[i]))
	}
	c.JSON(http.StatusOK, SyncHistoryResponse{Items: items})
}

// SyncRunDetailHandler returns one run with its diagnostics snapshot and
// error rows.
func SyncRunDetailHandler(c *gin.Context) {
	businessId, ok := resolveBusinessID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "business scope required"})
		return
	}
	runId, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}
	db := config.GetDB().WithContext(c.Request.Context())

	var run models.IntegrationSyncRun
	err = db.Where("id = ? AND business_id = ?", runId, businessId).Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		config.LogError(config.GetLogger(), "tablysync", "SyncRunDetailHandler", "load run", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	var errRows []models.IntegrationSyncError
	if err := db.Where("sync_run_id = ?", run.ID).Order("id ASC").Find(&errRows).Error; err != nil {
		config.LogError(config.GetLogger(), "tablysync", "SyncRunDetailHandler", "load errors", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, SyncRunDetailResponse{
		SyncRunResponse: mapRunToResponse(&run),
		Stats:           run.StatsJSON,
		Errors:          mapErrors(errRows),
	})
}

// RetrySyncRunHandler queues a fresh run over the same window as a finished
// run. The new run records its parent so the history shows the lineage.
func RetrySyncRunHandler(c *gin.Context) {
	businessId, ok := resolveBusinessID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "business scope required"})
		return
	}
	runId, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}
	db := config.GetDB().WithContext(c.Request.Context())

	var parent models.IntegrationSyncRun
	err = db.Where("id = ? AND business_id = ?", runId, businessId).Take(&parent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		config.LogError(config.GetLogger(), "tablysync", "RetrySyncRunHandler", "load run", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if parent.Status == models.SyncRunStatusQueued || parent.Status == models.SyncRunStatusRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "run still in progress"})
		return
	}

	parentId := parent.ID
	run := models.IntegrationSyncRun{
		BusinessId:   businessId,
		ConnectionId: parent.ConnectionId,
		Provider:     models.IntegrationProviderTably,
		Status:       models.SyncRunStatusQueued,
		TriggeredBy:  models.SyncTriggeredRetry,
		StartDate:    parent.StartDate,
		EndDate:      parent.EndDate,
		ParentRunId:  &parentId,
	}
	if err := db.Create(&run).Error; err != nil {
		config.LogError(config.GetLogger(), "tablysync", "RetrySyncRunHandler", "create run", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := PublishSyncRun(c.Request.Context(), SyncPubSubPayload{
		RunId:        run.ID,
		BusinessId:   businessId,
		ConnectionId: parent.ConnectionId,
	}); err != nil {
		config.LogError(config.GetLogger(), "tablysync", "RetrySyncRunHandler", "publish run", map[string]interface{}{
			"run_id": run.ID,
		}, err)
		_ = db.Model(&run).Update("status", models.SyncRunStatusFailed).Error
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue sync"})
		return
	}

	c.JSON(http.StatusAccepted, mapRunToResponse(&run))
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run *models.IntegrationSyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:            run.ID,
		Status:        run.Status,
		StartDate:     run.StartDate.Format(time.DateOnly),
		EndDate:       run.EndDate.Format(time.DateOnly),
		StartedAt:     formatTime(run.StartedAt),
		FinishedAt:    formatTime(run.FinishedAt),
		DurationMs:    run.DurationMs,
		OrdersFetched: run.OrdersFetched,
		ErrorCount:    run.ErrorCount,
		TriggeredBy:   run.TriggeredBy,
	}
}

func mapErrors(rows []models.IntegrationSyncError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(rows))
	for i := range rows {
		out = append(out, SyncErrorResponse{
			ID:         rows[i].ID,
			EntityType: rows[i].EntityType,
			ExternalId: rows[i].ExternalId,
			Message:    rows[i].Message,
			Retryable:  rows[i].Retryable,
		})
	}
	return out
}
