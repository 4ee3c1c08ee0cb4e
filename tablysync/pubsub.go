package tablysync

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/forkmetrics/resto_backend/config"
	"github.com/gin-gonic/gin"
)

const defaultSyncTopic = "tably-sync"

func syncTopicName() string {
	if v := strings.TrimSpace(os.Getenv("TABLY_SYNC_TOPIC")); v != "" {
		return v
	}
	return defaultSyncTopic
}

func envBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

// PublishSyncRun enqueues a sync run for asynchronous processing. The push
// subscription delivers it back to PubSubPushHandler.
func PublishSyncRun(ctx context.Context, payload SyncPubSubPayload) error {
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topicName := syncTopicName()
	topic := client.Topic(topicName)
	if envBoolDefault("TABLY_SYNC_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	result := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = result.Get(ctx)
	return err
}

// PubSubPushHandler receives push deliveries from the sync subscription and
// runs the sync inline. Non-2xx responses make Pub/Sub redeliver; processing
// errors after a run reached a terminal status must not bounce the message,
// so only decode failures are rejected.
func PubSubPushHandler(c *gin.Context) {
	logger := config.GetLogger()

	var envelope PubSubPushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		config.LogError(logger, "tablysync", "PubSubPushHandler", "decode envelope", nil, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid envelope"})
		return
	}

	var payload SyncPubSubPayload
	if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
		config.LogError(logger, "tablysync", "PubSubPushHandler", "decode payload", map[string]interface{}{
			"message_id": envelope.Message.ID,
		}, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := ProcessSyncRun(c.Request.Context(), payload); err != nil {
		config.LogError(logger, "tablysync", "PubSubPushHandler", "process sync run", map[string]interface{}{
			"run_id":      payload.RunId,
			"business_id": payload.BusinessId,
		}, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
