package consumer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citylineapps/permitflow-backend/pkg/db/models"
	"github.com/citylineapps/permitflow-backend/pkg/enums"
	"github.com/citylineapps/permitflow-backend/pkg/logger"
)

const (
	objectDeleteEvent    = "OBJECT_DELETE"
	payloadFormatJSONAPI = "JSON_API_V1"

	sweepReason = "storage object removed"
)

type sweepRepository interface {
	FindByStorageKey(ctx context.Context, key string) (*models.Document, error)
	MarkInvalid(ctx context.Context, id uuid.UUID, reasons []string) error
}

// SweepConsumer watches Pub/Sub for GCS OBJECT_DELETE notifications and marks
// documents whose backing blob disappeared as invalid. Rows deleted through
// the API are already gone by the time the notification arrives, so a missing
// row is the normal case.
type SweepConsumer struct {
	repo         sweepRepository
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// NewSweepConsumer wires the dependencies for orphaned-row reconciliation.
func NewSweepConsumer(repo sweepRepository, subscription *pubsub.Subscriber, logg *logger.Logger) (*SweepConsumer, error) {
	if repo == nil {
		return nil, errors.New("document repository is required")
	}
	if subscription == nil {
		return nil, errors.New("storage events subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &SweepConsumer{
		repo:         repo,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run processes deletion notifications until the context is canceled.
func (c *SweepConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *SweepConsumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	attrs := parseAttributes(msg.Attributes)
	fields := c.buildLogFields(msg.ID, attrs, nil)
	logCtx := c.logg.WithFields(ctx, fields)

	if attrs.EventType != objectDeleteEvent {
		c.logg.Info(logCtx, "skipping non-delete event")
		return processResult{ack: true}
	}
	if attrs.PayloadFormat != payloadFormatJSONAPI {
		c.logg.Warn(logCtx, "unsupported payload format")
		return processResult{ack: true}
	}

	payload, err := decodePayload(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{ack: true}
	}

	var gcs gcsPayload
	if err := json.Unmarshal(payload, &gcs); err != nil {
		fields = c.buildLogFields(msg.ID, attrs, nil)
		fields["payload_preview"] = previewBytes(payload, 800)
		fields["payload_len"] = len(payload)
		logCtx = c.logg.WithFields(ctx, fields)
		c.logg.Error(logCtx, "failed to unmarshal payload", err)
		return processResult{ack: true}
	}

	if strings.TrimSpace(gcs.Name) == "" {
		fields = c.buildLogFields(msg.ID, attrs, &gcs)
		logCtx = c.logg.WithFields(ctx, fields)
		c.logg.Error(logCtx, "payload missing gcs object name", fmt.Errorf("empty name"))
		return processResult{ack: true}
	}

	fields = c.buildLogFields(msg.ID, attrs, &gcs)
	logCtx = c.logg.WithFields(ctx, fields)

	doc, err := c.repo.FindByStorageKey(logCtx, gcs.Name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logg.Info(logCtx, "no document references the deleted object")
			return processResult{ack: true}
		}
		return c.handleDBError(logCtx, err)
	}

	fields["document_id"] = doc.ID.String()
	logCtx = c.logg.WithFields(ctx, fields)

	if doc.ValidationStatus == enums.ValidationStatusInvalid {
		c.logg.Info(logCtx, "document already marked invalid")
		return processResult{ack: true}
	}

	if err := c.repo.MarkInvalid(ctx, doc.ID, []string{sweepReason}); err != nil {
		return c.handleDBError(logCtx, err)
	}

	c.logg.Info(logCtx, "document marked invalid after blob removal")
	return processResult{ack: true}
}

func (c *SweepConsumer) handleDBError(ctx context.Context, err error) processResult {
	c.logg.Error(ctx, "document sweep db error", err)
	if isTransientDBError(err) {
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *SweepConsumer) buildLogFields(messageID string, attrs gcsAttributes, payload *gcsPayload) map[string]any {
	fields := map[string]any{
		"message_id": messageID,
		"event_type": attrs.EventType,
		"bucket":     firstNonEmpty(attrs.BucketID, gcsBucket(payload)),
	}
	if payload != nil {
		fields["gcs_key"] = payload.Name
	}
	return fields
}

func gcsBucket(p *gcsPayload) string {
	if p == nil {
		return ""
	}
	return p.Bucket
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseAttributes(attrs map[string]string) gcsAttributes {
	return gcsAttributes{
		EventType:     attrs["eventType"],
		BucketID:      attrs["bucketId"],
		ObjectID:      attrs["objectId"],
		PayloadFormat: attrs["payloadFormat"],
	}
}

type gcsAttributes struct {
	EventType     string
	BucketID      string
	ObjectID      string
	PayloadFormat string
}

type gcsPayload struct {
	Name        string `json:"name"`
	Bucket      string `json:"bucket"`
	Generation  string `json:"generation"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
}

func decodePayload(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("payload empty")
	}
	if decoded, err := base64.StdEncoding.DecodeString(string(data)); err == nil {
		return decoded, nil
	}
	return data, nil
}

func isTransientDBError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func previewBytes(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "...(truncated)"
}
