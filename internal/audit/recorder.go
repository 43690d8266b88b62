package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citylineapps/permitflow-backend/pkg/db/models"
	dbtypes "github.com/citylineapps/permitflow-backend/pkg/db/types"
	"github.com/citylineapps/permitflow-backend/pkg/enums"
	"github.com/citylineapps/permitflow-backend/pkg/logger"
)

// EntityTypeDocument is the audit entity label for document rows.
const EntityTypeDocument = "Document"

// Event is one auditable action.
type Event struct {
	UserID     uuid.UUID
	Action     enums.AuditAction
	EntityType string
	EntityID   uuid.UUID
	Metadata   map[string]any
}

// Recorder persists audit events.
type Recorder struct {
	db   *gorm.DB
	logg *logger.Logger
}

// NewRecorder constructs an audit recorder bound to the provided GORM DB.
func NewRecorder(db *gorm.DB, logg *logger.Logger) (*Recorder, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &Recorder{db: db, logg: logg}, nil
}

// Record writes one audit row. The caller decides whether a failure here is
// fatal; success-path callers log and continue.
func (r *Recorder) Record(ctx context.Context, event Event) error {
	if !event.Action.IsValid() {
		return fmt.Errorf("invalid audit action %q", event.Action)
	}
	row := &models.AuditLog{
		UserID:     event.UserID,
		Action:     event.Action,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Metadata:   dbtypes.JSONMap(event.Metadata),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("persist audit event: %w", err)
	}
	return nil
}

// RecordOrLog records the event and downgrades a failure to a warning log.
func (r *Recorder) RecordOrLog(ctx context.Context, event Event) {
	if err := r.Record(ctx, event); err != nil && r.logg != nil {
		ctx = r.logg.WithField(ctx, "audit_action", event.Action.String())
		r.logg.Warn(ctx, "audit record failed: "+err.Error())
	}
}
