package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/citylineapps/permitflow-backend/pkg/db/types"
	"github.com/citylineapps/permitflow-backend/pkg/enums"
)

// AuditLog is an append-only record of document and OCR activity.
// Rows are never updated or deleted by the application.
type AuditLog struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Action     enums.AuditAction `gorm:"column:action;type:text;not null;index"`
	EntityType string            `gorm:"column:entity_type;not null"`
	EntityID   uuid.UUID         `gorm:"column:entity_id;type:uuid;not null;index"`
	Metadata   dbtypes.JSONMap   `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}
