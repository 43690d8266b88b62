package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/citylineapps/permitflow-backend/pkg/enums"
)

// Permit holds the subset of permit state the document pipeline depends on.
type Permit struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Status      enums.PermitStatus `gorm:"column:status;not null;default:draft"`
	CreatedByID uuid.UUID          `gorm:"column:created_by_id;type:uuid;not null"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
