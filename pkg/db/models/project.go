package models

import (
	"time"

	"github.com/google/uuid"
)

// Project groups documents uploaded outside a single permit application.
type Project struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	CreatedByID uuid.UUID `gorm:"column:created_by_id;type:uuid;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
