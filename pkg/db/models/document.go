package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/citylineapps/permitflow-backend/pkg/db/types"
	"github.com/citylineapps/permitflow-backend/pkg/enums"
)

// Metadata keys recorded on documents at intake and OCR time.
const (
	DocumentMetaDimensions    = "dimensions"
	DocumentMetaOptimized     = "optimized"
	DocumentMetaOriginalSize  = "original_size_bytes"
	DocumentMetaWarnings      = "warnings"
	DocumentMetaOCR           = "ocr"
	DocumentMetaUpdatedBy     = "updated_by"
	DocumentMetaUpdatedAtKey  = "updated_at"
)

// Document captures one uploaded artifact and its validation/OCR state.
// A row exists only after the object is durably stored.
type Document struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PermitID         *uuid.UUID             `gorm:"column:permit_id;type:uuid"`
	ProjectID        *uuid.UUID             `gorm:"column:project_id;type:uuid"`
	FileName         string                 `gorm:"column:file_name;not null"`
	DeclaredMimeType string                 `gorm:"column:declared_mime_type;not null"`
	DetectedMimeType string                 `gorm:"column:detected_mime_type"`
	SizeBytes        int64                  `gorm:"column:size_bytes;not null"`
	ContentHash      string                 `gorm:"column:content_hash;not null"`
	StorageKey       string                 `gorm:"column:storage_key;not null;unique"`
	DocumentType     enums.DocumentType     `gorm:"column:document_type;not null"`
	ValidationStatus enums.ValidationStatus `gorm:"column:validation_status;not null;default:pending"`
	ValidationErrors dbtypes.StringSlice    `gorm:"column:validation_errors;type:jsonb"`
	OCRText          *string                `gorm:"column:ocr_text"`
	ExtractedFields  dbtypes.StringMap      `gorm:"column:extracted_fields;type:jsonb"`
	OCRConfidence    *float64               `gorm:"column:ocr_confidence"`
	OCRProcessedAt   *time.Time             `gorm:"column:ocr_processed_at"`
	Metadata         dbtypes.JSONMap        `gorm:"column:metadata;type:jsonb"`
	UploadedByID     uuid.UUID              `gorm:"column:uploaded_by_id;type:uuid;not null"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
