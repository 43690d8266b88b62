package documents

import (
	"time"

	"github.com/google/uuid"

	"github.com/citylineapps/permitflow-backend/pkg/db/models"
	"github.com/citylineapps/permitflow-backend/pkg/enums"
)

// UploadInput models one multipart upload handed to the orchestrator.
type UploadInput struct {
	Data         []byte
	FileName     string
	DeclaredMime string
	DocumentType enums.DocumentType
	PermitID     *uuid.UUID
	ProjectID    *uuid.UUID
	Metadata     map[string]any
}

// DocumentResponse is the API-facing view of a document row.
type DocumentResponse struct {
	ID               uuid.UUID              `json:"id"`
	FileName         string                 `json:"file_name"`
	DeclaredMimeType string                 `json:"declared_mime_type"`
	DetectedMimeType string                 `json:"detected_mime_type"`
	SizeBytes        int64                  `json:"size_bytes"`
	ContentHash      string                 `json:"content_hash"`
	StorageKey       string                 `json:"storage_key"`
	DocumentType     enums.DocumentType     `json:"document_type"`
	ValidationStatus enums.ValidationStatus `json:"validation_status"`
	ValidationErrors []string               `json:"validation_errors,omitempty"`
	PermitID         *uuid.UUID             `json:"permit_id,omitempty"`
	ProjectID        *uuid.UUID             `json:"project_id,omitempty"`
	UploadedByID     uuid.UUID              `json:"uploaded_by_id"`
	OCRProcessedAt   *time.Time             `json:"ocr_processed_at,omitempty"`
	OCRConfidence    *float64               `json:"ocr_confidence,omitempty"`
	Metadata         map[string]any         `json:"metadata,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	DownloadURL      string                 `json:"download_url,omitempty"`
}

func toResponse(doc *models.Document, downloadURL string) *DocumentResponse {
	return &DocumentResponse{
		ID:               doc.ID,
		FileName:         doc.FileName,
		DeclaredMimeType: doc.DeclaredMimeType,
		DetectedMimeType: doc.DetectedMimeType,
		SizeBytes:        doc.SizeBytes,
		ContentHash:      doc.ContentHash,
		StorageKey:       doc.StorageKey,
		DocumentType:     doc.DocumentType,
		ValidationStatus: doc.ValidationStatus,
		ValidationErrors: doc.ValidationErrors,
		PermitID:         doc.PermitID,
		ProjectID:        doc.ProjectID,
		UploadedByID:     doc.UploadedByID,
		OCRProcessedAt:   doc.OCRProcessedAt,
		OCRConfidence:    doc.OCRConfidence,
		Metadata:         doc.Metadata,
		CreatedAt:        doc.CreatedAt,
		DownloadURL:      downloadURL,
	}
}
