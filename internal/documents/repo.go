package documents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citylineapps/permitflow-backend/pkg/db/models"
	dbtypes "github.com/citylineapps/permitflow-backend/pkg/db/types"
	"github.com/citylineapps/permitflow-backend/pkg/pagination"
)

// Repository exposes document metadata persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a document repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a document record.
func (r *Repository) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

// FindByID retrieves a document by ID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByStorageKey retrieves a document by its unique object key.
func (r *Repository) FindByStorageKey(ctx context.Context, key string) (*models.Document, error) {
	var doc models.Document
	if err := r.db.WithContext(ctx).First(&doc, "storage_key = ?", key).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// Delete removes a document record.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Document{}).Error
}

// ListByPermit returns documents attached to a permit, newest first, cursor
// paginated.
func (r *Repository) ListByPermit(ctx context.Context, permitID uuid.UUID, params pagination.Params) ([]models.Document, error) {
	return r.list(r.db.WithContext(ctx).Where("permit_id = ?", permitID), params)
}

// ListByProject returns documents attached to a project, newest first, cursor
// paginated. A non-nil uploadedBy narrows the page to that uploader's
// documents so the cursor walks the visible set.
func (r *Repository) ListByProject(ctx context.Context, projectID uuid.UUID, uploadedBy *uuid.UUID, params pagination.Params) ([]models.Document, error) {
	query := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if uploadedBy != nil {
		query = query.Where("uploaded_by_id = ?", *uploadedBy)
	}
	return r.list(query, params)
}

func (r *Repository) list(query *gorm.DB, params pagination.Params) ([]models.Document, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query = query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var docs []models.Document
	if err := query.Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// ListWithOCRText returns documents that carry extracted text within the
// given scope. A nil permit and project scope means all documents visible to
// the service.
func (r *Repository) ListWithOCRText(ctx context.Context, permitID, projectID *uuid.UUID, uploadedBy *uuid.UUID) ([]models.Document, error) {
	query := r.db.WithContext(ctx).Where("ocr_text IS NOT NULL AND ocr_text <> ''")
	if permitID != nil {
		query = query.Where("permit_id = ?", *permitID)
	}
	if projectID != nil {
		query = query.Where("project_id = ?", *projectID)
	}
	if uploadedBy != nil {
		query = query.Where("uploaded_by_id = ?", *uploadedBy)
	}

	var docs []models.Document
	if err := query.Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// OCRUpdate carries the fields merged into a document after extraction.
type OCRUpdate struct {
	Text            string
	ExtractedFields map[string]string
	Confidence      float64
	ProcessedAt     time.Time
	Status          string
	Metadata        map[string]any
}

// ApplyOCRResult merges a finished extraction into the document row.
func (r *Repository) ApplyOCRResult(ctx context.Context, id uuid.UUID, update OCRUpdate) error {
	values := map[string]any{
		"ocr_text":          update.Text,
		"extracted_fields":  dbtypes.StringMap(update.ExtractedFields),
		"ocr_confidence":    update.Confidence,
		"ocr_processed_at":  update.ProcessedAt,
		"validation_status": update.Status,
	}
	if update.Metadata != nil {
		values["metadata"] = dbtypes.JSONMap(update.Metadata)
	}
	return r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", id).
		Updates(values).Error
}

// ClearOCRFields wipes prior extraction state ahead of a reprocess.
func (r *Repository) ClearOCRFields(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"ocr_text":         nil,
			"extracted_fields": nil,
			"ocr_confidence":   nil,
			"ocr_processed_at": nil,
		}).Error
}

// UpdateMetadata replaces the free-form metadata document.
func (r *Repository) UpdateMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", id).
		Update("metadata", dbtypes.JSONMap(metadata)).Error
}

// MarkInvalid flags a document whose backing blob disappeared.
func (r *Repository) MarkInvalid(ctx context.Context, id uuid.UUID, reasons []string) error {
	return r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"validation_status": "invalid",
			"validation_errors": dbtypes.StringSlice(reasons),
		}).Error
}

// FindPermit loads the permit row for authorization decisions.
func (r *Repository) FindPermit(ctx context.Context, id uuid.UUID) (*models.Permit, error) {
	var permit models.Permit
	if err := r.db.WithContext(ctx).First(&permit, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &permit, nil
}
