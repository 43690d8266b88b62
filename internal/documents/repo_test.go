package documents

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/citylineapps/permitflow-backend/pkg/db/models"
	"github.com/citylineapps/permitflow-backend/pkg/enums"
	"github.com/citylineapps/permitflow-backend/pkg/pagination"
)

// newRepoDB creates the schema by hand: the production columns carry
// Postgres defaults that sqlite cannot express, so tests assign IDs
// explicitly.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE documents (
			id TEXT PRIMARY KEY,
			permit_id TEXT,
			project_id TEXT,
			file_name TEXT NOT NULL,
			declared_mime_type TEXT,
			detected_mime_type TEXT,
			size_bytes INTEGER,
			content_hash TEXT,
			storage_key TEXT UNIQUE,
			document_type TEXT,
			validation_status TEXT,
			validation_errors TEXT,
			ocr_text TEXT,
			extracted_fields TEXT,
			ocr_confidence REAL,
			ocr_processed_at DATETIME,
			metadata TEXT,
			uploaded_by_id TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE permits (
			id TEXT PRIMARY KEY,
			status TEXT,
			created_by_id TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
	}
	for _, stmt := range statements {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

func seedDocument(t *testing.T, repo *Repository, permitID *uuid.UUID, createdAt time.Time) *models.Document {
	t.Helper()
	doc := &models.Document{
		ID:               uuid.New(),
		PermitID:         permitID,
		FileName:         "plan.pdf",
		DeclaredMimeType: "application/pdf",
		StorageKey:       "permits/x/documents/" + uuid.NewString(),
		DocumentType:     enums.DocumentTypeOther,
		ValidationStatus: enums.ValidationStatusValid,
		UploadedByID:     uuid.New(),
		CreatedAt:        createdAt,
	}
	created, err := repo.Create(context.Background(), doc)
	require.NoError(t, err)
	return created
}

func TestRepositoryCreateAndFind(t *testing.T) {
	repo := NewRepository(newRepoDB(t))
	permitID := uuid.New()
	doc := seedDocument(t, repo, &permitID, time.Now().UTC())

	found, err := repo.FindByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.StorageKey, found.StorageKey)

	byKey, err := repo.FindByStorageKey(context.Background(), doc.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byKey.ID)

	_, err = repo.FindByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListByPermitCursor(t *testing.T) {
	repo := NewRepository(newRepoDB(t))
	permitID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedDocument(t, repo, &permitID, base.Add(time.Duration(i)*time.Minute))
	}

	ctx := context.Background()
	first, err := repo.ListByPermit(ctx, permitID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	// Limit+1 buffer row signals another page.
	require.Len(t, first, 3)
	assert.True(t, first[0].CreatedAt.After(first[1].CreatedAt), "rows not ordered newest first")

	cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: first[1].CreatedAt, ID: first[1].ID})
	second, err := repo.ListByPermit(ctx, permitID, pagination.Params{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, second, 3)
	assert.True(t, second[0].CreatedAt.Before(first[1].CreatedAt), "cursor did not advance past the first page")
}

func TestRepositoryListByProjectScopesUploader(t *testing.T) {
	repo := NewRepository(newRepoDB(t))
	projectID := uuid.New()
	applicant := uuid.New()
	other := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seedProjectDocument(t, repo, projectID, applicant, base)
	for i := 1; i <= 3; i++ {
		seedProjectDocument(t, repo, projectID, other, base.Add(time.Duration(i)*time.Minute))
	}

	ctx := context.Background()

	// Unscoped listing pages the whole project.
	all, err := repo.ListByProject(ctx, projectID, nil, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, all, 3)

	// Scoping by uploader must page the uploader's documents, not return an
	// empty first page because newer rows belong to someone else.
	mine, err := repo.ListByProject(ctx, projectID, &applicant, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, applicant, mine[0].UploadedByID)
}

func seedProjectDocument(t *testing.T, repo *Repository, projectID, uploadedBy uuid.UUID, createdAt time.Time) *models.Document {
	t.Helper()
	doc := &models.Document{
		ID:               uuid.New(),
		ProjectID:        &projectID,
		FileName:         "survey.pdf",
		DeclaredMimeType: "application/pdf",
		StorageKey:       "projects/x/documents/" + uuid.NewString(),
		DocumentType:     enums.DocumentTypeOther,
		ValidationStatus: enums.ValidationStatusValid,
		UploadedByID:     uploadedBy,
		CreatedAt:        createdAt,
	}
	created, err := repo.Create(context.Background(), doc)
	require.NoError(t, err)
	return created
}

func TestRepositoryOCRLifecycle(t *testing.T) {
	repo := NewRepository(newRepoDB(t))
	doc := seedDocument(t, repo, nil, time.Now().UTC())
	ctx := context.Background()

	update := OCRUpdate{
		Text:            "Permit for 12 Main Street",
		ExtractedFields: map[string]string{"address": "12 Main Street"},
		Confidence:      0.93,
		ProcessedAt:     time.Now().UTC(),
		Status:          string(enums.ValidationStatusValid),
	}
	require.NoError(t, repo.ApplyOCRResult(ctx, doc.ID, update))

	withText, err := repo.ListWithOCRText(ctx, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, withText, 1)
	require.NotNil(t, withText[0].OCRText)
	assert.Equal(t, update.Text, *withText[0].OCRText)
	assert.Equal(t, "12 Main Street", withText[0].ExtractedFields["address"])

	require.NoError(t, repo.ClearOCRFields(ctx, doc.ID))
	withText, err = repo.ListWithOCRText(ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, withText)
}

func TestRepositoryMarkInvalid(t *testing.T) {
	repo := NewRepository(newRepoDB(t))
	doc := seedDocument(t, repo, nil, time.Now().UTC())
	ctx := context.Background()

	require.NoError(t, repo.MarkInvalid(ctx, doc.ID, []string{"storage object removed"}))

	found, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ValidationStatusInvalid, found.ValidationStatus)
	require.Len(t, found.ValidationErrors, 1)
	assert.Equal(t, "storage object removed", found.ValidationErrors[0])
}

func TestRepositoryFindPermit(t *testing.T) {
	db := newRepoDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	permit := &models.Permit{ID: uuid.New(), Status: enums.PermitStatusDraft, CreatedByID: uuid.New()}
	require.NoError(t, db.Create(permit).Error)

	found, err := repo.FindPermit(ctx, permit.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PermitStatusDraft, found.Status)
}
