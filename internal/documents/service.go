package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citylineapps/permitflow-backend/internal/audit"
	"github.com/citylineapps/permitflow-backend/pkg/auth"
	"github.com/citylineapps/permitflow-backend/pkg/db"
	"github.com/citylineapps/permitflow-backend/pkg/db/models"
	"github.com/citylineapps/permitflow-backend/pkg/enums"
	pkgerrors "github.com/citylineapps/permitflow-backend/pkg/errors"
	"github.com/citylineapps/permitflow-backend/pkg/logger"
	"github.com/citylineapps/permitflow-backend/pkg/metrics"
	"github.com/citylineapps/permitflow-backend/pkg/pagination"
)

const downloadURLTTL = time.Hour

type documentRepository interface {
	Create(ctx context.Context, doc *models.Document) (*models.Document, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPermit(ctx context.Context, permitID uuid.UUID, params pagination.Params) ([]models.Document, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, uploadedBy *uuid.UUID, params pagination.Params) ([]models.Document, error)
	UpdateMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) error
	FindPermit(ctx context.Context, id uuid.UUID) (*models.Permit, error)
}

type storageGateway interface {
	Upload(ctx context.Context, key, contentType string, payload io.Reader) error
	Download(ctx context.Context, key string) ([]byte, error)
	NewReader(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	SignedURL(key, method string, ttl time.Duration) (string, error)
}

type auditRecorder interface {
	Record(ctx context.Context, event audit.Event) error
}

// VirusScanner is an optional hook; intake skips the scan when no scanner is
// wired or the feature flag is off.
type VirusScanner interface {
	Scan(ctx context.Context, data []byte) (clean bool, threats []string, err error)
}

// Service exposes the document intake pipeline and row lifecycle.
type Service interface {
	Upload(ctx context.Context, actor auth.Actor, input UploadInput) (*DocumentResponse, error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*DocumentResponse, error)
	Download(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]byte, *DocumentResponse, error)
	Stream(ctx context.Context, actor auth.Actor, id uuid.UUID) (io.ReadCloser, *DocumentResponse, error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error
	ListByPermit(ctx context.Context, actor auth.Actor, permitID uuid.UUID, params pagination.Params) ([]DocumentResponse, string, error)
	ListByProject(ctx context.Context, actor auth.Actor, projectID uuid.UUID, params pagination.Params) ([]DocumentResponse, string, error)
	UpdateMetadata(ctx context.Context, actor auth.Actor, id uuid.UUID, patch map[string]any) error
}

// Config tunes the intake pipeline.
type Config struct {
	MaxUploadBytes int64
	ImageMaxWidth  int
	ImageMaxHeight int
	ImageQuality   int
	VirusScan      bool
}

type service struct {
	repo    documentRepository
	storage storageGateway
	audits  auditRecorder
	scanner VirusScanner
	metrics *metrics.IntakeMetrics
	logg    *logger.Logger
	cfg     Config
}

// NewService constructs the document service.
func NewService(repo documentRepository, storage storageGateway, audits auditRecorder, scanner VirusScanner, intakeMetrics *metrics.IntakeMetrics, logg *logger.Logger, cfg Config) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("document repository required")
	}
	if storage == nil {
		return nil, fmt.Errorf("storage gateway required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    repo,
		storage: storage,
		audits:  audits,
		scanner: scanner,
		metrics: intakeMetrics,
		logg:    logg,
		cfg:     cfg,
	}, nil
}

// Upload runs the intake pipeline: validate, optionally scan and optimize,
// store the blob, then create the row. Every failure before the row exists
// leaves no partial state behind except a best-effort orphan blob delete.
func (s *service) Upload(ctx context.Context, actor auth.Actor, input UploadInput) (*DocumentResponse, error) {
	started := time.Now()

	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.DocumentType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid document type")
	}
	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file_name is required")
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(input.Data)) > s.cfg.MaxUploadBytes {
		s.rejected(input.DocumentType, "request_size")
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("upload exceeds the %d byte request ceiling", s.cfg.MaxUploadBytes))
	}

	validation := Validate(input.Data, fileName, input.DocumentType)
	if !validation.IsValid {
		s.rejected(input.DocumentType, rejectionReason(validation.Errors))
		if isThreat(validation.Errors) {
			return nil, pkgerrors.New(pkgerrors.CodeThreat, "document rejected by threat scan").
				WithDetails(validation.Errors)
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document validation failed").
			WithDetails(validation.Errors)
	}

	if s.cfg.VirusScan && s.scanner != nil {
		clean, threats, err := s.scanner.Scan(ctx, input.Data)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "virus scan")
		}
		if !clean {
			s.rejected(input.DocumentType, "virus")
			return nil, pkgerrors.New(pkgerrors.CodeThreat, "virus detected").WithDetails(threats)
		}
	}

	// Opportunistic image optimization: failures degrade to the original
	// bytes with a recorded warning.
	payload := input.Data
	warnings := append([]string(nil), validation.Warnings...)
	optimized := false
	if strings.HasPrefix(validation.Metadata.DetectedMimeType, "image/") {
		shrunk, err := OptimizeImage(input.Data, OptimizeOptions{
			MaxWidth:  s.cfg.ImageMaxWidth,
			MaxHeight: s.cfg.ImageMaxHeight,
			Quality:   s.cfg.ImageQuality,
		})
		if err != nil {
			warnings = append(warnings, "image optimization failed, original stored")
			s.logg.Warn(s.logg.WithField(ctx, "file_name", fileName), "image optimization failed: "+err.Error())
		} else if len(shrunk) < len(input.Data) {
			payload = shrunk
			optimized = true
			s.metrics.AddBytesSaved(int64(len(input.Data) - len(shrunk)))
		}
	}

	owner := OwnerRef{PermitID: input.PermitID, ProjectID: input.ProjectID, UserID: actor.UserID}
	storageKey := BuildStorageKey(owner.Prefix(), fileName)

	contentType := validation.Metadata.DetectedMimeType
	if contentType == "" {
		contentType = input.DeclaredMime
	}

	if err := s.storage.Upload(ctx, storageKey, contentType, bytes.NewReader(payload)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "store document blob")
	}

	status := enums.ValidationStatusValid
	if len(warnings) > 0 {
		status = enums.ValidationStatusWarning
	}

	metadata := map[string]any{}
	for k, v := range input.Metadata {
		metadata[k] = v
	}
	metadata[models.DocumentMetaOptimized] = optimized
	metadata[models.DocumentMetaOriginalSize] = int64(len(input.Data))
	if validation.Metadata.Dimensions != nil {
		metadata[models.DocumentMetaDimensions] = validation.Metadata.Dimensions
	}
	if len(warnings) > 0 {
		metadata[models.DocumentMetaWarnings] = warnings
	}

	row := &models.Document{
		PermitID:         input.PermitID,
		ProjectID:        input.ProjectID,
		FileName:         fileName,
		DeclaredMimeType: input.DeclaredMime,
		DetectedMimeType: contentType,
		SizeBytes:        int64(len(payload)),
		ContentHash:      validation.Metadata.Hash,
		StorageKey:       storageKey,
		DocumentType:     input.DocumentType,
		ValidationStatus: status,
		ValidationErrors: warnings,
		Metadata:         metadata,
		UploadedByID:     actor.UserID,
	}

	created, err := s.repo.Create(ctx, row)
	if err != nil {
		if delErr := s.storage.Delete(ctx, storageKey); delErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "storage_key", storageKey),
				"orphan blob cleanup failed: "+delErr.Error())
		}
		if db.IsUniqueViolation(err, "documents_storage_key_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "storage key already recorded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist document row")
	}

	if err := s.audits.Record(ctx, audit.Event{
		UserID:     actor.UserID,
		Action:     enums.AuditActionDocumentUpload,
		EntityType: audit.EntityTypeDocument,
		EntityID:   created.ID,
		Metadata: map[string]any{
			"file_name":     fileName,
			"document_type": input.DocumentType.String(),
			"permit_id":     input.PermitID,
			"project_id":    input.ProjectID,
			"size_bytes":    int64(len(payload)),
		},
	}); err != nil {
		// The blob and row are durable; an audit miss is logged, not fatal.
		s.logg.Warn(s.logg.WithDocumentID(ctx, created.ID.String()), "upload audit failed: "+err.Error())
	}

	s.metrics.IncAccepted(input.DocumentType.String())
	s.metrics.ObserveDuration(input.DocumentType.String(), time.Since(started))

	return toResponse(created, s.signedGetURL(ctx, storageKey)), nil
}

// Get returns the document with a short-lived download URL.
func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.authorizedRead(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return toResponse(doc, s.signedGetURL(ctx, doc.StorageKey)), nil
}

// Download buffers the blob and audits the access.
func (s *service) Download(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]byte, *DocumentResponse, error) {
	doc, err := s.authorizedRead(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.storage.Download(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "fetch document blob")
	}

	if err := s.audits.Record(ctx, audit.Event{
		UserID:     actor.UserID,
		Action:     enums.AuditActionDocumentDownload,
		EntityType: audit.EntityTypeDocument,
		EntityID:   doc.ID,
		Metadata: map[string]any{
			"file_name":  doc.FileName,
			"size_bytes": doc.SizeBytes,
		},
	}); err != nil {
		s.logg.Warn(s.logg.WithDocumentID(ctx, doc.ID.String()), "download audit failed: "+err.Error())
	}

	return data, toResponse(doc, ""), nil
}

// Stream opens the blob for copying straight to a response writer.
func (s *service) Stream(ctx context.Context, actor auth.Actor, id uuid.UUID) (io.ReadCloser, *DocumentResponse, error) {
	doc, err := s.authorizedRead(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.storage.NewReader(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "open document blob")
	}
	return reader, toResponse(doc, ""), nil
}

// Delete removes blob then row. Only the uploader (while the permit is still
// draft) or an admin may delete.
func (s *service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return err
	}

	if !actor.IsAdmin() {
		if doc.UploadedByID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the uploader or an admin can delete this document")
		}
		if doc.PermitID != nil {
			permit, err := s.repo.FindPermit(ctx, *doc.PermitID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load permit")
			}
			if permit.Status != enums.PermitStatusDraft {
				return pkgerrors.New(pkgerrors.CodeForbidden, "cannot delete documents from submitted permits")
			}
		}
	}

	if err := s.storage.Delete(ctx, doc.StorageKey); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "delete document blob")
	}
	if err := s.repo.Delete(ctx, doc.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete document row")
	}

	if err := s.audits.Record(ctx, audit.Event{
		UserID:     actor.UserID,
		Action:     enums.AuditActionDocumentDelete,
		EntityType: audit.EntityTypeDocument,
		EntityID:   doc.ID,
		Metadata: map[string]any{
			"file_name":     doc.FileName,
			"document_type": doc.DocumentType.String(),
			"storage_key":   doc.StorageKey,
		},
	}); err != nil {
		s.logg.Warn(s.logg.WithDocumentID(ctx, doc.ID.String()), "delete audit failed: "+err.Error())
	}

	return nil
}

// ListByPermit returns a permit's documents. Applicants see only permits they
// created.
func (s *service) ListByPermit(ctx context.Context, actor auth.Actor, permitID uuid.UUID, params pagination.Params) ([]DocumentResponse, string, error) {
	permit, err := s.repo.FindPermit(ctx, permitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "permit not found")
		}
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load permit")
	}
	if !actor.IsStaff() && permit.CreatedByID != actor.UserID {
		return nil, "", pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
	}

	docs, err := s.repo.ListByPermit(ctx, permitID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list permit documents")
	}
	return s.page(ctx, docs, params)
}

// ListByProject returns a project's documents. Applicants see only their own
// uploads; the filter is pushed into the query so pagination walks the
// visible set.
func (s *service) ListByProject(ctx context.Context, actor auth.Actor, projectID uuid.UUID, params pagination.Params) ([]DocumentResponse, string, error) {
	var uploadedBy *uuid.UUID
	if !actor.IsStaff() {
		uploadedBy = &actor.UserID
	}
	docs, err := s.repo.ListByProject(ctx, projectID, uploadedBy, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list project documents")
	}
	return s.page(ctx, docs, params)
}

// UpdateMetadata merges the patch into the stored metadata map.
func (s *service) UpdateMetadata(ctx context.Context, actor auth.Actor, id uuid.UUID, patch map[string]any) error {
	doc, err := s.authorizedRead(ctx, actor, id)
	if err != nil {
		return err
	}

	merged := map[string]any{}
	for k, v := range doc.Metadata {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	merged[models.DocumentMetaUpdatedBy] = actor.UserID.String()
	merged[models.DocumentMetaUpdatedAtKey] = time.Now().UTC().Format(time.RFC3339)

	if err := s.repo.UpdateMetadata(ctx, doc.ID, merged); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update document metadata")
	}
	return nil
}

func (s *service) findDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load document")
	}
	return doc, nil
}

func (s *service) authorizedRead(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Document, error) {
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsStaff() || doc.UploadedByID == actor.UserID {
		return doc, nil
	}
	if doc.PermitID != nil {
		permit, err := s.repo.FindPermit(ctx, *doc.PermitID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load permit")
		}
		if permit.CreatedByID == actor.UserID {
			return doc, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
}

func (s *service) page(ctx context.Context, docs []models.Document, params pagination.Params) ([]DocumentResponse, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	nextCursor := ""
	if len(docs) > limit {
		docs = docs[:limit]
		last := docs[len(docs)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	out := make([]DocumentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, *toResponse(&docs[i], s.signedGetURL(ctx, docs[i].StorageKey)))
	}
	return out, nextCursor, nil
}

// signedGetURL degrades to an empty URL when signing is unavailable; callers
// still get the document metadata.
func (s *service) signedGetURL(ctx context.Context, key string) string {
	url, err := s.storage.SignedURL(key, http.MethodGet, downloadURLTTL)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "storage_key", key), "signing download url failed: "+err.Error())
		return ""
	}
	return url
}

func (s *service) rejected(docType enums.DocumentType, reason string) {
	s.metrics.IncRejected(docType.String(), reason)
}

func isThreat(errs []string) bool {
	for _, e := range errs {
		if strings.Contains(e, "malicious") || strings.Contains(e, "executable") {
			return true
		}
	}
	return false
}

func rejectionReason(errs []string) string {
	if len(errs) == 0 {
		return "unknown"
	}
	first := errs[0]
	switch {
	case strings.Contains(first, "file size"):
		return "file_size"
	case strings.Contains(first, "extension"):
		return "extension"
	case strings.Contains(first, "file type"):
		return "file_type"
	case strings.Contains(first, "dimensions"):
		return "dimensions"
	case strings.Contains(first, "malicious"), strings.Contains(first, "executable"):
		return "threat"
	}
	return "other"
}
