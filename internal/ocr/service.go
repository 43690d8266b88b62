package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"

	"github.com/citylineapps/permitflow-backend/internal/audit"
	"github.com/citylineapps/permitflow-backend/internal/documents"
	"github.com/citylineapps/permitflow-backend/pkg/auth"
	"github.com/citylineapps/permitflow-backend/pkg/db/models"
	"github.com/citylineapps/permitflow-backend/pkg/enums"
	pkgerrors "github.com/citylineapps/permitflow-backend/pkg/errors"
	"github.com/citylineapps/permitflow-backend/pkg/logger"
	"github.com/citylineapps/permitflow-backend/pkg/metrics"
)

const (
	defaultBatchConcurrency = 3
	minSearchQueryLen       = 3
	maxSnippetsPerDocument  = 5
	snippetContextChars     = 50
)

type documentStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ApplyOCRResult(ctx context.Context, id uuid.UUID, update documents.OCRUpdate) error
	ClearOCRFields(ctx context.Context, id uuid.UUID) error
	ListWithOCRText(ctx context.Context, permitID, projectID *uuid.UUID, uploadedBy *uuid.UUID) ([]models.Document, error)
	FindPermit(ctx context.Context, id uuid.UUID) (*models.Permit, error)
}

type blobStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

type extractor interface {
	Extract(ctx context.Context, payload []byte, fileName, contentType string, docType enums.DocumentType) (*Result, error)
}

type auditRecorder interface {
	Record(ctx context.Context, event audit.Event) error
}

// BatchFailure names one document that failed inside a batch run.
type BatchFailure struct {
	DocumentID uuid.UUID `json:"document_id"`
	Error      string    `json:"error"`
}

// BatchResult partitions a batch run into outcomes; one bad document never
// aborts its siblings.
type BatchResult struct {
	Successful []uuid.UUID    `json:"successful"`
	Failed     []BatchFailure `json:"failed"`
}

// Status summarizes a document's extraction state.
type Status struct {
	Processed            bool       `json:"processed"`
	ProcessedAt          *time.Time `json:"processed_at,omitempty"`
	Confidence           *float64   `json:"confidence,omitempty"`
	ExtractedFieldsCount int        `json:"extracted_fields_count"`
}

// SearchScope narrows a text search to one permit or project.
type SearchScope struct {
	PermitID  *uuid.UUID
	ProjectID *uuid.UUID
}

// SearchHit is one document whose extracted text matched the query.
type SearchHit struct {
	DocumentID   uuid.UUID          `json:"document_id"`
	FileName     string             `json:"file_name"`
	DocumentType enums.DocumentType `json:"document_type"`
	PermitID     *uuid.UUID         `json:"permit_id,omitempty"`
	ProjectID    *uuid.UUID         `json:"project_id,omitempty"`
	ProcessedAt  *time.Time         `json:"processed_at,omitempty"`
	Highlights   []string           `json:"highlights"`
}

// Service reconciles documents with the OCR sidecar.
type Service interface {
	Process(ctx context.Context, actor auth.Actor, documentID uuid.UUID) (*Result, error)
	Reprocess(ctx context.Context, actor auth.Actor, documentID uuid.UUID) (*Result, error)
	BatchProcess(ctx context.Context, actor auth.Actor, documentIDs []uuid.UUID) (*BatchResult, error)
	Status(ctx context.Context, actor auth.Actor, documentID uuid.UUID) (*Status, error)
	SearchText(ctx context.Context, actor auth.Actor, query string, scope SearchScope) ([]SearchHit, error)
}

// Config tunes the reconciler.
type Config struct {
	BatchConcurrency int
}

type service struct {
	store     documentStore
	blobs     blobStore
	extractor extractor
	audits    auditRecorder
	metrics   *metrics.OCRMetrics
	logg      *logger.Logger
	batchSem  int64
}

// NewService constructs the OCR reconciler.
func NewService(store documentStore, blobs blobStore, ext extractor, audits auditRecorder, ocrMetrics *metrics.OCRMetrics, logg *logger.Logger, cfg Config) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("document store required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if ext == nil {
		return nil, fmt.Errorf("extractor required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	concurrency := cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	return &service{
		store:     store,
		blobs:     blobs,
		extractor: ext,
		audits:    audits,
		metrics:   ocrMetrics,
		logg:      logg,
		batchSem:  int64(concurrency),
	}, nil
}

// Process extracts text for one document and merges the result into its row.
// The row is only touched on a successful extraction call.
func (s *service) Process(ctx context.Context, actor auth.Actor, documentID uuid.UUID) (*Result, error) {
	doc, err := s.authorizedDocument(ctx, actor, documentID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := s.extract(ctx, doc)
	s.metrics.ObserveDuration(doc.DocumentType.String(), time.Since(started))
	if err != nil {
		s.metrics.IncFailure(doc.DocumentType.String())
		s.recordAudit(ctx, actor, enums.AuditActionOCRProcessFailed, doc.ID, map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	if err := s.merge(ctx, doc, result); err != nil {
		s.metrics.IncFailure(doc.DocumentType.String())
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge ocr result")
	}

	if result.Success {
		s.metrics.IncSuccess(doc.DocumentType.String())
	} else {
		s.metrics.IncFailure(doc.DocumentType.String())
	}
	s.recordAudit(ctx, actor, enums.AuditActionOCRProcess, doc.ID, map[string]any{
		"success":          result.Success,
		"confidence":       result.Confidence,
		"processing_time":  result.ProcessingTime,
		"extracted_fields": len(result.ExtractedFields),
	})

	return result, nil
}

// Reprocess wipes prior extraction state and runs the pipeline again, so a
// document only ever carries the output of its latest run.
func (s *service) Reprocess(ctx context.Context, actor auth.Actor, documentID uuid.UUID) (*Result, error) {
	if _, err := s.authorizedDocument(ctx, actor, documentID); err != nil {
		return nil, err
	}
	if err := s.store.ClearOCRFields(ctx, documentID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear ocr fields")
	}
	return s.Process(ctx, actor, documentID)
}

// BatchProcess runs the pipeline over many documents with a bounded number in
// flight. Failures are collected per document.
func (s *service) BatchProcess(ctx context.Context, actor auth.Actor, documentIDs []uuid.UUID) (*BatchResult, error) {
	if len(documentIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document_ids is required")
	}

	sem := semaphore.NewWeighted(s.batchSem)
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result BatchResult
	)

	for _, id := range documentIDs {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Drain outstanding workers so none outlive the discarded result.
			wg.Wait()
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "acquire batch slot")
		}
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			defer sem.Release(1)

			_, err := s.Process(ctx, actor, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, BatchFailure{DocumentID: id, Error: err.Error()})
				return
			}
			result.Successful = append(result.Successful, id)
		}(id)
	}
	wg.Wait()

	return &result, nil
}

// Status reports whether a document has been processed and with what outcome.
func (s *service) Status(ctx context.Context, actor auth.Actor, documentID uuid.UUID) (*Status, error) {
	doc, err := s.authorizedDocument(ctx, actor, documentID)
	if err != nil {
		return nil, err
	}
	return &Status{
		Processed:            doc.OCRProcessedAt != nil,
		ProcessedAt:          doc.OCRProcessedAt,
		Confidence:           doc.OCRConfidence,
		ExtractedFieldsCount: len(doc.ExtractedFields),
	}, nil
}

// SearchText finds documents whose extracted text contains the query,
// case-insensitively, and returns contextual snippets per hit.
func (s *service) SearchText(ctx context.Context, actor auth.Actor, query string, scope SearchScope) ([]SearchHit, error) {
	trimmed := strings.TrimSpace(query)
	if len(trimmed) < minSearchQueryLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("search query must be at least %d characters", minSearchQueryLen))
	}

	var uploadedBy *uuid.UUID
	if !actor.IsStaff() {
		uploadedBy = &actor.UserID
	}

	docs, err := s.store.ListWithOCRText(ctx, scope.PermitID, scope.ProjectID, uploadedBy)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search documents")
	}

	queryLower := strings.ToLower(trimmed)
	hits := make([]SearchHit, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		if doc.OCRText == nil {
			continue
		}
		if !strings.Contains(strings.ToLower(*doc.OCRText), queryLower) {
			continue
		}
		hits = append(hits, SearchHit{
			DocumentID:   doc.ID,
			FileName:     doc.FileName,
			DocumentType: doc.DocumentType,
			PermitID:     doc.PermitID,
			ProjectID:    doc.ProjectID,
			ProcessedAt:  doc.OCRProcessedAt,
			Highlights:   buildSnippets(*doc.OCRText, trimmed),
		})
	}
	return hits, nil
}

func (s *service) extract(ctx context.Context, doc *models.Document) (*Result, error) {
	data, err := s.blobs.Download(ctx, doc.StorageKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "fetch document blob")
	}

	contentType := doc.DetectedMimeType
	if contentType == "" {
		contentType = doc.DeclaredMimeType
	}

	result, err := s.extractor.Extract(ctx, data, doc.FileName, contentType, doc.DocumentType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOCR, err, "extract text")
	}
	return result, nil
}

func (s *service) merge(ctx context.Context, doc *models.Document, result *Result) error {
	metadata := map[string]any{}
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	metadata[models.DocumentMetaOCR] = map[string]any{
		"success":         result.Success,
		"confidence":      result.Confidence,
		"processing_time": result.ProcessingTime,
		"lines_count":     len(result.Lines),
		"pages":           result.Metadata.Pages,
	}

	status := enums.ValidationStatusValid
	if !result.Success {
		status = enums.ValidationStatusInvalid
	}

	return s.store.ApplyOCRResult(ctx, doc.ID, documents.OCRUpdate{
		Text:            result.Text,
		ExtractedFields: result.ExtractedFields,
		Confidence:      result.Confidence,
		ProcessedAt:     time.Now().UTC(),
		Status:          string(status),
		Metadata:        metadata,
	})
}

func (s *service) authorizedDocument(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Document, error) {
	doc, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load document")
	}
	if actor.IsStaff() || doc.UploadedByID == actor.UserID {
		return doc, nil
	}
	if doc.PermitID != nil {
		permit, err := s.store.FindPermit(ctx, *doc.PermitID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load permit")
		}
		if permit.CreatedByID == actor.UserID {
			return doc, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
}

func (s *service) recordAudit(ctx context.Context, actor auth.Actor, action enums.AuditAction, docID uuid.UUID, metadata map[string]any) {
	if err := s.audits.Record(ctx, audit.Event{
		UserID:     actor.UserID,
		Action:     action,
		EntityType: audit.EntityTypeDocument,
		EntityID:   docID,
		Metadata:   metadata,
	}); err != nil {
		s.logg.Warn(s.logg.WithDocumentID(ctx, docID.String()), "ocr audit failed: "+err.Error())
	}
}

// buildSnippets returns up to five matching lines, each trimmed to 50
// characters of context around the first match with ellipses marking
// truncation.
func buildSnippets(text, query string) []string {
	queryLower := strings.ToLower(query)
	var snippets []string

	for _, line := range strings.Split(text, "\n") {
		lineLower := strings.ToLower(line)
		idx := strings.Index(lineLower, queryLower)
		if idx < 0 {
			continue
		}

		start := idx - snippetContextChars
		if start < 0 {
			start = 0
		}
		end := idx + len(query) + snippetContextChars
		if end > len(line) {
			end = len(line)
		}

		// Back byte offsets up to rune boundaries so the slice never splits
		// a multi-byte character.
		for start > 0 && !utf8.RuneStart(line[start]) {
			start--
		}
		for end < len(line) && !utf8.RuneStart(line[end]) {
			end--
		}

		snippet := line[start:end]
		if start > 0 {
			snippet = "..." + snippet
		}
		if end < len(line) {
			snippet += "..."
		}
		snippets = append(snippets, snippet)

		if len(snippets) == maxSnippetsPerDocument {
			break
		}
	}
	return snippets
}
