package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/citylineapps/permitflow-backend/api/middleware"
	"github.com/citylineapps/permitflow-backend/api/responses"
	"github.com/citylineapps/permitflow-backend/api/validators"
	"github.com/citylineapps/permitflow-backend/internal/ocr"
	pkgerrors "github.com/citylineapps/permitflow-backend/pkg/errors"
	"github.com/citylineapps/permitflow-backend/pkg/logger"
)

const maxSearchQueryLen = 256

func OCRProcess(svc ocr.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := pathUUID(r, "documentId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.Process(ctx, middleware.ActorFromContext(ctx), id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func OCRReprocess(svc ocr.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := pathUUID(r, "documentId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.Reprocess(ctx, middleware.ActorFromContext(ctx), id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type ocrBatchRequest struct {
	DocumentIDs []string `json:"document_ids" validate:"required,min=1,max=50,dive,uuid"`
}

func OCRBatch(svc ocr.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req ocrBatchRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ids := make([]uuid.UUID, 0, len(req.DocumentIDs))
		for _, raw := range req.DocumentIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid document id in batch"))
				return
			}
			ids = append(ids, id)
		}
		result, err := svc.BatchProcess(ctx, middleware.ActorFromContext(ctx), ids)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func OCRStatus(svc ocr.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := pathUUID(r, "documentId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status, err := svc.Status(ctx, middleware.ActorFromContext(ctx), id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// DocumentSearch runs a full-text lookup across OCR-extracted text.
func DocumentSearch(svc ocr.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		query := validators.SanitizeString(r.URL.Query().Get("q"), maxSearchQueryLen)

		var scope ocr.SearchScope
		if raw := r.URL.Query().Get("permit_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid permit_id"))
				return
			}
			scope.PermitID = &id
		}
		if raw := r.URL.Query().Get("project_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid project_id"))
				return
			}
			scope.ProjectID = &id
		}

		hits, err := svc.SearchText(ctx, middleware.ActorFromContext(ctx), query, scope)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"query":   query,
			"results": hits,
			"total":   len(hits),
		})
	}
}
