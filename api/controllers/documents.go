package controllers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/citylineapps/permitflow-backend/api/middleware"
	"github.com/citylineapps/permitflow-backend/api/responses"
	"github.com/citylineapps/permitflow-backend/api/validators"
	"github.com/citylineapps/permitflow-backend/internal/documents"
	"github.com/citylineapps/permitflow-backend/pkg/enums"
	pkgerrors "github.com/citylineapps/permitflow-backend/pkg/errors"
	"github.com/citylineapps/permitflow-backend/pkg/logger"
	"github.com/citylineapps/permitflow-backend/pkg/pagination"
)

const (
	maxFileNameLen     = 255
	uploadFormMemLimit = 32 << 20
)

// DocumentUpload handles the multipart intake endpoint. The multipart body is
// capped slightly above the configured document limit so that oversized files
// get a proper validation error instead of a truncated read.
func DocumentUpload(svc documents.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor := middleware.ActorFromContext(ctx)

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+uploadFormMemLimit)
		if err := r.ParseMultipartForm(uploadFormMemLimit); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body"))
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "file field is required"))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading uploaded file"))
			return
		}

		docType, err := enums.ParseDocumentType(r.FormValue("document_type"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid document_type"))
			return
		}

		input := documents.UploadInput{
			Data:         data,
			FileName:     validators.SanitizeString(header.Filename, maxFileNameLen),
			DeclaredMime: header.Header.Get("Content-Type"),
			DocumentType: docType,
		}

		if raw := r.FormValue("permit_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid permit_id"))
				return
			}
			input.PermitID = &id
		}
		if raw := r.FormValue("project_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid project_id"))
				return
			}
			input.ProjectID = &id
		}
		if raw := r.FormValue("metadata"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &input.Metadata); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "metadata must be a JSON object"))
				return
			}
		}

		doc, err := svc.Upload(ctx, actor, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, doc)
	}
}

func DocumentGet(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := pathUUID(r, "documentId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		doc, err := svc.Get(ctx, middleware.ActorFromContext(ctx), id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, doc)
	}
}

// DocumentDownload streams the stored blob back to the caller.
func DocumentDownload(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := pathUUID(r, "documentId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		reader, doc, err := svc.Stream(ctx, middleware.ActorFromContext(ctx), id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		defer reader.Close()

		w.Header().Set("Content-Type", doc.DetectedMimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
		w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
		if _, err := io.Copy(w, reader); err != nil {
			logg.Error(ctx, "streaming document body", err)
		}
	}
}

func DocumentDelete(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := pathUUID(r, "documentId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.Delete(ctx, middleware.ActorFromContext(ctx), id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type metadataPatchRequest struct {
	Metadata map[string]any `json:"metadata" validate:"required,min=1"`
}

func DocumentMetadataPatch(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := pathUUID(r, "documentId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req metadataPatchRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.UpdateMetadata(ctx, middleware.ActorFromContext(ctx), id, req.Metadata); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

func DocumentsByPermit(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		permitID, err := pathUUID(r, "permitId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params, err := listParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		docs, next, err := svc.ListByPermit(ctx, middleware.ActorFromContext(ctx), permitID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, listResponse{Documents: docs, NextCursor: next})
	}
}

func DocumentsByProject(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		projectID, err := pathUUID(r, "projectId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params, err := listParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		docs, next, err := svc.ListByProject(ctx, middleware.ActorFromContext(ctx), projectID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, listResponse{Documents: docs, NextCursor: next})
	}
}

type listResponse struct {
	Documents  []documents.DocumentResponse `json:"documents"`
	NextCursor string                       `json:"next_cursor,omitempty"`
}

func listParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	}, nil
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+key)
	}
	return id, nil
}
