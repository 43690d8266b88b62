package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/citylineapps/permitflow-backend/internal/documents"
	"github.com/citylineapps/permitflow-backend/internal/ocr"
	pkgauth "github.com/citylineapps/permitflow-backend/pkg/auth"
	"github.com/citylineapps/permitflow-backend/pkg/config"
	"github.com/citylineapps/permitflow-backend/pkg/enums"
	pkgerrors "github.com/citylineapps/permitflow-backend/pkg/errors"
	"github.com/citylineapps/permitflow-backend/pkg/logger"
	"github.com/citylineapps/permitflow-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubDocumentsService struct {
	uploads int
}

func (s *stubDocumentsService) Upload(_ context.Context, _ pkgauth.Actor, input documents.UploadInput) (*documents.DocumentResponse, error) {
	s.uploads++
	return &documents.DocumentResponse{
		ID:               uuid.New(),
		FileName:         input.FileName,
		DocumentType:     input.DocumentType,
		ValidationStatus: enums.ValidationStatusValid,
	}, nil
}

func (s *stubDocumentsService) Get(_ context.Context, _ pkgauth.Actor, id uuid.UUID) (*documents.DocumentResponse, error) {
	return &documents.DocumentResponse{ID: id, FileName: "plan.pdf"}, nil
}

func (s *stubDocumentsService) Download(context.Context, pkgauth.Actor, uuid.UUID) ([]byte, *documents.DocumentResponse, error) {
	return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
}

func (s *stubDocumentsService) Stream(context.Context, pkgauth.Actor, uuid.UUID) (io.ReadCloser, *documents.DocumentResponse, error) {
	return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
}

func (s *stubDocumentsService) Delete(context.Context, pkgauth.Actor, uuid.UUID) error {
	return nil
}

func (s *stubDocumentsService) ListByPermit(context.Context, pkgauth.Actor, uuid.UUID, pagination.Params) ([]documents.DocumentResponse, string, error) {
	return []documents.DocumentResponse{}, "", nil
}

func (s *stubDocumentsService) ListByProject(context.Context, pkgauth.Actor, uuid.UUID, pagination.Params) ([]documents.DocumentResponse, string, error) {
	return []documents.DocumentResponse{}, "", nil
}

func (s *stubDocumentsService) UpdateMetadata(context.Context, pkgauth.Actor, uuid.UUID, map[string]any) error {
	return nil
}

type stubOCRService struct{}

func (stubOCRService) Process(context.Context, pkgauth.Actor, uuid.UUID) (*ocr.Result, error) {
	return &ocr.Result{Success: true, Text: "PERMIT"}, nil
}

func (stubOCRService) Reprocess(context.Context, pkgauth.Actor, uuid.UUID) (*ocr.Result, error) {
	return &ocr.Result{Success: true}, nil
}

func (stubOCRService) BatchProcess(_ context.Context, _ pkgauth.Actor, ids []uuid.UUID) (*ocr.BatchResult, error) {
	return &ocr.BatchResult{Successful: ids}, nil
}

func (stubOCRService) Status(context.Context, pkgauth.Actor, uuid.UUID) (*ocr.Status, error) {
	return &ocr.Status{Processed: true}, nil
}

func (stubOCRService) SearchText(context.Context, pkgauth.Actor, string, ocr.SearchScope) ([]ocr.SearchHit, error) {
	return []ocr.SearchHit{}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{
		Secret:            "router-test-secret",
		Issuer:            "permitflow-test",
		ExpirationMinutes: 15,
	}
	cfg.Documents.MaxUploadMB = 10
	return cfg
}

func testRouter(t *testing.T, docs documents.Service) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})
	return NewRouter(
		testConfig(),
		logg,
		stubPinger{},
		nil,
		stubPinger{},
		prometheus.NewRegistry(),
		docs,
		stubOCRService{},
	)
}

func mintToken(t *testing.T, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(testConfig().JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := testRouter(t, &stubDocumentsService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if env := rec.Header().Get("X-PermitFlow-Env"); env != "test" {
		t.Fatalf("env header = %q", env)
	}
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	router := testRouter(t, &stubDocumentsService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestDocumentRoutesRequireAuth(t *testing.T) {
	router := testRouter(t, &stubDocumentsService{})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/documents"},
		{http.MethodGet, "/api/v1/documents/" + uuid.NewString()},
		{http.MethodGet, "/api/v1/permits/" + uuid.NewString() + "/documents"},
		{http.MethodGet, "/api/v1/documents/search?q=permit"},
	}
	for _, tc := range paths {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: status = %d, want %d", tc.method, tc.path, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestDocumentGetWithToken(t *testing.T) {
	router := testRouter(t, &stubDocumentsService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.ActorRoleReviewer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Data documents.DocumentResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data.FileName != "plan.pdf" {
		t.Fatalf("file name = %q", body.Data.FileName)
	}
}

func TestUploadRequiresIdempotencyKey(t *testing.T) {
	svc := &stubDocumentsService{}
	router := testRouter(t, svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "plan.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.4")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.WriteField("document_type", "application"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.ActorRoleApplicant))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if svc.uploads != 0 {
		t.Fatalf("upload ran without idempotency key")
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	router := testRouter(t, &stubDocumentsService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.ActorRoleAdmin))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
