package responses

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	pkgerrors "github.com/citylineapps/permitflow-backend/pkg/errors"
	"github.com/citylineapps/permitflow-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})
}

func TestWriteSuccessWrapsDataEnvelope(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"status": "ok"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	var body struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data["status"] != "ok" {
		t.Fatalf("data = %v", body.Data)
	}
}

func TestWriteSuccessStatusSetsCode(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, map[string]string{"id": "abc"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
}

func TestWriteErrorMapsCodesToStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", pkgerrors.New(pkgerrors.CodeValidation, "file too large"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"threat", pkgerrors.New(pkgerrors.CodeThreat, "executable content"), http.StatusUnprocessableEntity, "THREAT_DETECTED"},
		{"storage", pkgerrors.New(pkgerrors.CodeStorage, "bucket down"), http.StatusServiceUnavailable, "STORAGE_ERROR"},
		{"not found", pkgerrors.New(pkgerrors.CodeNotFound, "document not found"), http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", pkgerrors.New(pkgerrors.CodeForbidden, "not yours"), http.StatusForbidden, "FORBIDDEN"},
		{"rate limit", pkgerrors.New(pkgerrors.CodeRateLimit, "slow down"), http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			WriteError(context.Background(), testLogger(), rec, tc.err)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}

			var body struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", body.Error.Code, tc.wantCode)
			}
		})
	}
}

func TestWriteErrorPassesValidationMessageThrough(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteError(context.Background(), testLogger(), rec, pkgerrors.New(pkgerrors.CodeValidation, "extension .exe is not allowed"))

	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Message != "extension .exe is not allowed" {
		t.Fatalf("message = %q", body.Error.Message)
	}
}

func TestWriteErrorSuppressesThreatDetails(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeThreat, "script content detected").
		WithDetails(map[string]any{"pattern": "<script"})
	WriteError(context.Background(), testLogger(), rec, err)

	var body struct {
		Error struct {
			Message string `json:"message"`
			Details any    `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Details != nil {
		t.Fatalf("threat details leaked: %v", body.Error.Details)
	}
	if body.Error.Message == "script content detected" {
		t.Fatalf("threat internals leaked in message")
	}
}

func TestWriteErrorIncludesValidationDetails(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "document failed validation").
		WithDetails(map[string]any{"errors": []string{"file size exceeds maximum"}})
	WriteError(context.Background(), testLogger(), rec, err)

	var body struct {
		Error struct {
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Details == nil {
		t.Fatalf("validation details missing")
	}
}
