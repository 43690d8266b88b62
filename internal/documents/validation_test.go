package documents

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"reflect"
	"strings"
	"testing"

	"github.com/citylineapps/permitflow-backend/pkg/enums"
)

func hasErrorContaining(errs []string, needle string) bool {
	for _, e := range errs {
		if strings.Contains(e, needle) {
			return true
		}
	}
	return false
}

func TestValidateIsPure(t *testing.T) {
	data := encodeTestJPEG(t, 900, 650)

	first := Validate(data, "photo.jpg", enums.DocumentTypePhoto)
	second := Validate(data, "photo.jpg", enums.DocumentTypePhoto)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same input produced different results:\n%+v\n%+v", first, second)
	}
	if !first.IsValid {
		t.Fatalf("expected valid result, got errors %v", first.Errors)
	}

	wantHash := sha256.Sum256(data)
	if first.Metadata.Hash != hex.EncodeToString(wantHash[:]) {
		t.Fatalf("unexpected hash %s", first.Metadata.Hash)
	}
	if first.Metadata.Dimensions == nil || first.Metadata.Dimensions.Width != 900 {
		t.Fatalf("unexpected dimensions %+v", first.Metadata.Dimensions)
	}
}

func TestValidateRejectsExecutables(t *testing.T) {
	signatures := map[string][]byte{
		"windows pe": {0x4D, 0x5A},
		"linux elf":  {0x7F, 0x45, 0x4C, 0x46},
		"macho":      {0xCE, 0xFA, 0xED, 0xFE},
		"macho fat":  {0xCA, 0xFE, 0xBA, 0xBE},
	}

	for name, sig := range signatures {
		payload := append(append([]byte{}, sig...), bytes.Repeat([]byte{0x01}, 64)...)
		result := Validate(payload, "report.pdf", enums.DocumentTypeOther)
		if result.IsValid {
			t.Fatalf("%s payload accepted", name)
		}
		if !hasErrorContaining(result.Errors, "executable") {
			t.Fatalf("%s payload missing executable error: %v", name, result.Errors)
		}
	}
}

func TestValidateMaxSizeBoundary(t *testing.T) {
	limit := RulesFor(enums.DocumentTypeLicense).MaxSize

	atLimit := bytes.Repeat([]byte{'A'}, int(limit))
	result := Validate(atLimit, "license.pdf", enums.DocumentTypeLicense)
	if hasErrorContaining(result.Errors, "file size exceeds") {
		t.Fatalf("payload at the limit flagged oversized: %v", result.Errors)
	}

	overLimit := append(atLimit, 'A')
	result = Validate(overLimit, "license.pdf", enums.DocumentTypeLicense)
	if !hasErrorContaining(result.Errors, "file size exceeds") {
		t.Fatalf("payload over the limit not flagged: %v", result.Errors)
	}
}

func TestValidateScriptPatterns(t *testing.T) {
	payloads := []string{
		"hello <ScRiPt type=text/javascript>alert(1)</script>",
		"click javascript:void(0)",
		"<img onerror = steal()>",
		"<IFRAME src=evil>",
		"<embed src=x>",
		"<object data=x>",
	}
	for _, payload := range payloads {
		result := Validate([]byte(payload), "notes.txt", enums.DocumentTypeOther)
		if result.IsValid {
			t.Fatalf("payload %q accepted", payload)
		}
		if !hasErrorContaining(result.Errors, "malicious") {
			t.Fatalf("payload %q missing malicious error: %v", payload, result.Errors)
		}
	}
}

func TestValidateScriptScanIsBounded(t *testing.T) {
	// The pattern scan covers only the leading window; payload beyond it is
	// not inspected.
	payload := append(bytes.Repeat([]byte{'A'}, maliciousScanLen), []byte("<script>")...)
	result := Validate(payload, "notes.txt", enums.DocumentTypeOther)
	if hasErrorContaining(result.Errors, "malicious") {
		t.Fatalf("scan should not reach past the leading window: %v", result.Errors)
	}
}

func TestValidateExtensionRejected(t *testing.T) {
	result := Validate([]byte("plain text"), "malware.exe", enums.DocumentTypeOther)
	if result.IsValid {
		t.Fatal("disallowed extension accepted")
	}
	if !hasErrorContaining(result.Errors, "extension") {
		t.Fatalf("missing extension error: %v", result.Errors)
	}
}

func TestValidateRenamedJPEGDetected(t *testing.T) {
	data := encodeTestJPEG(t, 300, 200)
	result := Validate(data, "certificate.pdf", enums.DocumentTypeInsurance)
	if result.IsValid {
		t.Fatal("jpeg renamed to .pdf accepted for a pdf-only type")
	}
	if !hasErrorContaining(result.Errors, "file type") {
		t.Fatalf("missing file type error: %v", result.Errors)
	}
	if result.Metadata.DetectedMimeType != "image/jpeg" {
		t.Fatalf("expected sniffed image/jpeg, got %q", result.Metadata.DetectedMimeType)
	}
}

func TestValidateExtensionMismatchWarns(t *testing.T) {
	data := encodeTestJPEG(t, 300, 200)
	result := Validate(data, "scan.png", enums.DocumentTypeOther)
	if !result.IsValid {
		t.Fatalf("mismatch should warn, not fail: %v", result.Errors)
	}
	if len(result.Warnings) == 0 || !strings.Contains(result.Warnings[0], "doesn't match") {
		t.Fatalf("expected mismatch warning, got %v", result.Warnings)
	}
}

func TestValidatePhotoDimensionBounds(t *testing.T) {
	small := encodeTestJPEG(t, 400, 300)
	result := Validate(small, "site.jpg", enums.DocumentTypePhoto)
	if result.IsValid || !hasErrorContaining(result.Errors, "below minimum") {
		t.Fatalf("undersized photo accepted: %v", result.Errors)
	}

	ok := encodeTestJPEG(t, 800, 600)
	result = Validate(ok, "site.jpg", enums.DocumentTypePhoto)
	if !result.IsValid {
		t.Fatalf("800x600 photo rejected: %v", result.Errors)
	}
}

func TestValidateTextFallback(t *testing.T) {
	result := Validate([]byte("permit narrative\nline two\n"), "notes.txt", enums.DocumentTypeOther)
	if !result.IsValid {
		t.Fatalf("plain text rejected: %v", result.Errors)
	}
	if result.Metadata.DetectedMimeType != "text/plain" {
		t.Fatalf("expected text/plain fallback, got %q", result.Metadata.DetectedMimeType)
	}
}

func TestValidateZeroByteWarns(t *testing.T) {
	result := Validate([]byte{}, "empty.txt", enums.DocumentTypeOther)
	if !result.IsValid {
		t.Fatalf("empty payload should warn, not fail: %v", result.Errors)
	}
	if len(result.Warnings) == 0 || !strings.Contains(result.Warnings[0], "unable to detect file type") {
		t.Fatalf("expected unable-to-detect warning, got %v", result.Warnings)
	}
	if result.Metadata.DetectedMimeType != "" {
		t.Fatalf("empty payload should not sniff a type, got %q", result.Metadata.DetectedMimeType)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:                 "0 Bytes",
		512:               "512 Bytes",
		5 * 1024 * 1024:   "5 MB",
		50 * 1024 * 1024:  "50 MB",
		100 * 1024 * 1024: "100 MB",
		1536:              "1.50 KB",
	}
	for input, want := range cases {
		if got := formatBytes(input); got != want {
			t.Fatalf("formatBytes(%d) = %q, want %q", input, got, want)
		}
	}
}
