package documents

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"math"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/citylineapps/permitflow-backend/pkg/enums"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
)

const (
	textSniffLen     = 1024
	maliciousScanLen = 10 * 1024
)

// ValidationMetadata carries the facts gathered while validating.
type ValidationMetadata struct {
	DetectedMimeType string      `json:"detected_mime_type,omitempty"`
	SizeBytes        int64       `json:"size_bytes"`
	Dimensions       *Dimensions `json:"dimensions,omitempty"`
	Hash             string      `json:"hash,omitempty"`
}

// ValidationResult is the outcome of running a byte payload through the rules.
type ValidationResult struct {
	IsValid  bool
	Errors   []string
	Warnings []string
	Metadata ValidationMetadata
}

var scriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)<iframe`),
	regexp.MustCompile(`(?i)<embed`),
	regexp.MustCompile(`(?i)<object`),
}

var executableSignatures = [][]byte{
	{0x4D, 0x5A},             // PE/COFF (Windows)
	{0x7F, 0x45, 0x4C, 0x46}, // ELF (Linux)
	{0xCE, 0xFA, 0xED, 0xFE}, // Mach-O (macOS)
	{0xCA, 0xFE, 0xBA, 0xBE}, // Mach-O universal (macOS)
}

// Validate runs the full rule pipeline for a payload. It is a pure function:
// errors fail the document, warnings are recorded but do not.
func Validate(data []byte, filename string, docType enums.DocumentType) ValidationResult {
	rules := RulesFor(docType)

	result := ValidationResult{
		Metadata: ValidationMetadata{SizeBytes: int64(len(data))},
	}

	if int64(len(data)) > rules.MaxSize {
		result.Errors = append(result.Errors,
			fmt.Sprintf("file size exceeds maximum allowed size of %s", formatBytes(rules.MaxSize)))
	}

	ext := strings.ToLower(path.Ext(filename))
	if !containsFold(rules.AllowedExtensions, ext) {
		result.Errors = append(result.Errors,
			fmt.Sprintf("file extension %q is not allowed, allowed extensions: %s",
				ext, strings.Join(rules.AllowedExtensions, ", ")))
	}

	detected := detectMimeType(data)
	if detected != nil {
		result.Metadata.DetectedMimeType = detected.mime
		if !containsFold(rules.AllowedMimeTypes, detected.mime) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("file type %q is not allowed, file appears to be %s format",
					detected.mime, strings.TrimPrefix(detected.ext, ".")))
		}
		// Office containers sniff as generic xml/zip; skip the mismatch
		// warning for those the way the original pipeline did.
		if detected.ext != ext && detected.ext != ".xml" && detected.ext != "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("file extension %q doesn't match detected type %q", ext, detected.ext))
		}
	} else {
		switch {
		case len(data) == 0:
			result.Warnings = append(result.Warnings, "unable to detect file type from content")
		case isPrintableASCII(data):
			result.Metadata.DetectedMimeType = "text/plain"
		case ext == ".dwg":
			// DWG has no widely recognized magic prefix.
			result.Metadata.DetectedMimeType = "application/dwg"
		default:
			result.Warnings = append(result.Warnings, "unable to detect file type from content")
		}
	}

	if isImage(result.Metadata.DetectedMimeType) || isImage(ext) {
		if dims, err := readDimensions(data); err != nil {
			result.Warnings = append(result.Warnings, "unable to read image dimensions")
		} else {
			result.Metadata.Dimensions = dims
			if min := rules.MinDimensions; min != nil && (dims.Width < min.Width || dims.Height < min.Height) {
				result.Errors = append(result.Errors,
					fmt.Sprintf("image dimensions (%dx%d) are below minimum required (%dx%d)",
						dims.Width, dims.Height, min.Width, min.Height))
			}
			if max := rules.MaxDimensions; max != nil && (dims.Width > max.Width || dims.Height > max.Height) {
				result.Errors = append(result.Errors,
					fmt.Sprintf("image dimensions (%dx%d) exceed maximum allowed (%dx%d)",
						dims.Width, dims.Height, max.Width, max.Height))
			}
		}
	}

	sum := sha256.Sum256(data)
	result.Metadata.Hash = hex.EncodeToString(sum[:])

	result.Errors = append(result.Errors, scanMaliciousContent(data)...)

	result.IsValid = len(result.Errors) == 0
	return result
}

type detectedType struct {
	mime string
	ext  string
}

// detectMimeType sniffs the payload, returning nil when the content gives no
// usable signal (empty input or the generic binary fallback).
func detectMimeType(data []byte) *detectedType {
	if len(data) == 0 {
		return nil
	}
	mtype := mimetype.Detect(data)
	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(mtype.String(), ";", 2)[0]))
	if mime == "" || mime == "application/octet-stream" {
		return nil
	}
	return &detectedType{mime: mime, ext: strings.ToLower(mtype.Extension())}
}

func isPrintableASCII(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	sample := data
	if len(sample) > textSniffLen {
		sample = sample[:textSniffLen]
	}
	for _, b := range sample {
		if b >= 0x20 && b <= 0x7E {
			continue
		}
		switch b {
		case '\t', '\n', '\v', '\f', '\r':
			continue
		}
		return false
	}
	return true
}

func isImage(mimeTypeOrExt string) bool {
	switch mimeTypeOrExt {
	case "image/jpeg", "image/jpg", "image/png", "image/tiff", "image/gif",
		".jpg", ".jpeg", ".png", ".tiff", ".tif", ".gif":
		return true
	}
	return false
}

func readDimensions(data []byte) (*Dimensions, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

func scanMaliciousContent(data []byte) []string {
	var errs []string

	sample := data
	if len(sample) > maliciousScanLen {
		sample = sample[:maliciousScanLen]
	}
	for _, pattern := range scriptPatterns {
		if pattern.Match(sample) {
			errs = append(errs, "file contains potentially malicious content")
			break
		}
	}

	for _, sig := range executableSignatures {
		if bytes.HasPrefix(data, sig) {
			errs = append(errs, "file appears to be an executable")
			break
		}
	}

	return errs
}

func formatBytes(n int64) string {
	if n == 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	value := float64(n) / math.Pow(1024, float64(i))
	return fmt.Sprintf("%s %s", strings.TrimSuffix(fmt.Sprintf("%.2f", value), ".00"), units[i])
}

func containsFold(list []string, value string) bool {
	for _, candidate := range list {
		if strings.EqualFold(candidate, value) {
			return true
		}
	}
	return false
}
