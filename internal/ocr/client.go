package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/citylineapps/permitflow-backend/pkg/enums"
)

const defaultExtractTimeout = 60 * time.Second

// Result is the extraction payload returned by the OCR sidecar.
type Result struct {
	Success         bool              `json:"success"`
	Text            string            `json:"text"`
	Lines           []Line            `json:"lines"`
	Metadata        ResultMetadata    `json:"metadata"`
	ExtractedFields map[string]string `json:"extracted_fields"`
	Confidence      float64           `json:"confidence"`
	ProcessingTime  float64           `json:"processing_time"`
	Error           string            `json:"error,omitempty"`
}

// Line is one recognized text line with its bounding box.
type Line struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
	Page       int     `json:"page,omitempty"`
}

// BBox is a pixel-space bounding box.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// ResultMetadata describes the processed file.
type ResultMetadata struct {
	Pages        int    `json:"pages,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
	FileType     string `json:"file_type"`
	Dimensions   *struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"dimensions,omitempty"`
}

// Client talks to the OCR extraction sidecar over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a client for the given base URL. A zero timeout falls back
// to the 60 second extraction default.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("ocr base url required")
	}
	if timeout <= 0 {
		timeout = defaultExtractTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    trimmed,
	}, nil
}

// Extract posts the document bytes as multipart form data and decodes the
// extraction result. Transport failures and non-2xx responses are returned
// as-is for the service layer to classify.
func (c *Client) Extract(ctx context.Context, payload []byte, fileName, contentType string, docType enums.DocumentType) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, fmt.Errorf("writing multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	params := url.Values{}
	params.Set("extract_fields", "true")
	params.Set("document_type", docType.String())
	endpoint := fmt.Sprintf("%s/ocr/extract?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("building extract request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ocr service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ocr service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding ocr response: %w", err)
	}
	return &result, nil
}
