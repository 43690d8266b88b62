package gcs

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	uploadEndpoint = "https://storage.googleapis.com/upload/storage/v1/b/%s/o?uploadType=media&name=%s"
	objectEndpoint = "https://storage.googleapis.com/storage/v1/b/%s/o/%s"
	signedURLHost  = "https://storage.googleapis.com"
)

// ErrObjectNotFound is returned when the requested object does not exist.
var ErrObjectNotFound = errors.New("gcs: object not found")

// Upload streams the payload into the bucket under the given key. The key is
// used verbatim, so callers are responsible for prefixing.
func (c *Client) Upload(ctx context.Context, key, contentType string, payload io.Reader) error {
	b, err := c.bucketFor(key)
	if err != nil {
		return err
	}

	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return err
	}

	u := fmt.Sprintf(uploadEndpoint, url.PathEscape(b), url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError("upload", key, resp)
	}
	return nil
}

// NewReader opens a streaming reader over the object media. The caller must
// close the returned reader.
func (c *Client) NewReader(ctx context.Context, key string) (io.ReadCloser, error) {
	b, err := c.bucketFor(key)
	if err != nil {
		return nil, err
	}

	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf(objectEndpoint, url.PathEscape(b), url.PathEscape(key)) + "?alt=media"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, ErrObjectNotFound
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, statusError("read", key, resp)
	}
	return resp.Body, nil
}

// Download buffers the whole object into memory. Use NewReader for large
// objects.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	r, err := c.NewReader(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

// Delete removes the object. Deleting a missing object returns
// ErrObjectNotFound so callers can treat it as already gone.
func (c *Client) Delete(ctx context.Context, key string) error {
	b, err := c.bucketFor(key)
	if err != nil {
		return err
	}

	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return err
	}

	u := fmt.Sprintf(objectEndpoint, url.PathEscape(b), url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrObjectNotFound
	default:
		return statusError("delete", key, resp)
	}
}

// SignedURL mints a V2-signed URL for the object, valid for the given TTL.
// method is typically GET for downloads or PUT for browser uploads. Requires
// service account credentials; metadata-token deployments get an error.
func (c *Client) SignedURL(key, method string, ttl time.Duration) (string, error) {
	if c == nil || c.signer == nil {
		return "", errors.New("gcs: signed URLs require service account credentials")
	}
	b, err := c.bucketFor(key)
	if err != nil {
		return "", err
	}
	if method == "" {
		method = http.MethodGet
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	expires := time.Now().Add(ttl).Unix()
	resource := "/" + b + "/" + key
	toSign := strings.Join([]string{method, "", "", strconv.FormatInt(expires, 10), resource}, "\n")

	hash := sha256.Sum256([]byte(toSign))
	sig, err := rsa.SignPKCS1v15(rand.Reader, c.signer.key, crypto.SHA256, hash[:])
	if err != nil {
		return "", fmt.Errorf("signing url: %w", err)
	}

	q := url.Values{}
	q.Set("GoogleAccessId", c.signer.email)
	q.Set("Expires", strconv.FormatInt(expires, 10))
	q.Set("Signature", base64.StdEncoding.EncodeToString(sig))

	escaped := strings.ReplaceAll(url.PathEscape(key), "%2F", "/")
	return signedURLHost + "/" + url.PathEscape(b) + "/" + escaped + "?" + q.Encode(), nil
}

func (c *Client) bucketFor(key string) (string, error) {
	if c == nil {
		return "", errors.New("gcs client not initialized")
	}
	if key == "" {
		return "", errors.New("gcs: object key is required")
	}
	if c.defaultBucket == "" {
		return "", errors.New("gcs bucket not configured")
	}
	return c.defaultBucket, nil
}

func statusError(op, key string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if len(b) > 0 {
		return fmt.Errorf("gcs %s %q failed: %s: %s", op, key, resp.Status, strings.TrimSpace(string(b)))
	}
	return fmt.Errorf("gcs %s %q failed: %s", op, key, resp.Status)
}
