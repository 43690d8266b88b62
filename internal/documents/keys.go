package documents

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OwnerRef identifies which namespace a document belongs to. PermitID wins
// over ProjectID; when neither is set the key falls back to the uploader.
type OwnerRef struct {
	PermitID  *uuid.UUID
	ProjectID *uuid.UUID
	UserID    uuid.UUID
}

// Prefix returns the storage namespace for the owner.
func (o OwnerRef) Prefix() string {
	switch {
	case o.PermitID != nil:
		return fmt.Sprintf("permits/%s/documents", o.PermitID)
	case o.ProjectID != nil:
		return fmt.Sprintf("projects/%s/documents", o.ProjectID)
	default:
		return fmt.Sprintf("users/%s/documents", o.UserID)
	}
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9-_]`)

// BuildStorageKey produces a collision-resistant object key:
// <prefix>/<unix-ms>-<16 hex chars>-<sanitized-name><ext>.
func BuildStorageKey(prefix, fileName string) string {
	timestamp := time.Now().UnixMilli()

	randomBytes := make([]byte, 8)
	_, _ = rand.Read(randomBytes)
	random := hex.EncodeToString(randomBytes)

	ext := strings.ToLower(path.Ext(fileName))
	name := strings.TrimSuffix(path.Base(fileName), path.Ext(fileName))
	sanitized := unsafeNameChars.ReplaceAllString(name, "_")

	return fmt.Sprintf("%s/%d-%s-%s%s", prefix, timestamp, random, sanitized, ext)
}
