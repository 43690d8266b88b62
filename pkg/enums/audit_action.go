package enums

// AuditAction names an auditable operation on a document.
type AuditAction string

const (
	AuditActionDocumentUpload   AuditAction = "document.upload"
	AuditActionDocumentDownload AuditAction = "document.download"
	AuditActionDocumentDelete   AuditAction = "document.delete"
	AuditActionOCRProcess       AuditAction = "ocr.process"
	AuditActionOCRProcessFailed AuditAction = "ocr.process_failed"
)

// String returns the literal string for the action.
func (a AuditAction) String() string {
	return string(a)
}

// IsValid reports whether the action is known.
func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionDocumentUpload, AuditActionDocumentDownload, AuditActionDocumentDelete,
		AuditActionOCRProcess, AuditActionOCRProcessFailed:
		return true
	}
	return false
}
