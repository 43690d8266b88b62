package enums

import "fmt"

// DocumentType tags an uploaded document with its role in a permit application.
type DocumentType string

const (
	DocumentTypeApplication DocumentType = "application"
	DocumentTypeSitePlan    DocumentType = "site-plan"
	DocumentTypePhoto       DocumentType = "photo"
	DocumentTypeLicense     DocumentType = "license"
	DocumentTypeInsurance   DocumentType = "insurance"
	DocumentTypeOther       DocumentType = "other"
)

var validDocumentTypes = []DocumentType{
	DocumentTypeApplication,
	DocumentTypeSitePlan,
	DocumentTypePhoto,
	DocumentTypeLicense,
	DocumentTypeInsurance,
	DocumentTypeOther,
}

// String returns the literal string for the type.
func (d DocumentType) String() string {
	return string(d)
}

// IsValid reports whether the type is known.
func (d DocumentType) IsValid() bool {
	for _, candidate := range validDocumentTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDocumentType converts raw input into a DocumentType.
func ParseDocumentType(value string) (DocumentType, error) {
	for _, candidate := range validDocumentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document type %q", value)
}
