package documents

import (
	"github.com/citylineapps/permitflow-backend/pkg/enums"
)

// Dimensions holds pixel bounds for image checks.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RuleSet describes the validation constraints applied to an upload.
type RuleSet struct {
	MaxSize           int64
	AllowedMimeTypes  []string
	AllowedExtensions []string
	MinDimensions     *Dimensions
	MaxDimensions     *Dimensions
}

var defaultRules = RuleSet{
	MaxSize: 50 * 1024 * 1024,
	AllowedMimeTypes: []string{
		"application/pdf",
		"image/jpeg",
		"image/jpg",
		"image/png",
		"image/tiff",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/plain",
		"application/dwg",
		"image/vnd.dwg",
	},
	AllowedExtensions: []string{
		".pdf", ".jpg", ".jpeg", ".png", ".tiff", ".tif",
		".xls", ".xlsx", ".doc", ".docx", ".txt", ".dwg",
	},
}

// typeRules override the defaults field-by-field; unset fields inherit.
var typeRules = map[enums.DocumentType]RuleSet{
	enums.DocumentTypeSitePlan: {
		MaxSize:           100 * 1024 * 1024,
		AllowedMimeTypes:  []string{"application/pdf", "image/jpeg", "image/png", "application/dwg"},
		AllowedExtensions: []string{".pdf", ".jpg", ".jpeg", ".png", ".dwg"},
	},
	enums.DocumentTypePhoto: {
		MaxSize:           10 * 1024 * 1024,
		AllowedMimeTypes:  []string{"image/jpeg", "image/jpg", "image/png"},
		AllowedExtensions: []string{".jpg", ".jpeg", ".png"},
		MinDimensions:     &Dimensions{Width: 800, Height: 600},
		MaxDimensions:     &Dimensions{Width: 8000, Height: 8000},
	},
	enums.DocumentTypeLicense: {
		MaxSize:           5 * 1024 * 1024,
		AllowedMimeTypes:  []string{"application/pdf", "image/jpeg", "image/png"},
		AllowedExtensions: []string{".pdf", ".jpg", ".jpeg", ".png"},
	},
	enums.DocumentTypeInsurance: {
		MaxSize:           10 * 1024 * 1024,
		AllowedMimeTypes:  []string{"application/pdf"},
		AllowedExtensions: []string{".pdf"},
	},
}

// RulesFor resolves the effective rule set for a document type.
func RulesFor(docType enums.DocumentType) RuleSet {
	rules := defaultRules
	override, ok := typeRules[docType]
	if !ok {
		return rules
	}
	if override.MaxSize > 0 {
		rules.MaxSize = override.MaxSize
	}
	if len(override.AllowedMimeTypes) > 0 {
		rules.AllowedMimeTypes = override.AllowedMimeTypes
	}
	if len(override.AllowedExtensions) > 0 {
		rules.AllowedExtensions = override.AllowedExtensions
	}
	if override.MinDimensions != nil {
		rules.MinDimensions = override.MinDimensions
	}
	if override.MaxDimensions != nil {
		rules.MaxDimensions = override.MaxDimensions
	}
	return rules
}
