package enums

import "fmt"

// ValidationStatus reflects the outcome of document intake and OCR checks.
type ValidationStatus string

const (
	ValidationStatusPending ValidationStatus = "pending"
	ValidationStatusValid   ValidationStatus = "valid"
	ValidationStatusWarning ValidationStatus = "warning"
	ValidationStatusInvalid ValidationStatus = "invalid"
)

var validValidationStatuses = []ValidationStatus{
	ValidationStatusPending,
	ValidationStatusValid,
	ValidationStatusWarning,
	ValidationStatusInvalid,
}

// String returns the literal string for the status.
func (v ValidationStatus) String() string {
	return string(v)
}

// IsValid reports whether the status is known.
func (v ValidationStatus) IsValid() bool {
	for _, candidate := range validValidationStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseValidationStatus converts raw input into a ValidationStatus.
func ParseValidationStatus(value string) (ValidationStatus, error) {
	for _, candidate := range validValidationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid validation status %q", value)
}
