package enums

import "fmt"

// PermitStatus tracks a permit through its review lifecycle.
type PermitStatus string

const (
	PermitStatusDraft       PermitStatus = "draft"
	PermitStatusSubmitted   PermitStatus = "submitted"
	PermitStatusUnderReview PermitStatus = "under_review"
	PermitStatusApproved    PermitStatus = "approved"
	PermitStatusRejected    PermitStatus = "rejected"
)

var validPermitStatuses = []PermitStatus{
	PermitStatusDraft,
	PermitStatusSubmitted,
	PermitStatusUnderReview,
	PermitStatusApproved,
	PermitStatusRejected,
}

// String returns the literal string for the status.
func (p PermitStatus) String() string {
	return string(p)
}

// IsValid reports whether the status is known.
func (p PermitStatus) IsValid() bool {
	for _, candidate := range validPermitStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePermitStatus converts raw input into a PermitStatus.
func ParsePermitStatus(value string) (PermitStatus, error) {
	for _, candidate := range validPermitStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid permit status %q", value)
}
