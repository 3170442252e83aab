package enums

import "fmt"

// EditRequestStatus tracks a price-edit request through its lifecycle.
type EditRequestStatus string

const (
	EditRequestStatusPending   EditRequestStatus = "pending"
	EditRequestStatusApproved  EditRequestStatus = "approved"
	EditRequestStatusDenied    EditRequestStatus = "denied"
	EditRequestStatusCancelled EditRequestStatus = "cancelled"
)

var validEditRequestStatuses = []EditRequestStatus{
	EditRequestStatusPending,
	EditRequestStatusApproved,
	EditRequestStatusDenied,
	EditRequestStatusCancelled,
}

func (e EditRequestStatus) IsValid() bool {
	for _, candidate := range validEditRequestStatuses {
		if candidate == e {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the request can no longer change state.
func (e EditRequestStatus) IsTerminal() bool {
	return e == EditRequestStatusApproved || e == EditRequestStatusDenied || e == EditRequestStatusCancelled
}

// ParseEditRequestStatus converts the raw string to EditRequestStatus.
func ParseEditRequestStatus(value string) (EditRequestStatus, error) {
	for _, candidate := range validEditRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid edit request status %q", value)
}
