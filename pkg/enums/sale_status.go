package enums

import "fmt"

// SaleStatus tracks the lifecycle of a persisted sale.
type SaleStatus string

const (
	SaleStatusCompleted     SaleStatus = "completed"
	SaleStatusPendingCredit SaleStatus = "pending_credit"
	SaleStatusCancelled     SaleStatus = "cancelled"
)

var validSaleStatuses = []SaleStatus{
	SaleStatusCompleted,
	SaleStatusPendingCredit,
	SaleStatusCancelled,
}

func (s SaleStatus) IsValid() bool {
	for _, candidate := range validSaleStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s SaleStatus) IsTerminal() bool {
	return s == SaleStatusCancelled
}

// ParseSaleStatus converts the raw string to SaleStatus.
func ParseSaleStatus(value string) (SaleStatus, error) {
	for _, candidate := range validSaleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale status %q", value)
}
