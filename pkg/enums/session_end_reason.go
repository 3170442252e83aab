package enums

import "fmt"

// SessionEndReason records why an authorization session went inactive.
type SessionEndReason string

const (
	SessionEndReasonExpired   SessionEndReason = "expired"
	SessionEndReasonRevoked   SessionEndReason = "revoked"
	SessionEndReasonConsumed  SessionEndReason = "consumed"
	SessionEndReasonCancelled SessionEndReason = "cancelled"
	SessionEndReasonLogout    SessionEndReason = "logout"
)

var validSessionEndReasons = []SessionEndReason{
	SessionEndReasonExpired,
	SessionEndReasonRevoked,
	SessionEndReasonConsumed,
	SessionEndReasonCancelled,
	SessionEndReasonLogout,
}

func (s SessionEndReason) IsValid() bool {
	for _, candidate := range validSessionEndReasons {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSessionEndReason converts the raw string to SessionEndReason.
func ParseSessionEndReason(value string) (SessionEndReason, error) {
	for _, candidate := range validSessionEndReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session end reason %q", value)
}
