package enums

import "fmt"

// DeviceProfile bounds how many carts a vendor device may hold open.
type DeviceProfile string

const (
	DeviceProfileCompact DeviceProfile = "compact"
	DeviceProfileFull    DeviceProfile = "full"
)

var validDeviceProfiles = []DeviceProfile{
	DeviceProfileCompact,
	DeviceProfileFull,
}

func (d DeviceProfile) IsValid() bool {
	for _, candidate := range validDeviceProfiles {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeviceProfile converts the raw string to DeviceProfile.
func ParseDeviceProfile(value string) (DeviceProfile, error) {
	for _, candidate := range validDeviceProfiles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid device profile %q", value)
}
