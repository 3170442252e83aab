package enums

import "fmt"

// VendorRole gates which authorization path applies to a vendor identity.
type VendorRole string

const (
	VendorRoleSupervisor VendorRole = "supervisor"
	VendorRoleVendor     VendorRole = "vendor"
)

var validVendorRoles = []VendorRole{
	VendorRoleSupervisor,
	VendorRoleVendor,
}

func (v VendorRole) IsValid() bool {
	for _, candidate := range validVendorRoles {
		if candidate == v {
			return true
		}
	}
	return false
}

// IsPrivileged reports whether the role may self-grant price edits.
func (v VendorRole) IsPrivileged() bool {
	return v == VendorRoleSupervisor
}

// ParseVendorRole converts the raw string to VendorRole.
func ParseVendorRole(value string) (VendorRole, error) {
	for _, candidate := range validVendorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vendor role %q", value)
}
