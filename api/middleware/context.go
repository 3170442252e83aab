package middleware

import "context"

type contextKey string

const (
	ctxVendorID   contextKey = "vendor_id"
	ctxVendorName contextKey = "vendor_name"
	ctxRole       contextKey = "vendor_role"
	ctxTabID      contextKey = "tab_id"
	ctxDeviceID   contextKey = "device_id"
	ctxProfile    contextKey = "device_profile"
)

func VendorIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxVendorID)
}

func VendorNameFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxVendorName)
}

func RoleFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxRole)
}

func TabIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxTabID)
}

func DeviceIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxDeviceID)
}

func DeviceProfileFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxProfile)
}

// WithVendorID injects the vendor identifier into the context.
func WithVendorID(ctx context.Context, vendorID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxVendorID, vendorID)
}

// WithClientContext seeds tab and device identity, used by tests.
func WithClientContext(ctx context.Context, tabID, deviceID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxTabID, tabID)
	return context.WithValue(ctx, ctxDeviceID, deviceID)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
