package notifications

import "context"

// NoDevicePlatform is the server-side platform: there is no device attached,
// so registration degrades to nothing and devices submit their Expo tokens
// through the push-token endpoint instead.
type NoDevicePlatform struct{}

func (NoDevicePlatform) IsPhysicalDevice() bool { return false }

func (NoDevicePlatform) Permissions(context.Context) (PermissionStatus, error) {
	return PermissionUndetermined, nil
}

func (NoDevicePlatform) RequestPermissions(context.Context) (PermissionStatus, error) {
	return PermissionDenied, nil
}

func (NoDevicePlatform) PushToken(context.Context) (string, error) { return "", nil }

func (NoDevicePlatform) SetupChannel(context.Context, Channel) error { return nil }
