package responsive

import (
	"fmt"
)

// Marker is the key that flags a map as a responsive value.
const Marker = "$res"

// MissingValueError is returned when no concrete value exists at or above
// the requested device.
type MissingValueError struct {
	DeviceID string
	Reason   string
}

func (e *MissingValueError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("responsive value missing for device %q: %s", e.DeviceID, e.Reason)
	}
	return fmt.Sprintf("responsive value missing for device %q", e.DeviceID)
}

// IsTrulyResponsive reports whether v is a per-device map.
func IsTrulyResponsive(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	marker, ok := m[Marker].(bool)
	return ok && marker
}

// New builds a responsive value from per-device entries.
func New(entries map[string]any) map[string]any {
	out := make(map[string]any, len(entries)+1)
	for k, v := range entries {
		out[k] = v
	}
	out[Marker] = true
	return out
}

func isInheritMarker(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// Resolve returns the concrete value of v for deviceID. Plain values are
// returned unchanged. devices may be given in any order.
func Resolve(v any, deviceID string, devices Devices) (any, error) {
	if !IsTrulyResponsive(v) {
		return v, nil
	}
	return resolveSorted(v.(map[string]any), deviceID, devices.Sorted())
}

func resolveSorted(m map[string]any, deviceID string, sorted Devices) (any, error) {
	idx := sorted.Index(deviceID)
	if idx < 0 {
		return nil, &MissingValueError{DeviceID: deviceID, Reason: "unknown device"}
	}

	// Walk from the target device towards the largest one.
	for i := idx; i >= 0; i-- {
		entry, ok := m[sorted[i].ID]
		if !ok || isInheritMarker(entry) {
			continue
		}
		return entry, nil
	}
	return nil, &MissingValueError{DeviceID: deviceID, Reason: "no value defined up to the largest device"}
}

// ForceGet resolves v and returns nil instead of an error.
func ForceGet(v any, deviceID string, devices Devices) any {
	out, err := Resolve(v, deviceID, devices)
	if err != nil {
		return nil
	}
	return out
}

// Normalize returns a responsive value with an explicit entry for every
// device. A plain value is spread across all devices.
func Normalize(v any, devices Devices) (map[string]any, error) {
	sorted := devices.Sorted()
	out := map[string]any{Marker: true}
	for _, dev := range sorted {
		if !IsTrulyResponsive(v) {
			out[dev.ID] = v
			continue
		}
		resolved, err := resolveSorted(v.(map[string]any), dev.ID, sorted)
		if err != nil {
			return nil, err
		}
		out[dev.ID] = resolved
	}
	return out, nil
}

// Map applies fn to the plain value or to every concrete per-device entry.
// Inherit markers are kept as they are.
func Map(v any, fn func(value any, deviceID string) (any, error)) (any, error) {
	if !IsTrulyResponsive(v) {
		return fn(v, "")
	}
	m := v.(map[string]any)
	out := make(map[string]any, len(m))
	for k, entry := range m {
		if k == Marker || isInheritMarker(entry) {
			out[k] = entry
			continue
		}
		mapped, err := fn(entry, k)
		if err != nil {
			return nil, err
		}
		out[k] = mapped
	}
	return out, nil
}

// FindDeviceWithDefinedValue returns the device whose entry provides the
// value seen at deviceID.
func FindDeviceWithDefinedValue(v any, deviceID string, devices Devices) (Device, bool) {
	sorted := devices.Sorted()
	idx := sorted.Index(deviceID)
	if idx < 0 {
		return Device{}, false
	}
	if !IsTrulyResponsive(v) {
		return sorted[idx], true
	}
	m := v.(map[string]any)
	for i := idx; i >= 0; i-- {
		entry, ok := m[sorted[i].ID]
		if ok && !isInheritMarker(entry) {
			return sorted[i], true
		}
	}
	return Device{}, false
}
