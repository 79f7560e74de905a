// Package responsive resolves values that vary per device breakpoint.
//
// A responsive value is either a plain value or a map carrying the "$res"
// marker and one entry per device id. Devices are ordered from the largest
// viewport to the smallest; a device without an entry (or with the entry
// true) inherits from the next larger device.
package responsive

import (
	"fmt"
	"sort"
)

// Device is a named viewport size bucket. Breakpoint is the exclusive upper
// bound of the bucket's width; nil marks the largest device.
type Device struct {
	ID         string `json:"id" yaml:"id"`
	W          int    `json:"w" yaml:"w"`
	H          int    `json:"h" yaml:"h"`
	Breakpoint *int   `json:"breakpoint" yaml:"breakpoint"`
	Hidden     bool   `json:"hidden,omitempty" yaml:"hidden"`
	Label      string `json:"label,omitempty" yaml:"label"`
	IsMain     bool   `json:"isMain,omitempty" yaml:"isMain"`
}

// Devices is an ordered device list.
type Devices []Device

// Sorted returns a copy ordered largest to smallest. The device with a nil
// breakpoint always comes first regardless of input order.
func (d Devices) Sorted() Devices {
	out := make(Devices, len(d))
	copy(out, d)
	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := out[i].Breakpoint, out[j].Breakpoint
		if bi == nil {
			return bj != nil
		}
		if bj == nil {
			return false
		}
		return *bi > *bj
	})
	return out
}

// Index returns the position of id in the list or -1.
func (d Devices) Index(id string) int {
	for i, dev := range d {
		if dev.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the device with the given id.
func (d Devices) Find(id string) (Device, bool) {
	if i := d.Index(id); i >= 0 {
		return d[i], true
	}
	return Device{}, false
}

// Main returns the device flagged as main, falling back to the largest one.
func (d Devices) Main() Device {
	for _, dev := range d {
		if dev.IsMain {
			return dev
		}
	}
	sorted := d.Sorted()
	if len(sorted) == 0 {
		return Device{}
	}
	return sorted[0]
}

// IDs returns device ids in list order.
func (d Devices) IDs() []string {
	ids := make([]string, len(d))
	for i, dev := range d {
		ids[i] = dev.ID
	}
	return ids
}

// Validate checks that ids are unique and exactly one device has no
// breakpoint.
func (d Devices) Validate() error {
	if len(d) == 0 {
		return fmt.Errorf("device list is empty")
	}
	seen := make(map[string]bool, len(d))
	unbounded := 0
	for _, dev := range d {
		if dev.ID == "" {
			return fmt.Errorf("device without id")
		}
		if seen[dev.ID] {
			return fmt.Errorf("duplicate device %q", dev.ID)
		}
		seen[dev.ID] = true
		if dev.Breakpoint == nil {
			unbounded++
		}
	}
	if unbounded != 1 {
		return fmt.Errorf("expected exactly one device without breakpoint, got %d", unbounded)
	}
	return nil
}

func breakpoint(v int) *int {
	return &v
}

// DefaultDevices is the device set used when a project does not declare one.
func DefaultDevices() Devices {
	return Devices{
		{ID: "xs", W: 375, H: 667, Breakpoint: breakpoint(568), Label: "Mobile"},
		{ID: "sm", W: 768, H: 1024, Breakpoint: breakpoint(768), Hidden: true},
		{ID: "md", W: 920, H: 1000, Breakpoint: breakpoint(992), Label: "Tablet"},
		{ID: "lg", W: 1280, H: 768, Breakpoint: breakpoint(1280), Hidden: true},
		{ID: "xl", W: 1600, H: 900, Breakpoint: breakpoint(1600), Label: "Desktop", IsMain: true},
		{ID: "2xl", W: 1920, H: 920, Breakpoint: nil, Hidden: true},
	}
}
