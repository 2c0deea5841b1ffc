// Package device holds the profiles of supported instruments: the USB vendor
// facts, required packages, and OS-specific permission hints that fingerprinting
// and replay expansion need.
package device

import (
	"sort"

	"github.com/Yash-Prakash1/connector/internal/model"
)

// PermissionHints are the OS-specific commands and files used to fix device
// access permissions during replay expansion.
type PermissionHints struct {
	UdevRule   string `json:"udev_rule,omitempty"`
	UdevFile   string `json:"udev_file,omitempty"`
	UdevReload string `json:"udev_reload,omitempty"`
	Group      string `json:"group,omitempty"`
}

// Profile describes one supported device type (the connection goal).
type Profile struct {
	ID               string                       `json:"id"`
	Name             string                       `json:"name"`
	VendorID         string                       `json:"vendor_id,omitempty"`
	RequiredPackages []string                     `json:"required_packages,omitempty"`
	Permissions      map[model.OS]PermissionHints `json:"permissions,omitempty"`
}

// Registry maps goal identifiers to device profiles. It is built once at
// startup and passed by reference to whatever needs it.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]Profile)}
}

// Register adds or replaces a profile.
func (r *Registry) Register(p Profile) {
	r.profiles[p.ID] = p
}

// Lookup returns the profile for a goal id. Unknown ids get a generic
// profile with the requested id, so a session can always start.
func (r *Registry) Lookup(id string) Profile {
	if p, ok := r.profiles[id]; ok {
		return p
	}
	return Profile{
		ID:               id,
		Name:             id,
		RequiredPackages: []string{"pyvisa", "pyvisa-py"},
	}
}

// IDs returns the registered goal ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Default returns the registry of built-in device profiles.
func Default() *Registry {
	r := NewRegistry()

	rigolLinux := PermissionHints{
		UdevRule:   `SUBSYSTEM=="usb", ATTRS{idVendor}=="1ab1", MODE="0666"`,
		UdevFile:   "/etc/udev/rules.d/99-rigol.rules",
		UdevReload: "sudo udevadm control --reload-rules && sudo udevadm trigger",
		Group:      "dialout",
	}
	for _, p := range []Profile{
		{ID: "rigol_ds1054z", Name: "Rigol DS1054Z Oscilloscope", VendorID: "1ab1"},
		{ID: "rigol_dp832", Name: "Rigol DP832 Power Supply", VendorID: "1ab1"},
		{ID: "rigol_dl3021", Name: "Rigol DL3021 Electronic Load", VendorID: "1ab1"},
		{ID: "rigol_m300", Name: "Rigol M300 Data Acquisition", VendorID: "1ab1"},
	} {
		p.RequiredPackages = []string{"pyvisa", "pyvisa-py", "pyusb"}
		p.Permissions = map[model.OS]PermissionHints{model.Linux: rigolLinux}
		r.Register(p)
	}

	return r
}
