// Package fingerprint derives short deterministic keys from session starting
// conditions and from normalized error text. State fingerprints gate pattern
// replay; error fingerprints let failures match across sessions.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/Yash-Prakash1/connector/internal/device"
	"github.com/Yash-Prakash1/connector/internal/model"
)

// relevantPackages is the allow-list of package-version facts that feed the
// state fingerprint. Anything outside this list never affects it.
var relevantPackages = []string{"pyvisa", "pyvisa-py", "pyusb", "pyserial"}

const (
	stateLen = 16
	errorLen = 12

	// Error text is capped before hashing so huge tracebacks with a
	// common prefix still collapse onto one fingerprint.
	errorTextCap = 200
)

// State hashes the reproducibility-relevant starting conditions. Identical
// inputs always produce the identical fingerprint; map serialization is
// key-sorted so insertion order cannot leak in.
func State(env model.Environment, profile device.Profile) string {
	packages := make(map[string]any, len(relevantPackages))
	for _, p := range relevantPackages {
		if v, ok := env.PackageVersions[p]; ok {
			packages[p] = v
		} else {
			packages[p] = nil
		}
	}
	state := map[string]any{
		"goal":               profile.ID,
		"os":                 env.OS,
		"packages":           packages,
		"device_visible_usb": deviceVisible(env, profile),
		"visa_available":     len(env.VISAResources) > 0,
	}
	// encoding/json writes map keys in sorted order.
	serialized, _ := json.Marshal(state)
	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])[:stateLen]
}

// deviceVisible reports whether any USB device matches the profile's vendor id.
func deviceVisible(env model.Environment, profile device.Profile) bool {
	if profile.VendorID == "" {
		return false
	}
	vid := strings.ToLower(profile.VendorID)
	for _, dev := range env.USBDevices {
		if strings.Contains(strings.ToLower(dev), vid) {
			return true
		}
	}
	return false
}

var (
	pathRe    = regexp.MustCompile(`/[^\s]+`)
	versionRe = regexp.MustCompile(`\d+\.\d+\.\d+`)
	hexRe     = regexp.MustCompile(`0x[0-9a-fA-F]+`)
)

// NormalizeError strips incidental detail (filesystem paths, dotted version
// numbers, hex tokens) from failure text so equivalent failures compare equal.
func NormalizeError(text string) string {
	n := pathRe.ReplaceAllString(text, "<path>")
	n = versionRe.ReplaceAllString(n, "<version>")
	n = hexRe.ReplaceAllString(n, "<hex>")
	n = strings.TrimSpace(n)
	if len(n) > errorTextCap {
		n = n[:errorTextCap]
	}
	return n
}

// Error returns the short hash of normalized failure text.
func Error(text string) string {
	sum := sha256.Sum256([]byte(NormalizeError(text)))
	return hex.EncodeToString(sum[:])[:errorLen]
}
