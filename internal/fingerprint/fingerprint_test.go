package fingerprint

import (
	"strings"
	"testing"

	"github.com/Yash-Prakash1/connector/internal/device"
	"github.com/Yash-Prakash1/connector/internal/model"
)

func testProfile() device.Profile {
	return device.Profile{ID: "rigol-ds1054z", Name: "Rigol DS1054Z", VendorID: "1ab1"}
}

func TestStateDeterministic(t *testing.T) {
	env := model.Environment{
		OS:              model.Linux,
		PackageVersions: map[string]string{"pyvisa": "1.14.1", "pyusb": "1.2.1"},
		USBDevices:      []string{"Bus 001 Device 004: ID 1ab1:04ce Rigol Technologies"},
		VISAResources:   []string{"USB0::0x1AB1::0x04CE::DS1ZA000000000::INSTR"},
	}
	a := State(env, testProfile())
	b := State(env, testProfile())
	if a != b {
		t.Errorf("same environment produced different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Errorf("state fingerprint length = %d, want 16", len(a))
	}
}

func TestStateIgnoresIrrelevantPackages(t *testing.T) {
	base := model.Environment{
		OS:              model.Linux,
		PackageVersions: map[string]string{"pyvisa": "1.14.1"},
	}
	withNoise := model.Environment{
		OS: model.Linux,
		PackageVersions: map[string]string{
			"pyvisa": "1.14.1",
			"numpy":  "2.1.0",
			"pandas": "2.2.3",
		},
	}
	if State(base, testProfile()) != State(withNoise, testProfile()) {
		t.Error("packages outside the allow-list changed the fingerprint")
	}
}

func TestStateSensitiveToRelevantFacts(t *testing.T) {
	base := model.Environment{
		OS:              model.Linux,
		PackageVersions: map[string]string{"pyvisa": "1.14.1"},
	}
	cases := []struct {
		name string
		env  model.Environment
	}{
		{"pyvisa version changed", model.Environment{
			OS:              model.Linux,
			PackageVersions: map[string]string{"pyvisa": "1.14.0"},
		}},
		{"pyvisa missing", model.Environment{
			OS:              model.Linux,
			PackageVersions: map[string]string{},
		}},
		{"different os", model.Environment{
			OS:              model.MacOS,
			PackageVersions: map[string]string{"pyvisa": "1.14.1"},
		}},
		{"device became visible", model.Environment{
			OS:              model.Linux,
			PackageVersions: map[string]string{"pyvisa": "1.14.1"},
			USBDevices:      []string{"ID 1ab1:04ce Rigol"},
		}},
		{"visa resources appeared", model.Environment{
			OS:              model.Linux,
			PackageVersions: map[string]string{"pyvisa": "1.14.1"},
			VISAResources:   []string{"USB0::INSTR"},
		}},
	}
	want := State(base, testProfile())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if State(tc.env, testProfile()) == want {
				t.Error("relevant fact change did not change the fingerprint")
			}
		})
	}
}

func TestStateDifferentGoals(t *testing.T) {
	env := model.Environment{OS: model.Linux}
	other := device.Profile{ID: "rigol-dg992", Name: "Rigol DG992", VendorID: "1ab1"}
	if State(env, testProfile()) == State(env, other) {
		t.Error("different goals produced the same fingerprint")
	}
}

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"paths masked",
			"No such file or directory: /usr/lib/python3.12/site-packages/pyvisa",
			"No such file or directory: <path>",
		},
		{
			"versions masked",
			"requires pyvisa 1.14.1 or newer",
			"requires pyvisa <version> or newer",
		},
		{
			"hex masked",
			"could not open device 0x1AB1",
			"could not open device <hex>",
		},
		{
			"whitespace trimmed",
			"  permission denied \n",
			"permission denied",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeError(tt.in); got != tt.want {
				t.Errorf("NormalizeError(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeErrorCapsLength(t *testing.T) {
	long := strings.Repeat("x", 500)
	if got := NormalizeError(long); len(got) != 200 {
		t.Errorf("normalized length = %d, want 200", len(got))
	}
}

func TestErrorFingerprintEquivalence(t *testing.T) {
	a := Error("cannot open /home/alice/.config/visa: permission denied")
	b := Error("cannot open /home/bob/lab/visa.cfg: permission denied")
	if a != b {
		t.Errorf("equivalent errors fingerprinted differently: %s vs %s", a, b)
	}
	if len(a) != 12 {
		t.Errorf("error fingerprint length = %d, want 12", len(a))
	}
	if a == Error("device timed out") {
		t.Error("unrelated errors share a fingerprint")
	}
}
