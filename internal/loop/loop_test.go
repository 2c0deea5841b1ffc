package loop

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Yash-Prakash1/connector/internal/model"
)

func failingCall() (model.ActionCall, model.ActionResult) {
	call := model.ActionCall{Name: model.ActionBash, Params: map[string]any{"command": "lsusb"}}
	result := model.ActionResult{Success: false, Stderr: "lsusb: command not found"}
	return call, result
}

func TestRepeatedFailureFlagsLoop(t *testing.T) {
	d := New(0, 0)
	call, result := failingCall()

	if w := d.Check(call, result); w.IsLoop {
		t.Error("first failure flagged as a loop")
	}
	if w := d.Check(call, result); !w.IsLoop {
		t.Error("repeat failure at the threshold not flagged")
	}
}

func TestSuccessNeverTracked(t *testing.T) {
	d := New(0, 0)
	call := model.ActionCall{Name: model.ActionCheckDevice}
	ok := model.ActionResult{Success: true}

	for i := 0; i < 10; i++ {
		if w := d.Check(call, ok); w.IsLoop {
			t.Fatal("successful result flagged as a loop")
		}
	}
}

func TestDifferentErrorsDistinct(t *testing.T) {
	d := New(0, 0)
	call, _ := failingCall()

	d.Check(call, model.ActionResult{Success: false, Stderr: "permission denied"})
	if w := d.Check(call, model.ActionResult{Success: false, Stderr: "device timed out"}); w.IsLoop {
		t.Error("different errors for the same action counted together")
	}
}

func TestDifferentParamsDistinct(t *testing.T) {
	d := New(0, 0)
	result := model.ActionResult{Success: false, Stderr: "command not found"}

	a := model.ActionCall{Name: model.ActionBash, Params: map[string]any{"command": "lsusb"}}
	b := model.ActionCall{Name: model.ActionBash, Params: map[string]any{"command": "dmesg"}}
	d.Check(a, result)
	if w := d.Check(b, result); w.IsLoop {
		t.Error("different commands counted together")
	}
}

func TestEquivalentErrorsCountTogether(t *testing.T) {
	d := New(0, 0)
	call := model.ActionCall{Name: model.ActionRunPython, Params: map[string]any{"code": "import pyvisa"}}

	// Differ only in a path, which error normalization masks.
	d.Check(call, model.ActionResult{Success: false, Stderr: "cannot open /home/alice/visa.cfg"})
	if w := d.Check(call, model.ActionResult{Success: false, Stderr: "cannot open /home/bob/visa.cfg"}); !w.IsLoop {
		t.Error("normalization-equivalent errors not counted together")
	}
}

func TestSuccessDoesNotResetCounter(t *testing.T) {
	d := New(0, 0)
	call, result := failingCall()

	d.Check(call, result)
	d.Check(call, model.ActionResult{Success: true})
	if w := d.Check(call, result); !w.IsLoop {
		t.Error("intervening success reset the failure counter")
	}
}

func TestCountsNeverReset(t *testing.T) {
	d := New(0, 0)
	call, result := failingCall()

	d.Check(call, result)
	d.Check(call, result)

	// Interleave unrelated keys past the history window.
	for i := 0; i < DefaultHistorySize+5; i++ {
		other := model.ActionCall{Name: model.ActionBash, Params: map[string]any{"command": fmt.Sprintf("cmd-%d", i)}}
		d.Check(other, model.ActionResult{Success: false, Stderr: "other error"})
	}

	if w := d.Check(call, result); !w.IsLoop {
		t.Error("loop state lost after intervening failures")
	}
}

func TestCustomThreshold(t *testing.T) {
	d := New(4, 0)
	call, result := failingCall()

	for i := 0; i < 3; i++ {
		if w := d.Check(call, result); w.IsLoop {
			t.Fatalf("flagged after %d failures with threshold 4", i+1)
		}
	}
	if w := d.Check(call, result); !w.IsLoop {
		t.Error("not flagged at the custom threshold")
	}
}

func TestBreakerMessageMentionsGiveUp(t *testing.T) {
	d := New(0, 0)
	msg := d.BreakerMessage()
	if msg == "" {
		t.Fatal("empty breaker message")
	}
	for _, want := range []string{"different approach", "give_up"} {
		if !strings.Contains(msg, want) {
			t.Errorf("breaker message missing %q", want)
		}
	}
}
