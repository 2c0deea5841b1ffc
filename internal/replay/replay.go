// Package replay executes a proven resolution pattern directly, bypassing
// the decision oracle. A candidate is only trusted after its end state is
// re-verified, so fingerprint collisions degrade precision, not correctness.
package replay

import (
	"context"
	"fmt"
	"strings"

	"github.com/Yash-Prakash1/connector/internal/device"
	"github.com/Yash-Prakash1/connector/internal/model"
	"github.com/Yash-Prakash1/connector/internal/store"
)

const (
	// ConfidenceThreshold is the minimum attempt count before a pattern
	// is eligible for replay.
	ConfidenceThreshold = 5

	// SuccessRateThreshold is the minimum success rate for replay.
	SuccessRateThreshold = 0.9
)

// Executor runs one concrete action.
type Executor interface {
	Execute(ctx context.Context, call model.ActionCall) model.ActionResult
}

// Verifier checks whether the connection goal is actually met.
type Verifier interface {
	Verify(ctx context.Context) (bool, string)
}

// ConfirmFunc gates a side-effecting step; returning false declines it.
type ConfirmFunc func(prompt string) bool

// Result reports how a replay went. FailedAtStep is -1 when no step failed.
type Result struct {
	Success       bool
	StepsExecuted int
	FailedAtStep  int
	Err           string
}

// FindCandidate returns the first cached pattern whose statistics clear both
// thresholds and whose fingerprint is either wildcard or exactly the current
// one. Patterns arrive confidence-ordered from the store. Returns nil when
// nothing qualifies.
func FindCandidate(ctx context.Context, st store.Store, goal string, os model.OS, fp string) (*model.ResolutionPattern, error) {
	patterns, err := st.CachedPatterns(ctx, goal, os)
	if err != nil {
		return nil, fmt.Errorf("load cached patterns: %w", err)
	}
	for i := range patterns {
		p := &patterns[i]
		if p.Stats.TotalCount < ConfidenceThreshold {
			continue
		}
		if p.Stats.SuccessRate < SuccessRateThreshold {
			continue
		}
		if p.Fingerprint != "" && p.Fingerprint != fp {
			continue
		}
		return p, nil
	}
	return nil, nil
}

// Execute runs a pattern step by step. Steps that cannot be expanded for the
// current OS are skipped, not failed. A declined confirmation or a failing
// step aborts replay immediately; side effects of earlier steps stay in
// place. The verifier's verdict after the final step is the outcome.
func Execute(ctx context.Context, pattern model.ResolutionPattern, profile device.Profile, os model.OS, exec Executor, verifier Verifier, confirm ConfirmFunc) Result {
	steps := pattern.Steps
	if len(steps) == 0 {
		return Result{StepsExecuted: 0, FailedAtStep: 0, Err: "no steps in pattern"}
	}

	for i, step := range steps {
		call := ExpandStep(step, profile, os)
		if call == nil {
			continue
		}

		desc := fmt.Sprintf("Replay step %d/%d: %s", i+1, len(steps), call.Name)
		if summary := summarizeCall(*call); summary != "" {
			desc += " (" + summary + ")"
		}
		if !confirm(desc) {
			return Result{StepsExecuted: i, FailedAtStep: i, Err: "user declined step"}
		}

		result := exec.Execute(ctx, *call)
		if !result.Success {
			return Result{StepsExecuted: i + 1, FailedAtStep: i, Err: result.ErrorText()}
		}
	}

	// Step success is necessary but not sufficient; the pattern is judged
	// on end state.
	ok, message := verifier.Verify(ctx)
	if !ok {
		return Result{StepsExecuted: len(steps), FailedAtStep: len(steps), Err: message}
	}
	return Result{Success: true, StepsExecuted: len(steps), FailedAtStep: -1}
}

// ExpandStep converts a normalized step back into a concrete action call for
// the current OS, or nil when no expansion exists.
func ExpandStep(step model.NormalizedStep, profile device.Profile, os model.OS) *model.ActionCall {
	switch step.Action {
	case model.StepPipInstall:
		packages := detailStrings(step.Detail, "packages")
		if len(packages) == 0 {
			return nil
		}
		return replayCall(model.ActionPipInstall, map[string]any{"packages": packages})

	case model.StepSystemInstall:
		target, _ := step.Detail["target"].(string)
		command := systemInstallCommand(target, os)
		if command == "" {
			return nil
		}
		return replayCall(model.ActionBash, map[string]any{"command": command})

	case model.StepPermissionFix:
		return expandPermissionFix(step, profile, os)

	case model.StepVerify:
		switch step.Detail["pattern"] {
		case "idn_query", "device_check":
			return replayCall(model.ActionCheckDevice, nil)
		case "visa_list":
			return replayCall(model.ActionListVISA, nil)
		case "usb_list":
			return replayCall(model.ActionListUSB, nil)
		}
	}
	return nil
}

func expandPermissionFix(step model.NormalizedStep, profile device.Profile, os model.OS) *model.ActionCall {
	hints := profile.Permissions[os]
	switch step.Detail["pattern"] {
	case "udev_rule":
		if hints.UdevRule == "" {
			return nil
		}
		file := hints.UdevFile
		if file == "" {
			file = "/etc/udev/rules.d/99-instrument.rules"
		}
		command := fmt.Sprintf("echo '%s' | sudo tee %s", hints.UdevRule, file)
		return replayCall(model.ActionBash, map[string]any{"command": command})
	case "udev_reload":
		reload := hints.UdevReload
		if reload == "" {
			reload = "sudo udevadm control --reload-rules && sudo udevadm trigger"
		}
		return replayCall(model.ActionBash, map[string]any{"command": reload})
	}
	return nil
}

// systemInstallCommand maps an abstract install target to an OS-specific command.
func systemInstallCommand(target string, os model.OS) string {
	if target != "libusb" {
		return ""
	}
	switch os {
	case model.Linux:
		return "sudo apt install -y libusb-1.0-0-dev"
	case model.MacOS:
		return "brew install libusb"
	}
	return ""
}

func replayCall(name string, params map[string]any) *model.ActionCall {
	return &model.ActionCall{ID: "replay_" + name, Name: name, Params: params}
}

// summarizeCall renders a short parameter summary for confirmation prompts.
func summarizeCall(call model.ActionCall) string {
	switch call.Name {
	case model.ActionPipInstall:
		return strings.Join(call.StringSliceParam("packages"), ", ")
	case model.ActionBash:
		cmd := call.StringParam("command")
		if len(cmd) > 60 {
			return cmd[:60] + "..."
		}
		return cmd
	}
	return ""
}

func detailStrings(detail map[string]any, key string) []string {
	switch v := detail[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
