// Package analyze turns a completed session's raw step log into shareable
// learning data: a normalized resolution pattern, error→resolution
// associations, and error→error sequences.
package analyze

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Yash-Prakash1/connector/internal/fingerprint"
	"github.com/Yash-Prakash1/connector/internal/model"
)

// Context carries the session facts the analyzer attaches to its output.
type Context struct {
	Goal        string
	OS          model.OS
	OSVersion   string
	Fingerprint string
	Outcome     string // "success" or "failed"
	Packages    map[string]string
}

// Session analyzes a completed session's ordered steps. Pure function over
// the step list; Steps are read-only here.
func Session(steps []model.Step, c Context) model.SessionAnalysis {
	analysis := model.SessionAnalysis{
		ErrorResolutions: extractResolutions(steps),
		ErrorSequences:   extractSequences(steps),
	}

	normalized := NormalizeSteps(steps)
	if c.Goal != "" && c.OS != "" && len(normalized) > 0 {
		analysis.Pattern = &model.ResolutionPattern{
			Goal:        c.Goal,
			OS:          c.OS,
			OSVersion:   c.OSVersion,
			Fingerprint: c.Fingerprint,
			Steps:       normalized,
			Outcome:     c.Outcome,
		}
	}

	if c.Outcome == "success" && c.Goal != "" && len(c.Packages) > 0 {
		analysis.WorkingConfig = &model.WorkingConfig{
			Goal:     c.Goal,
			OS:       c.OS,
			Packages: c.Packages,
		}
	}

	return analysis
}

// NormalizeSteps maps raw steps to abstract normalized steps, dropping
// anything that is not part of a reproducible recipe.
func NormalizeSteps(steps []model.Step) []model.NormalizedStep {
	var out []model.NormalizedStep
	for _, st := range steps {
		if ns := NormalizeCall(st.Call); ns != nil {
			out = append(out, *ns)
		}
	}
	return out
}

// NormalizeCall maps one action call to zero or one normalized step.
// Diagnostic-only and terminal actions are always dropped.
func NormalizeCall(call model.ActionCall) *model.NormalizedStep {
	switch call.Name {
	case model.ActionPipInstall:
		packages := call.StringSliceParam("packages")
		if len(packages) == 0 {
			return nil
		}
		return &model.NormalizedStep{
			Action: model.StepPipInstall,
			Detail: map[string]any{"packages": sortedCopy(packages)},
		}
	case model.ActionBash:
		return normalizeCommand(call.StringParam("command"))
	case model.ActionRunPython:
		return normalizePython(call.StringParam("code"))
	case model.ActionCheckDevice:
		return verifyStep("device_check")
	case model.ActionListVISA:
		return verifyStep("visa_list")
	case model.ActionListUSB:
		return verifyStep("usb_list")
	}
	// check_installed is diagnostic; complete/give_up are terminal;
	// everything unrecognized is not reproducible.
	return nil
}

var (
	pipInstallRe  = regexp.MustCompile(`^\s*pip\s+install\s+(.+)`)
	aptInstallRe  = regexp.MustCompile(`apt\s+(install|get\s+install)`)
	brewInstallRe = regexp.MustCompile(`brew\s+install`)
)

// normalizeCommand pattern-matches a shell command against a small ordered
// set of recognizers, falling back to "not reproducible".
func normalizeCommand(command string) *model.NormalizedStep {
	if m := pipInstallRe.FindStringSubmatch(command); m != nil {
		var packages []string
		for _, field := range strings.Fields(m[1]) {
			if !strings.HasPrefix(field, "-") {
				packages = append(packages, field)
			}
		}
		if len(packages) == 0 {
			return nil
		}
		return &model.NormalizedStep{
			Action: model.StepPipInstall,
			Detail: map[string]any{"packages": sortedCopy(packages)},
		}
	}

	if aptInstallRe.MatchString(command) {
		return systemInstallStep(command, "apt_package")
	}
	if brewInstallRe.MatchString(command) {
		return systemInstallStep(command, "brew_package")
	}

	if strings.Contains(command, "udev") {
		pattern := "udev_rule"
		if strings.Contains(command, "udevadm") {
			pattern = "udev_reload"
		}
		return &model.NormalizedStep{
			Action: model.StepPermissionFix,
			Detail: map[string]any{"pattern": pattern},
		}
	}
	if strings.Contains(command, "usermod") || strings.Contains(command, "dialout") {
		return &model.NormalizedStep{
			Action: model.StepPermissionFix,
			Detail: map[string]any{"pattern": "dialout_group"},
		}
	}

	if strings.HasPrefix(strings.TrimSpace(command), "lsusb") {
		return verifyStep("usb_list")
	}

	return nil
}

func systemInstallStep(command, fallback string) *model.NormalizedStep {
	target := fallback
	if strings.Contains(command, "libusb") {
		target = "libusb"
	}
	return &model.NormalizedStep{
		Action: model.StepSystemInstall,
		Detail: map[string]any{"target": target},
	}
}

// normalizePython recognizes the verification queries the oracle issues as
// inline Python.
func normalizePython(code string) *model.NormalizedStep {
	if strings.Contains(code, "*IDN?") || strings.Contains(strings.ToLower(code), "idn") {
		return verifyStep("idn_query")
	}
	if strings.Contains(code, "list_resources") {
		return verifyStep("visa_list")
	}
	if strings.Contains(code, "import pyvisa") {
		return verifyStep("visa_check")
	}
	return nil
}

func verifyStep(pattern string) *model.NormalizedStep {
	return &model.NormalizedStep{
		Action: model.StepVerify,
		Detail: map[string]any{"pattern": pattern},
	}
}

// extractResolutions finds error→resolution pairs: whenever a failing run is
// ended by a success, the last failure in the run is associated with the
// succeeding step's action. One record per run, not per failure.
func extractResolutions(steps []model.Step) []model.ErrorResolution {
	var resolutions []model.ErrorResolution
	var failed []model.Step

	for _, st := range steps {
		if !st.Result.Success {
			failed = append(failed, st)
			continue
		}
		if len(failed) > 0 {
			last := failed[len(failed)-1]
			errText := last.Result.ErrorText()
			if errText == "" {
				errText = "Unknown error"
			}
			resolutions = append(resolutions, model.ErrorResolution{
				ErrorFingerprint: fingerprint.Error(errText),
				Category:         CategorizeError(errText),
				Explanation:      truncate(errText, 200),
				Action:           st.Call.Name,
				Detail:           st.Call.Params,
			})
			failed = failed[:0]
		}
	}
	return resolutions
}

// extractSequences records a pair whenever a failure is followed by a
// different failure after an intervening success. Consecutive failures
// without a success between them do not pair.
func extractSequences(steps []model.Step) []model.ErrorSequence {
	var sequences []model.ErrorSequence
	var prevFP string
	resolvedLast := false

	for _, st := range steps {
		if st.Result.Success {
			resolvedLast = true
			continue
		}
		fp := fingerprint.Error(st.Result.ErrorText())
		if resolvedLast && prevFP != "" && fp != prevFP {
			sequences = append(sequences, model.ErrorSequence{
				ErrorFingerprint:     prevFP,
				NextErrorFingerprint: fp,
			})
		}
		prevFP = fp
		resolvedLast = false
	}
	return sequences
}

// CategorizeError buckets failure text into a broad error category.
func CategorizeError(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "permission") || strings.Contains(lower, "errno 13"):
		return "permissions"
	case strings.Contains(lower, "not found") || strings.Contains(lower, "no such"):
		return "not_found"
	case strings.Contains(lower, "timeout"):
		return "timeout"
	case strings.Contains(lower, "no backend") || strings.Contains(lower, "no module"):
		return "backend"
	case strings.Contains(lower, "driver"):
		return "driver"
	case strings.Contains(lower, "busy") || strings.Contains(lower, "in use"):
		return "resource_busy"
	}
	return "unknown"
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
