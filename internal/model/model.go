// Package model defines core types for connector: actions (single tool calls),
// steps (executed actions within a session), and learned resolution patterns.
package model

import (
	"time"
)

// OS identifies the host operating system family.
type OS string

const (
	Linux   OS = "linux"
	MacOS   OS = "macos"
	Windows OS = "windows"
)

// Environment captures the host facts relevant to connecting an instrument.
type Environment struct {
	OS              OS                `json:"os"`
	OSVersion       string            `json:"os_version,omitempty"`
	PythonVersion   string            `json:"python_version,omitempty"`
	PackageVersions map[string]string `json:"package_versions,omitempty"`
	USBDevices      []string          `json:"usb_devices,omitempty"`
	VISAResources   []string          `json:"visa_resources,omitempty"`
}

// ActionCall is a single named, parameterized action chosen by the oracle
// or produced by pattern expansion. Name comes from the closed tool
// vocabulary understood by the executor.
type ActionCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// ActionResult is the executor's report for one ActionCall. Terminal means
// the session should end now (complete or give_up).
type ActionResult struct {
	Success  bool   `json:"success"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	Error    string `json:"error,omitempty"`
	Terminal bool   `json:"terminal,omitempty"`
}

// ErrorText returns the most specific failure text available for a result.
func (r ActionResult) ErrorText() string {
	if r.Stderr != "" {
		return r.Stderr
	}
	if r.Error != "" {
		return r.Error
	}
	return r.Stdout
}

// Step is one executed action within a session. Immutable once created;
// appended to the session's ordered step list and persisted to the step log.
type Step struct {
	Number    int           `json:"number"`
	Timestamp time.Time     `json:"timestamp"`
	Call      ActionCall    `json:"call"`
	Result    ActionResult  `json:"result"`
	Duration  time.Duration `json:"duration"`
}

// NormalizedStep is an abstract, shareable representation of one or more
// concrete steps with equivalent intent (e.g. "install these packages"
// regardless of the exact command syntax).
type NormalizedStep struct {
	Action string         `json:"action"`
	Detail map[string]any `json:"detail,omitempty"`
}

// PatternStats holds the running confidence statistics for a stored pattern.
// SuccessRate is always SuccessCount/TotalCount, recomputed on write.
type PatternStats struct {
	SuccessCount int     `json:"success_count"`
	TotalCount   int     `json:"total_count"`
	SuccessRate  float64 `json:"success_rate"`
	Confidence   float64 `json:"confidence_score"`
}

// ResolutionPattern is an ordered, abstracted action sequence believed to
// establish connectivity for a goal on an OS. An empty Fingerprint means the
// pattern applies to any starting state.
type ResolutionPattern struct {
	ID          string           `json:"id,omitempty"`
	Goal        string           `json:"goal"`
	OS          OS               `json:"os"`
	OSVersion   string           `json:"os_version,omitempty"`
	Fingerprint string           `json:"fingerprint,omitempty"`
	Steps       []NormalizedStep `json:"steps"`
	Outcome     string           `json:"outcome"`
	Stats       PatternStats     `json:"stats"`
}

// ErrorResolution associates a normalized error fingerprint with the action
// that resolved it. Goal and OS are optional scoping; empty means any.
type ErrorResolution struct {
	ID               string         `json:"id,omitempty"`
	Goal             string         `json:"goal,omitempty"`
	OS               OS             `json:"os,omitempty"`
	ErrorFingerprint string         `json:"error_fingerprint"`
	Category         string         `json:"category"`
	Explanation      string         `json:"explanation,omitempty"`
	Action           string         `json:"resolution_action"`
	Detail           map[string]any `json:"resolution_detail,omitempty"`
	SuccessCount     int            `json:"success_count,omitempty"`
}

// ErrorSequence records that one normalized failure was empirically followed
// by a different failure later in the same session. Diagnostic signal only.
type ErrorSequence struct {
	ErrorFingerprint     string `json:"error_fingerprint"`
	NextErrorFingerprint string `json:"next_error_fingerprint"`
}

// WorkingConfig captures the package set that was in place when a session
// succeeded, for sharing alongside the pattern.
type WorkingConfig struct {
	Goal     string            `json:"goal"`
	OS       OS                `json:"os"`
	Packages map[string]string `json:"packages,omitempty"`
}

// SessionAnalysis is the Session Analyzer's output over a completed session.
type SessionAnalysis struct {
	Pattern          *ResolutionPattern `json:"pattern,omitempty"`
	ErrorResolutions []ErrorResolution  `json:"error_resolutions,omitempty"`
	ErrorSequences   []ErrorSequence    `json:"error_sequences,omitempty"`
	WorkingConfig    *WorkingConfig     `json:"working_config,omitempty"`
}

// Session is the persisted record of one orchestration run.
type Session struct {
	ID          string    `json:"id"`
	Goal        string    `json:"goal"`
	GoalName    string    `json:"goal_name,omitempty"`
	OS          OS        `json:"os"`
	OSVersion   string    `json:"os_version,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionResult is the terminal outcome of a session.
type SessionResult struct {
	Success   bool          `json:"success"`
	SessionID string        `json:"session_id"`
	Steps     int           `json:"steps"`
	Duration  time.Duration `json:"duration"`
	Summary   string        `json:"summary,omitempty"`
	Err       string        `json:"error,omitempty"`
}

// UploadItem is one queued shared-pool contribution awaiting retry.
type UploadItem struct {
	ID        string    `json:"id"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	Attempts  int       `json:"attempts"`
}
