// Package loop detects when a session is stuck repeating the same failing
// action. Detection is advisory: the orchestrator passes the breaker text
// back to the oracle but never terminates the loop itself.
package loop

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Yash-Prakash1/connector/internal/fingerprint"
	"github.com/Yash-Prakash1/connector/internal/model"
)

const (
	// DefaultMaxRepeats is how many identical (action, error) failures
	// trigger a loop warning.
	DefaultMaxRepeats = 2

	// DefaultHistorySize bounds the recent-failure ring kept for diagnostics.
	DefaultHistorySize = 10
)

// Warning is the result of a loop check.
type Warning struct {
	IsLoop  bool
	Message string
}

// Detector tracks repeated (action, normalized error) failures within one
// session. Counters never reset; once a key reaches the threshold every
// later occurrence stays flagged.
type Detector struct {
	maxRepeats  int
	historySize int
	counts      map[string]int
	history     []string
}

// New returns a detector with the given thresholds; zero values select the
// defaults.
func New(maxRepeats, historySize int) *Detector {
	if maxRepeats <= 0 {
		maxRepeats = DefaultMaxRepeats
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Detector{
		maxRepeats:  maxRepeats,
		historySize: historySize,
		counts:      make(map[string]int),
	}
}

// Check records a step outcome and reports whether it completes a loop.
// Successful results are never tracked.
func (d *Detector) Check(call model.ActionCall, result model.ActionResult) Warning {
	if result.Success {
		return Warning{}
	}

	key := actionKey(call) + ":" + fingerprint.Error(result.ErrorText())
	d.counts[key]++
	d.history = append(d.history, key)
	if len(d.history) > d.historySize {
		d.history = d.history[len(d.history)-d.historySize:]
	}

	if count := d.counts[key]; count >= d.maxRepeats {
		return Warning{
			IsLoop: true,
			Message: fmt.Sprintf("Action %q has failed with the same error %d times. "+
				"Try a completely different approach.", call.Name, count),
		}
	}
	return Warning{}
}

// BreakerMessage returns the corrective instruction handed to the oracle on
// its next call after a loop is detected.
func (d *Detector) BreakerMessage() string {
	return "IMPORTANT: You are repeating the same action with the same error. " +
		"You MUST try a completely different approach. Do NOT retry the same " +
		"command. Consider:\n" +
		"- A different diagnostic command to understand the root cause\n" +
		"- A different installation method or package\n" +
		"- Checking system-level prerequisites\n" +
		"- A completely different strategy to connect to the device\n" +
		"- Using give_up if you've exhausted all options"
}

// actionKey hashes the action name with its parameters; JSON marshaling
// sorts map keys so parameter order cannot change the key.
func actionKey(call model.ActionCall) string {
	data, _ := json.Marshal(struct {
		Name   string         `json:"name"`
		Params map[string]any `json:"params"`
	}{call.Name, call.Params})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}
