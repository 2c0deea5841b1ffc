// Package exec runs the closed vocabulary of concrete actions: shell
// commands, package installs, inline Python, device checks, and the
// terminal complete/give_up signals. Confirmation and timeout policy for
// each action lives here, not in the orchestrator.
package exec

import (
	"bytes"
	"context"
	"fmt"
	osexec "os/exec"
	"strings"
	"time"

	"github.com/Yash-Prakash1/connector/internal/device"
	"github.com/Yash-Prakash1/connector/internal/model"
)

// ConfirmFunc gates a side-effecting action; returning false declines it.
type ConfirmFunc func(prompt string) bool

// AskFunc relays an oracle question to the user and returns the answer.
type AskFunc func(question string, choices []string) string

// Runner executes one external command, enforcing the given timeout.
// Injectable for tests.
type Runner func(ctx context.Context, timeout time.Duration, name string, args ...string) (stdout, stderr string, err error)

// timeouts are per-action execution limits.
var timeouts = map[string]time.Duration{
	model.ActionBash:           2 * time.Minute,
	model.ActionPipInstall:     5 * time.Minute,
	model.ActionRunPython:      time.Minute,
	model.ActionCheckDevice:    30 * time.Second,
	model.ActionListVISA:       30 * time.Second,
	model.ActionListUSB:        15 * time.Second,
	model.ActionCheckInstalled: 15 * time.Second,
}

// Executor executes actions against the host.
type Executor struct {
	env     model.Environment
	profile device.Profile
	confirm ConfirmFunc
	ask     AskFunc
	run     Runner
}

// New creates an executor. confirm gates every side-effecting action; ask
// handles ask_user. A nil runner uses the real command runner.
func New(env model.Environment, profile device.Profile, confirm ConfirmFunc, ask AskFunc, run Runner) *Executor {
	if run == nil {
		run = runCommand
	}
	return &Executor{env: env, profile: profile, confirm: confirm, ask: ask, run: run}
}

// Execute runs one action call and reports its result. Unknown action names
// fail without side effects.
func (e *Executor) Execute(ctx context.Context, call model.ActionCall) model.ActionResult {
	switch call.Name {
	case model.ActionComplete:
		return model.ActionResult{
			Success:  true,
			Terminal: true,
			Stdout:   call.StringParam("summary"),
		}
	case model.ActionGiveUp:
		reason := call.StringParam("reason")
		if reason == "" {
			reason = "Agent gave up"
		}
		return model.ActionResult{Terminal: true, Error: reason}
	case model.ActionAskUser:
		return e.askUser(call)
	case model.ActionBash:
		return e.bash(ctx, call)
	case model.ActionPipInstall:
		return e.pipInstall(ctx, call)
	case model.ActionRunPython:
		return e.runPython(ctx, call)
	case model.ActionCheckDevice:
		ok, message := e.Verify(ctx)
		return model.ActionResult{Success: ok, Stdout: message, Error: errorUnless(ok, message)}
	case model.ActionListVISA:
		return e.command(ctx, call.Name, "python3", "-c", listVISASnippet)
	case model.ActionListUSB:
		return e.listUSB(ctx)
	case model.ActionCheckInstalled:
		// Diagnostic only: no confirmation, no side effects.
		pkg := call.StringParam("package")
		if pkg == "" {
			return model.ActionResult{Error: "check_installed requires a package"}
		}
		return e.command(ctx, call.Name, "python3", "-m", "pip", "show", pkg)
	}
	return model.ActionResult{Error: "Unknown tool: " + call.Name}
}

// Verify checks the end goal: whether the instrument answers an identify
// query. Used once after replay and by check_device.
func (e *Executor) Verify(ctx context.Context) (bool, string) {
	result := e.command(ctx, model.ActionCheckDevice, "python3", "-c", idnQuerySnippet)
	if !result.Success {
		return false, result.ErrorText()
	}
	out := strings.TrimSpace(result.Stdout)
	if out == "" {
		return false, "no instrument responded to identification query"
	}
	return true, out
}

func (e *Executor) askUser(call model.ActionCall) model.ActionResult {
	question := call.StringParam("question")
	var choices []string
	if raw := call.StringSliceParam("choices"); len(raw) > 0 {
		choices = raw
	}
	if e.ask == nil {
		return model.ActionResult{Error: "no user available to answer"}
	}
	return model.ActionResult{Success: true, Stdout: e.ask(question, choices)}
}

func (e *Executor) bash(ctx context.Context, call model.ActionCall) model.ActionResult {
	command := call.StringParam("command")
	if command == "" {
		return model.ActionResult{Error: "bash requires a command"}
	}
	if !e.confirm("Run: "+command) {
		return model.ActionResult{Error: "User declined"}
	}
	return e.command(ctx, call.Name, "sh", "-c", command)
}

func (e *Executor) pipInstall(ctx context.Context, call model.ActionCall) model.ActionResult {
	packages := call.StringSliceParam("packages")
	if len(packages) == 0 {
		return model.ActionResult{Error: "pip_install requires packages"}
	}
	if !e.confirm("Install packages: "+strings.Join(packages, ", ")) {
		return model.ActionResult{Error: "User declined"}
	}
	args := append([]string{"-m", "pip", "install"}, packages...)
	return e.command(ctx, call.Name, "python3", args...)
}

func (e *Executor) runPython(ctx context.Context, call model.ActionCall) model.ActionResult {
	code := call.StringParam("code")
	if code == "" {
		return model.ActionResult{Error: "run_python requires code"}
	}
	if !e.confirm("Run Python code") {
		return model.ActionResult{Error: "User declined"}
	}
	return e.command(ctx, call.Name, "python3", "-c", code)
}

func (e *Executor) listUSB(ctx context.Context) model.ActionResult {
	switch e.env.OS {
	case model.MacOS:
		return e.command(ctx, model.ActionListUSB, "system_profiler", "SPUSBDataType")
	default:
		return e.command(ctx, model.ActionListUSB, "lsusb")
	}
}

// command runs an external command under the action's timeout.
func (e *Executor) command(ctx context.Context, action, name string, args ...string) model.ActionResult {
	timeout := timeouts[action]
	if timeout == 0 {
		timeout = time.Minute
	}
	stdout, stderr, err := e.run(ctx, timeout, name, args...)
	result := model.ActionResult{
		Success: err == nil,
		Stdout:  stdout,
		Stderr:  stderr,
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// runCommand is the real Runner.
func runCommand(ctx context.Context, timeout time.Duration, name string, args ...string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := osexec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("command timed out after %s", timeout)
	}
	return stdout.String(), stderr.String(), err
}

func errorUnless(ok bool, message string) string {
	if ok {
		return ""
	}
	return message
}

const idnQuerySnippet = `import pyvisa
rm = pyvisa.ResourceManager("@py")
for r in rm.list_resources():
    try:
        inst = rm.open_resource(r)
        inst.timeout = 5000
        print(inst.query("*IDN?").strip())
        break
    except Exception:
        continue
`

const listVISASnippet = `import pyvisa
rm = pyvisa.ResourceManager("@py")
for r in rm.list_resources():
    print(r)
`
