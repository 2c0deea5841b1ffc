package model

// The closed action vocabulary. The executor rejects anything else with
// "Unknown tool: <name>".
const (
	ActionBash           = "bash"
	ActionPipInstall     = "pip_install"
	ActionRunPython      = "run_python"
	ActionCheckDevice    = "check_device"
	ActionListVISA       = "list_visa_resources"
	ActionListUSB        = "list_usb_devices"
	ActionCheckInstalled = "check_installed"
	ActionAskUser        = "ask_user"
	ActionComplete       = "complete"
	ActionGiveUp         = "give_up"
)

// Abstract step categories produced by normalization and consumed by replay
// expansion.
const (
	StepPipInstall    = "pip_install"
	StepSystemInstall = "system_install"
	StepPermissionFix = "permission_fix"
	StepVerify        = "verify"
)

// StringParam returns a string parameter from an action call, or "".
func (c ActionCall) StringParam(key string) string {
	v, _ := c.Params[key].(string)
	return v
}

// StringSliceParam returns a string-slice parameter, accepting both []string
// and the []any that JSON decoding produces.
func (c ActionCall) StringSliceParam(key string) []string {
	switch v := c.Params[key].(type) {
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
