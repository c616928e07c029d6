package roleengine

import (
	"strings"

	"goa.design/swarmassistant/config"
)

// Sandbox wraps an adapter's command+args before exec, per config.SandboxMode.
type Sandbox interface {
	Wrap(command string, args []string) (string, []string)
}

// NoSandbox runs adapter commands unwrapped (config.SandboxHost).
type NoSandbox struct{}

// Wrap returns command/args unchanged.
func (NoSandbox) Wrap(command string, args []string) (string, []string) { return command, args }

// OSSandbox wraps commands with an OS-level sandboxing wrapper restricted
// to a set of allowed network hosts (config.SandboxOSSandboxed). Grounded
// on the teacher's command-wrapping shape in features/mcp's stdio
// launcher, generalized to prepend a fixed wrapper command.
type OSSandbox struct {
	// WrapperCommand is the sandboxing binary, e.g. "sandbox-exec".
	WrapperCommand string
	AllowedHosts   []string
}

// Wrap prepends the OS sandbox wrapper and an allowed-hosts argument ahead
// of command and args.
func (s OSSandbox) Wrap(command string, args []string) (string, []string) {
	if s.WrapperCommand == "" {
		return command, args
	}
	wrapped := make([]string, 0, len(args)+2)
	if len(s.AllowedHosts) > 0 {
		wrapped = append(wrapped, "--allow-hosts="+strings.Join(s.AllowedHosts, ","))
	}
	wrapped = append(wrapped, command)
	wrapped = append(wrapped, args...)
	return s.WrapperCommand, wrapped
}

// ContainerSandbox wraps commands with a container runtime invocation
// (docker, apple-container), per config.WrapperSpec's
// {{command}}/{{args_joined}} placeholders.
type ContainerSandbox struct {
	Wrapper config.WrapperSpec
}

// Wrap renders the wrapper's templated args with command/args substituted
// for {{command}}/{{args_joined}}, single-quote shell-safe quoted.
func (s ContainerSandbox) Wrap(command string, args []string) (string, []string) {
	full := append([]string{command}, args...)
	joined := shellQuote(strings.Join(args, " "))
	quotedCommand := shellQuote(command)

	rendered := make([]string, len(s.Wrapper.Args))
	for i, a := range s.Wrapper.Args {
		a = strings.ReplaceAll(a, "{{command}}", quotedCommand)
		a = strings.ReplaceAll(a, "{{args_joined}}", joined)
		rendered[i] = a
	}
	_ = full
	return s.Wrapper.Command, rendered
}

// NewSandbox constructs the Sandbox matching mode.
func NewSandbox(mode config.SandboxMode, wrapper *config.WrapperSpec, allowedHosts []string) Sandbox {
	switch mode {
	case config.SandboxOSSandboxed:
		return OSSandbox{WrapperCommand: "sandbox-exec", AllowedHosts: allowedHosts}
	case config.SandboxDocker, config.SandboxAppleContainer:
		if wrapper == nil {
			return NoSandbox{}
		}
		return ContainerSandbox{Wrapper: *wrapper}
	default:
		return NoSandbox{}
	}
}
