package roleengine

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

// commonAuthFailureSubstrings are checked against every CLI adapter's
// stdout regardless of its own RejectOutputSubstrings (spec.md §6).
var commonAuthFailureSubstrings = []string{
	"authorization failed",
	"please log in",
	"token expired",
	"not authenticated",
	"session expired",
}

// Adapter describes a CLI code-generation adapter (spec.md §6). ExecuteArgs
// and ProbeArgs may contain the placeholders {{prompt}}, {{args_joined}},
// and {{command}}, rendered with single-quote shell-safe quoting.
type Adapter struct {
	ID string

	ProbeCommand string
	ProbeArgs    []string
	ProbeTimeout time.Duration

	ExecuteCommand string
	ExecuteArgs    []string
	ExecuteTimeout time.Duration

	// RejectOutputSubstrings mark this adapter's own failure signatures,
	// checked in addition to commonAuthFailureSubstrings.
	RejectOutputSubstrings []string

	ProviderFlag  string
	ModelFlag     string
	ReasoningFlag string

	// IsInternal marks an adapter that is not exposed to peer agents over
	// the a2a transport (purely descriptive; not enforced here).
	IsInternal bool
}

const defaultProbeTimeout = 5 * time.Second

// Probe runs a short command with a short timeout to check an adapter is
// reachable. wrap lets the caller apply a Sandbox wrapping; pass NoSandbox
// to run unwrapped.
func (a Adapter) Probe(ctx context.Context, wrap Sandbox) bool {
	timeout := a.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	command, args := a.ProbeCommand, renderArgs(a.ProbeArgs, "")
	if wrap != nil {
		command, args = wrap.Wrap(command, args)
	}
	cmd := exec.CommandContext(ctx, command, args...)
	return cmd.Run() == nil
}

// Execute renders ExecuteArgs with prompt substituted for {{prompt}}, runs
// the command (through wrap if non-nil), and returns the raw stdout. An
// adapter is considered to have failed when its process exits non-zero or
// when its stdout contains any reject substring (the adapter's own set, or
// a common authorization-failure substring).
func (a Adapter) Execute(ctx context.Context, wrap Sandbox, prompt string) (string, error) {
	runCtx := ctx
	if a.ExecuteTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.ExecuteTimeout)
		defer cancel()
	}

	command, args := a.ExecuteCommand, renderArgs(a.ExecuteArgs, prompt)
	if wrap != nil {
		command, args = wrap.Wrap(command, args)
	}

	cmd := exec.CommandContext(runCtx, command, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()
	output := stdout.String()
	if err != nil {
		return output, err
	}
	if reason, rejected := rejectedOutput(output, a.RejectOutputSubstrings); rejected {
		return output, &AdapterRejectedError{AdapterID: a.ID, Reason: reason}
	}
	return output, nil
}

// AdapterRejectedError reports that an adapter exited zero but its output
// matched a reject or authorization-failure substring.
type AdapterRejectedError struct {
	AdapterID string
	Reason    string
}

func (e *AdapterRejectedError) Error() string {
	return "roleengine: adapter " + e.AdapterID + " rejected: " + e.Reason
}

func rejectedOutput(output string, rejectSubstrings []string) (reason string, rejected bool) {
	lower := strings.ToLower(output)
	for _, s := range rejectSubstrings {
		if s != "" && strings.Contains(lower, strings.ToLower(s)) {
			return s, true
		}
	}
	for _, s := range commonAuthFailureSubstrings {
		if strings.Contains(lower, s) {
			return s, true
		}
	}
	return "", false
}

// renderArgs substitutes {{prompt}}, {{args_joined}}, and {{command}}
// placeholders in each template arg with single-quote shell-safe
// quoting, per spec.md §6.
func renderArgs(templateArgs []string, prompt string) []string {
	joined := shellQuote(strings.Join(templateArgs, " "))
	out := make([]string, len(templateArgs))
	for i, t := range templateArgs {
		t = strings.ReplaceAll(t, "{{prompt}}", shellQuote(prompt))
		t = strings.ReplaceAll(t, "{{args_joined}}", joined)
		t = strings.ReplaceAll(t, "{{command}}", shellQuote(strings.Join(templateArgs, " ")))
		out[i] = t
	}
	return out
}

// shellQuote wraps s in single quotes, escaping any embedded single quote
// as '\'' so the result is safe to pass through a shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
