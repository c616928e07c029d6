package roleengine

import (
	"fmt"
	"regexp"
	"strings"

	"goa.design/swarmassistant/swarmrole"
)

// DefaultSkillByteBudget bounds total skill-body bytes included in a
// prompt, headers excepted (spec.md §4.4).
const DefaultSkillByteBudget = 4000

// skillRolesAllowed names the roles that honour matched skills.
var skillRolesAllowed = swarmrole.NewSet(swarmrole.Builder, swarmrole.Reviewer, swarmrole.Planner)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// BuildPrompt assembles the system+context prompt for task, honouring
// role-specific inclusion rules: skills appear only for Builder, Reviewer,
// and Planner, truncated to byteBudget total body bytes; the Orchestrator
// gets a distinct ACTION:/REASON: prompt shape instead.
func BuildPrompt(task ExecuteRoleTask, byteBudget int) string {
	if task.Role == swarmrole.Orchestrator {
		return buildOrchestratorPrompt(task)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are acting as the %s role in a software-engineering task.\n\n", task.Role)
	fmt.Fprintf(&b, "Task: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "%s\n", task.Description)
	}
	if task.PriorPlan != "" && (task.Role == swarmrole.Builder || task.Role == swarmrole.Reviewer) {
		fmt.Fprintf(&b, "\nImplementation plan:\n%s\n", task.PriorPlan)
	}
	if task.StrategyAdvice != "" {
		fmt.Fprintf(&b, "\nStrategy advice:\n%s\n", task.StrategyAdvice)
	}
	if task.CodeContext != "" {
		fmt.Fprintf(&b, "\nRelevant code:\n%s\n", task.CodeContext)
	}
	if task.ProjectContext != "" {
		fmt.Fprintf(&b, "\nProject context:\n%s\n", task.ProjectContext)
	}
	if task.SessionContext != "" && task.Role == swarmrole.Planner {
		fmt.Fprintf(&b, "\nPrior run history:\n%s\n", task.SessionContext)
	}
	if skillRolesAllowed.Has(task.Role) {
		if body := renderSkills(task.Skills, byteBudget); body != "" {
			fmt.Fprintf(&b, "\nMatched skills:\n%s\n", body)
		}
	}
	return b.String()
}

// renderSkills concatenates skill bodies (each preceded by its own
// unbudgeted header line) in order, skipping any skill whose body would
// push the running body-byte total past byteBudget; later skills that
// still fit are included. A skipped skill is omitted entirely rather than
// truncated mid-body.
func renderSkills(skills []Skill, byteBudget int) string {
	var b strings.Builder
	used := 0
	for _, s := range skills {
		if used+len(s.Body) > byteBudget {
			continue
		}
		fmt.Fprintf(&b, "### %s\n%s\n", s.Name, s.Body)
		used += len(s.Body)
	}
	return b.String()
}

func buildOrchestratorPrompt(task ExecuteRoleTask) string {
	var b strings.Builder
	b.WriteString("You are the Orchestrator. Choose the single next action.\n\n")
	fmt.Fprintf(&b, "Task: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "%s\n", task.Description)
	}
	if task.GoapAnalysis != "" {
		fmt.Fprintf(&b, "\nGOAP analysis:\n%s\n", task.GoapAnalysis)
	}
	if task.BlackboardDigest != "" {
		fmt.Fprintf(&b, "\nBlackboard:\n%s\n", task.BlackboardDigest)
	}
	if task.SessionContext != "" {
		fmt.Fprintf(&b, "\nPrior run history:\n%s\n", task.SessionContext)
	}
	b.WriteString("\nRespond with exactly:\nACTION: <Name>\nREASON: <text>\n")
	return b.String()
}

// actionPattern extracts the action name from an orchestrator response
// (spec.md §4.2: `ACTION:\s*(\w+)`, case-insensitive).
var actionPattern = regexp.MustCompile(`(?i)ACTION:\s*(\w+)`)

// ParseOrchestratorAction extracts the action name from an orchestrator's
// response, returning ok=false when no ACTION: line is present.
func ParseOrchestratorAction(response string) (action string, ok bool) {
	m := actionPattern.FindStringSubmatch(response)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// NormalizeOutput strips ANSI escape sequences, collapses CRLF to LF, and
// trims surrounding whitespace from a CLI adapter's raw stdout.
func NormalizeOutput(raw string) string {
	s := ansiEscape.ReplaceAllString(raw, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}
