package roleengine_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"goa.design/swarmassistant/roleengine"
	"goa.design/swarmassistant/swarmrole"
)

func TestBuildPromptIncludesSkillsForAllowedRoles(t *testing.T) {
	task := roleengine.ExecuteRoleTask{
		Role:  swarmrole.Builder,
		Title: "implement feature",
		Skills: []roleengine.Skill{
			{Name: "go-style", Body: "prefer small interfaces"},
		},
	}
	prompt := roleengine.BuildPrompt(task, roleengine.DefaultSkillByteBudget)
	assert.Contains(t, prompt, "go-style")
	assert.Contains(t, prompt, "prefer small interfaces")
}

func TestBuildPromptOmitsSkillsForDisallowedRoles(t *testing.T) {
	task := roleengine.ExecuteRoleTask{
		Role:   swarmrole.Tester,
		Title:  "run tests",
		Skills: []roleengine.Skill{{Name: "go-style", Body: "prefer small interfaces"}},
	}
	prompt := roleengine.BuildPrompt(task, roleengine.DefaultSkillByteBudget)
	assert.NotContains(t, prompt, "go-style")
}

func TestBuildPromptTruncatesSkillsToByteBudget(t *testing.T) {
	task := roleengine.ExecuteRoleTask{
		Role:  swarmrole.Reviewer,
		Title: "review",
		Skills: []roleengine.Skill{
			{Name: "fits", Body: strings.Repeat("a", 10)},
			{Name: "overflow", Body: strings.Repeat("b", 20)},
		},
	}
	prompt := roleengine.BuildPrompt(task, 15)
	assert.Contains(t, prompt, "fits")
	assert.NotContains(t, prompt, "overflow")
}

func TestBuildPromptOrchestratorShape(t *testing.T) {
	task := roleengine.ExecuteRoleTask{
		Role:             swarmrole.Orchestrator,
		Title:            "coordinate",
		GoapAnalysis:     "plan: [build, review]",
		BlackboardDigest: "task.available:t1=true",
	}
	prompt := roleengine.BuildPrompt(task, roleengine.DefaultSkillByteBudget)
	assert.Contains(t, prompt, "ACTION: <Name>")
	assert.Contains(t, prompt, "plan: [build, review]")
	assert.Contains(t, prompt, "task.available:t1=true")
}

func TestBuildPromptIncludesSessionContextForOrchestratorAndPlanner(t *testing.T) {
	for _, role := range []swarmrole.Role{swarmrole.Orchestrator, swarmrole.Planner} {
		task := roleengine.ExecuteRoleTask{Role: role, Title: "continue", SessionContext: "Planner(t1): earlier plan"}
		prompt := roleengine.BuildPrompt(task, roleengine.DefaultSkillByteBudget)
		assert.Contains(t, prompt, "Prior run history:")
		assert.Contains(t, prompt, "earlier plan")
	}
}

func TestBuildPromptOmitsSessionContextForBuilder(t *testing.T) {
	task := roleengine.ExecuteRoleTask{Role: swarmrole.Builder, Title: "build", SessionContext: "Planner(t1): earlier plan"}
	prompt := roleengine.BuildPrompt(task, roleengine.DefaultSkillByteBudget)
	assert.NotContains(t, prompt, "Prior run history:")
}

func TestParseOrchestratorAction(t *testing.T) {
	action, ok := roleengine.ParseOrchestratorAction("ACTION: Build\nREASON: plan says so")
	assert.True(t, ok)
	assert.Equal(t, "Build", action)

	_, ok = roleengine.ParseOrchestratorAction("no action here")
	assert.False(t, ok)
}

func TestNormalizeOutputStripsAnsiAndCRLF(t *testing.T) {
	raw := "\x1b[32mhello\x1b[0m\r\nworld\r\n  "
	assert.Equal(t, "hello\nworld", roleengine.NormalizeOutput(raw))
}
