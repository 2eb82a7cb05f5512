package swarm

import "strings"

// roleTemplates gives each predefined Role a task-description template used
// by decomposition. %s is replaced with the original task text.
var roleTemplates = map[string]string{
	RoleArchitect:  "Design the architecture and technical approach for: %s",
	RoleResearcher: "Gather background information and prior art for: %s",
	RoleCoder:      "Implement a solution for: %s",
	RoleSecurity:   "Review the following for security issues: %s",
	RoleTester:     "Write and run tests for: %s",
	RoleDevops:     "Handle build, deploy, and infra concerns for: %s",
	RoleAnalyst:    "Analyze tradeoffs and data for: %s",
	RoleReviewer:   "Review and synthesize the combined output for: %s",
}

// roleKeywords maps each predefined Role to the keyword set that triggers
// its inclusion during automatic role suggestion. Keywords are matched
// against the lowercased task text.
var roleKeywords = map[string][]string{
	RoleArchitect:  {"architecture", "design", "system design", "approach"},
	RoleResearcher: {"research", "investigate", "background", "prior art", "survey"},
	RoleCoder:      {"implement", "code", "build", "write code", "develop"},
	RoleSecurity:   {"security", "vulnerability", "exploit", "secure", "audit"},
	RoleTester:     {"test", "testing", "qa", "coverage"},
	RoleDevops:     {"deploy", "infra", "infrastructure", "ci/cd", "pipeline", "docker", "kubernetes"},
	RoleAnalyst:    {"analyze", "analysis", "tradeoff", "data", "compare"},
	RoleReviewer:   {"review", "synthesize", "summarize"},
}

// defaultRoleFallback is used when SuggestRoles finds no keyword match.
var defaultRoleFallback = []string{RoleCoder, RoleReviewer}

// Planner decomposes a task into one Sub-task per requested Role.
type Planner struct{}

// NewPlanner returns a stateless Planner.
func NewPlanner() *Planner { return &Planner{} }

// Decompose produces one Task per roleID in roles. If autoDecompose is
// false, every Task is the bare (task, context, role priority) triple;
// otherwise each Task gets a role-flavored description from roleTemplates.
func (p *Planner) Decompose(task string, roles []string, taskContext string, autoDecompose bool) map[string]Task {
	out := make(map[string]Task, len(roles))
	for _, roleID := range roles {
		role, ok := RoleByID(roleID)
		if !ok {
			continue
		}
		description := task
		if autoDecompose {
			if tmpl, ok := roleTemplates[roleID]; ok {
				description = sprintfTemplate(tmpl, task)
			}
		}
		out[roleID] = Task{
			Description: description,
			Context:     taskContext,
			Priority:    role.Priority,
		}
	}
	return out
}

// SuggestRoles scans task's lowercased text against the fixed keyword
// table and returns the union of matching roles, deduplicated in role-table
// order. When nothing matches, it returns the fallback {coder, reviewer}.
func SuggestRoles(task string) []string {
	lower := strings.ToLower(task)
	var suggested []string
	for _, role := range Roles {
		for _, kw := range roleKeywords[role.ID] {
			if strings.Contains(lower, kw) {
				suggested = append(suggested, role.ID)
				break
			}
		}
	}
	if len(suggested) == 0 {
		return append([]string(nil), defaultRoleFallback...)
	}
	return suggested
}

func sprintfTemplate(tmpl, task string) string {
	const placeholder = "%s"
	idx := strings.Index(tmpl, placeholder)
	if idx < 0 {
		return tmpl
	}
	return tmpl[:idx] + task + tmpl[idx+len(placeholder):]
}
