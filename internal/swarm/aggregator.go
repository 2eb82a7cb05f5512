package swarm

import (
	"fmt"
	"strings"
)

// aggregationRoleOrder is the canonical role order used by merge and chain
// aggregation, matching the order Roles are presented to callers.
var aggregationRoleOrder = []string{
	RoleArchitect, RoleResearcher, RoleCoder, RoleSecurity,
	RoleTester, RoleDevops, RoleAnalyst, RoleReviewer,
}

const votePreviewLen = 500
const resultPreviewLen = 300

// Aggregator combines a swarm's per-agent Results into one string under a
// configured ConsensusStrategy.
type Aggregator struct{}

// NewAggregator returns a stateless Aggregator.
func NewAggregator() *Aggregator { return &Aggregator{} }

// Aggregate combines results per strategy. task is the original swarm task
// description; "best" consensus titles its output with it. If every result
// failed, the output is "All agents failed." followed by one
// "<role>: <reason>" line per failure.
func (a *Aggregator) Aggregate(task string, strategy ConsensusStrategy, results []Result) string {
	successes, failures := partition(results)
	if len(successes) == 0 {
		return allFailedSummary(failures)
	}

	switch strategy {
	case ConsensusVote:
		return a.vote(successes, failures)
	case ConsensusChain:
		return a.chain(successes, failures)
	case ConsensusBest:
		return a.best(task, successes, failures)
	case ConsensusMerge:
		fallthrough
	default:
		return a.merge(successes, failures)
	}
}

func partition(results []Result) (successes, failures []Result) {
	for _, r := range results {
		if r.Status == AgentDone {
			successes = append(successes, r)
		} else {
			failures = append(failures, r)
		}
	}
	return
}

func allFailedSummary(failures []Result) string {
	var b strings.Builder
	b.WriteString("All agents failed.\n")
	for _, f := range failures {
		fmt.Fprintf(&b, "%s: %s\n", f.Role, f.Output)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orderByRole(results []Result) []Result {
	ordered := make([]Result, 0, len(results))
	seen := make(map[int]bool)
	for _, role := range aggregationRoleOrder {
		for i, r := range results {
			if seen[i] {
				continue
			}
			if r.Role == role {
				ordered = append(ordered, r)
				seen[i] = true
			}
		}
	}
	for i, r := range results {
		if !seen[i] {
			ordered = append(ordered, r)
		}
	}
	return ordered
}

func (a *Aggregator) merge(successes, failures []Result) string {
	ordered := orderByRole(successes)
	var b strings.Builder
	b.WriteString("# Combined Result\n\n")
	for _, r := range ordered {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", r.Role, r.Output)
	}
	if len(failures) > 0 {
		b.WriteString("## Failed Agents\n\n")
		for _, f := range failures {
			fmt.Fprintf(&b, "- %s: %s\n", f.Role, f.Output)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Aggregator) vote(successes, failures []Result) string {
	var b strings.Builder
	b.WriteString("# Votes\n\n")
	for _, r := range successes {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", r.Role, preview(r.Output, votePreviewLen))
	}
	fmt.Fprintf(&b, "## Consensus\n\n%d of %d agents produced output. Reviewing the above, the consensus favors the approach most consistent across responses.\n", len(successes), len(successes)+len(failures))
	return strings.TrimRight(b.String(), "\n")
}

func (a *Aggregator) chain(successes, failures []Result) string {
	ordered := orderByRole(successes)
	var b strings.Builder
	b.WriteString("# Chain\n\n")
	for i, r := range ordered {
		fmt.Fprintf(&b, "## Stage %d: %s\n\n%s\n\n", i+1, r.Role, r.Output)
	}
	if len(ordered) > 0 {
		fmt.Fprintf(&b, "## Final Output\n\n%s\n", ordered[len(ordered)-1].Output)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Aggregator) best(task string, successes, failures []Result) string {
	type scored struct {
		result Result
		score  float64
	}
	var candidates []scored
	for _, r := range successes {
		candidates = append(candidates, scored{result: r, score: scoreResult(r)})
	}

	bestIdx := 0
	for i, c := range candidates {
		if c.score > candidates[bestIdx].score {
			bestIdx = i
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Best Result: %s\n\n", task)
	fmt.Fprintf(&b, "## %s\n\n%s\n\n", candidates[bestIdx].result.Role, candidates[bestIdx].result.Output)
	b.WriteString("## Other Candidates\n\n")
	for i, c := range candidates {
		if i == bestIdx {
			continue
		}
		fmt.Fprintf(&b, "- %s: score %.1f\n", c.result.Role, c.score)
	}
	return strings.TrimRight(b.String(), "\n")
}

// scoreResult implements the "best" consensus scoring formula:
// len*0.1 + newlines*2 + markdownHeadings*10 + fencedCodeBlocks*5 + (done?50:0).
func scoreResult(r Result) float64 {
	score := float64(len(r.Output)) * 0.1
	score += float64(strings.Count(r.Output, "\n")) * 2
	score += float64(countMarkdownHeadings(r.Output)) * 10
	score += float64(countFencedCodeBlocks(r.Output)) * 5
	if r.Status == AgentDone {
		score += 50
	}
	return score
}

func countMarkdownHeadings(s string) int {
	count := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimLeft(line, " "), "#") {
			count++
		}
	}
	return count
}

func countFencedCodeBlocks(s string) int {
	return strings.Count(s, "```") / 2
}
