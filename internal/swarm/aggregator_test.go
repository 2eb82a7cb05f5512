package swarm

import "testing"

func TestAggregateAllFailed(t *testing.T) {
	agg := NewAggregator()
	out := agg.Aggregate("task", ConsensusMerge, []Result{
		{Role: RoleCoder, Status: AgentFailed, Output: "Error: boom"},
	})
	if !contains(out, "All agents failed.") || !contains(out, "coder: Error: boom") {
		t.Fatalf("out = %q", out)
	}
}

func TestAggregateMergeOrdersByRoleAndListsFailures(t *testing.T) {
	agg := NewAggregator()
	out := agg.Aggregate("task", ConsensusMerge, []Result{
		{Role: RoleReviewer, Status: AgentDone, Output: "looks good"},
		{Role: RoleArchitect, Status: AgentDone, Output: "design doc"},
		{Role: RoleTester, Status: AgentFailed, Output: "Error: timed out"},
	})
	archIdx := indexOf(out, "## architect")
	reviewerIdx := indexOf(out, "## reviewer")
	if archIdx == -1 || reviewerIdx == -1 || archIdx > reviewerIdx {
		t.Fatalf("expected architect section before reviewer section, got %q", out)
	}
	if !contains(out, "## Failed Agents") || !contains(out, "tester: Error: timed out") {
		t.Fatalf("expected failed agents section, got %q", out)
	}
}

func TestAggregateVoteIncludesConsensusLine(t *testing.T) {
	agg := NewAggregator()
	out := agg.Aggregate("task", ConsensusVote, []Result{
		{Role: RoleCoder, Status: AgentDone, Output: "a"},
		{Role: RoleReviewer, Status: AgentDone, Output: "b"},
	})
	if !contains(out, "# Votes") || !contains(out, "2 of 2 agents produced output") {
		t.Fatalf("out = %q", out)
	}
}

func TestAggregateChainUsesLastStageAsFinalOutput(t *testing.T) {
	agg := NewAggregator()
	out := agg.Aggregate("task", ConsensusChain, []Result{
		{Role: RoleArchitect, Status: AgentDone, Output: "design"},
		{Role: RoleCoder, Status: AgentDone, Output: "implementation"},
	})
	if !contains(out, "Stage 1: architect") || !contains(out, "Stage 2: coder") {
		t.Fatalf("out = %q", out)
	}
	if !contains(out, "## Final Output\n\nimplementation") {
		t.Fatalf("expected final output to be last stage, got %q", out)
	}
}

func TestAggregateBestPicksHighestScoringCandidate(t *testing.T) {
	agg := NewAggregator()
	out := agg.Aggregate("build CLI", ConsensusBest, []Result{
		{Role: RoleCoder, Status: AgentDone, Output: "short"},
		{Role: RoleReviewer, Status: AgentDone, Output: "# Heading\n\n```go\ncode\n```\n\nmuch longer detailed output with content"},
	})
	if !contains(out, "# Best Result: build CLI") || !contains(out, "## reviewer") {
		t.Fatalf("expected reviewer to win, got %q", out)
	}
	if !contains(out, "## Other Candidates") || !contains(out, "coder: score") {
		t.Fatalf("expected other candidates section, got %q", out)
	}
}

func TestScoreResultFormula(t *testing.T) {
	r := Result{
		Status: AgentDone,
		Output: "# H1\nline2\n```\ncode\n```",
	}
	got := scoreResult(r)
	want := float64(len(r.Output))*0.1 + float64(4)*2 + float64(1)*10 + float64(1)*5 + 50
	if got != want {
		t.Fatalf("scoreResult = %v, want %v", got, want)
	}
}

func contains(s, substr string) bool {
	return indexOf(s, substr) != -1
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
