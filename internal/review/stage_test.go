package review

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDepth(t *testing.T) {
	tests := []struct {
		input   string
		want    Depth
		wantErr bool
	}{
		{"quick", DepthQuick, false},
		{"standard", DepthStandard, false},
		{"deep", DepthDeep, false},
		{"", DepthStandard, false},
		{"thorough", "", true},
		{"QUICK", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDepth(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDepth(%q) = %v, want error", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDepth(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDepth(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPlanStageSelection(t *testing.T) {
	tests := []struct {
		depth Depth
		want  []Stage
	}{
		{DepthQuick, []Stage{StageStyle}},
		{DepthStandard, []Stage{StageStyle, StageBugs, StagePerformance}},
		{DepthDeep, []Stage{StageStyle, StageBugs, StagePerformance, StageBestPractice}},
	}

	for _, tt := range tests {
		got, err := Plan(tt.depth)
		if err != nil {
			t.Fatalf("Plan(%s) error: %v", tt.depth, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Plan(%s) mismatch (-want +got):\n%s", tt.depth, diff)
		}
	}
}

func TestPlanRejectsUnknownDepth(t *testing.T) {
	if _, err := Plan("exhaustive"); err == nil {
		t.Fatal("expected error for unknown depth")
	}
}

func TestStageIssueType(t *testing.T) {
	tests := []struct {
		stage Stage
		want  IssueType
	}{
		{StageStyle, IssueStyle},
		{StageBugs, IssueBug},
		{StagePerformance, IssuePerformance},
		{StageBestPractice, IssueBestPractice},
	}
	for _, tt := range tests {
		if got := tt.stage.IssueType(); got != tt.want {
			t.Errorf("%s.IssueType() = %v, want %v", tt.stage, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	line := 3
	issues := []Issue{
		{Type: IssueBug, Severity: SeverityHigh, Line: &line},
		{Type: IssueStyle, Severity: SeverityLow},
		{Type: IssuePerformance, Severity: SeverityMedium},
	}

	got := Summarize(issues, 2)
	want := "Found 3 issues across 2 changed files: 1 high, 1 medium, 1 low severity."
	if got != want {
		t.Errorf("Summarize = %q, want %q", got, want)
	}

	got = Summarize(nil, 1)
	want = "No issues found across 1 changed file."
	if got != want {
		t.Errorf("Summarize(empty) = %q, want %q", got, want)
	}
}
