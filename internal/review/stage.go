package review

import "fmt"

// Stage is one analysis pass over the PR diff.
type Stage string

const (
	StageStyle        Stage = "style"
	StageBugs         Stage = "bugs"
	StagePerformance  Stage = "performance"
	StageBestPractice Stage = "best_practice"
)

// IssueType returns the issue category produced by this stage.
func (s Stage) IssueType() IssueType {
	switch s {
	case StageBugs:
		return IssueBug
	case StagePerformance:
		return IssuePerformance
	case StageBestPractice:
		return IssueBestPractice
	default:
		return IssueStyle
	}
}

// Describe returns the human-readable focus of the stage, used in
// progress messages and prompts.
func (s Stage) Describe() string {
	switch s {
	case StageStyle:
		return "code style and formatting"
	case StageBugs:
		return "potential bugs and errors"
	case StagePerformance:
		return "performance issues"
	case StageBestPractice:
		return "best practices"
	default:
		return string(s)
	}
}

// Depth selects which stages run for a task.
type Depth string

const (
	DepthQuick    Depth = "quick"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

// ParseDepth validates a client-supplied depth string. Empty defaults
// to standard; anything else unknown is rejected at submission time.
func ParseDepth(s string) (Depth, error) {
	switch Depth(s) {
	case DepthQuick, DepthStandard, DepthDeep:
		return Depth(s), nil
	case "":
		return DepthStandard, nil
	default:
		return "", fmt.Errorf("unknown analysis depth %q (want quick, standard, or deep)", s)
	}
}

// Plan returns the ordered stage sequence for a depth. Stage selection
// is the only depth-dependent decision in the pipeline; extending the
// planner is a one-place change.
func Plan(depth Depth) ([]Stage, error) {
	switch depth {
	case DepthQuick:
		return []Stage{StageStyle}, nil
	case DepthStandard:
		return []Stage{StageStyle, StageBugs, StagePerformance}, nil
	case DepthDeep:
		return []Stage{StageStyle, StageBugs, StagePerformance, StageBestPractice}, nil
	default:
		return nil, fmt.Errorf("unknown analysis depth %q", depth)
	}
}
