package llm

import (
	"fmt"

	"github.com/akhil1parekh/github-pr-review-agent/internal/review"
)

// stageFocus lists what each stage asks the model to look for.
var stageFocus = map[review.Stage]string{
	review.StageStyle: `- Inconsistent naming conventions
- Improper indentation or formatting
- Line length issues
- Missing or inconsistent comments`,
	review.StageBugs: `- Logical errors and off-by-one errors
- Nil/undefined references
- Race conditions
- Resource leaks and missing error handling`,
	review.StagePerformance: `- Inefficient algorithms and unnecessary computation
- Redundant operations inside loops
- Inefficient data structures
- Unbounded memory growth`,
	review.StageBestPractice: `- Violations of idiomatic conventions
- Missing input validation
- Poor separation of concerns
- Hard-coded values that should be configurable`,
}

func systemPrompt(stage review.Stage) string {
	return fmt.Sprintf(`You are an expert code reviewer focusing on %s.
Analyze the provided diff and identify issues such as:
%s

Return a JSON list of issues, where each issue has:
- "line": the line number in the new file (integer, omit if not line-addressable)
- "description": description of the issue (string)
- "severity": "low", "medium", or "high" (string)
- "suggestion": how to fix the issue (string)

If no issues are found, return an empty list. Return only JSON.`,
		stage.Describe(), stageFocus[stage])
}

func userPrompt(file review.FileDiff) string {
	return fmt.Sprintf("File: %s\n\n```diff\n%s\n```\n\nReturn a JSON list of issues.",
		file.Path, file.Patch)
}
