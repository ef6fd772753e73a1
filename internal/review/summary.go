package review

import "fmt"

// Summarize builds the one-sentence result overview: total issue count
// plus the breakdown by severity.
func Summarize(issues []Issue, fileCount int) string {
	if len(issues) == 0 {
		return fmt.Sprintf("No issues found across %d changed %s.",
			fileCount, plural(fileCount, "file", "files"))
	}

	var high, medium, low int
	for _, is := range issues {
		switch is.Severity {
		case SeverityHigh:
			high++
		case SeverityMedium:
			medium++
		default:
			low++
		}
	}

	return fmt.Sprintf("Found %d %s across %d changed %s: %d high, %d medium, %d low severity.",
		len(issues), plural(len(issues), "issue", "issues"),
		fileCount, plural(fileCount, "file", "files"),
		high, medium, low)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
