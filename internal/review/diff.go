package review

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// FileDiff is one changed file's portion of the PR diff, the unit fed
// to each analysis stage.
type FileDiff struct {
	Path  string
	Patch string
}

// SplitDiff splits a unified multi-file diff into per-file chunks.
// Deleted files are skipped: they carry no reviewable content.
func SplitDiff(raw string) ([]FileDiff, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	fds, err := diff.ParseMultiFileDiff([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	files := make([]FileDiff, 0, len(fds))
	for _, fd := range fds {
		if fd.NewName == "/dev/null" {
			continue
		}
		patch, err := diff.PrintFileDiff(fd)
		if err != nil {
			return nil, fmt.Errorf("print file diff for %s: %w", fd.NewName, err)
		}
		files = append(files, FileDiff{
			Path:  strings.TrimPrefix(fd.NewName, "b/"),
			Patch: string(patch),
		})
	}
	return files, nil
}
