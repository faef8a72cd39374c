package store

import (
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// renderUnifiedDiff produces a human-readable unified diff of one edited
// artifact's whole record before and after a commit, serialized with sourcegraph/go-diff the way
// _examples/jinterlante1206-AleutianLocal/services/code_buddy/validate/patch.go
// parses unified diffs on the way in; here we go the other direction,
// building a FileDiff/Hunk and printing it, so a draft's
// user_modifications stay readable in a commit log or review tool
// instead of being opaque JSON.
func renderUnifiedDiff(path, before, after string) (string, error) {
	if before == after {
		return "", nil
	}
	beforeLines := splitLines(before)
	afterLines := splitLines(after)

	var body strings.Builder
	for _, l := range beforeLines {
		body.WriteString("-" + l + "\n")
	}
	for _, l := range afterLines {
		body.WriteString("+" + l + "\n")
	}

	fd := &diff.FileDiff{
		OrigName: path,
		NewName:  path,
		Hunks: []*diff.Hunk{
			{
				OrigStartLine: 1,
				OrigLines:     int32(len(beforeLines)),
				NewStartLine:  1,
				NewLines:      int32(len(afterLines)),
				Body:          []byte(body.String()),
			},
		},
	}
	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
