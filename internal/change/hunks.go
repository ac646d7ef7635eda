package change

import (
	"strings"

	"github.com/patchgate-project/patchgate/pkg/model"
)

// resyncWindow is the number of consecutive equal line pairs that must
// follow an equal pair inside an open hunk before the hunk is closed.
// Smaller runs of coincidental matches are folded into the hunk so a
// change does not fragment into many tiny hunks.
const resyncWindow = 3

// SplitLines splits file content into lines without trailing newlines.
// Empty content yields a single empty line, matching how editors count.
func SplitLines(content string) []string {
	return strings.Split(content, "\n")
}

// lineAt returns the 1-based line i, or "" when i is out of range.
func lineAt(lines []string, i int) string {
	if i >= 1 && i <= len(lines) {
		return lines[i-1]
	}
	return ""
}

// resyncedAt reports whether the resyncWindow line pairs starting at the
// 1-based index from are all equal. Out-of-range lines compare as "".
func resyncedAt(original, modified []string, from int) bool {
	for i := from; i < from+resyncWindow; i++ {
		if lineAt(original, i) != lineAt(modified, i) {
			return false
		}
	}
	return true
}

// ComputeHunks walks both versions over a common 1-based line index and
// groups differing line pairs into hunks. A pair where one side has run
// out compares against "" and contributes "" to the captured text. An
// open hunk absorbs equal pairs until resyncWindow consecutive equal
// pairs follow, at which point it closes on the previous line. The
// result is deterministic and strictly increasing in StartLine.
func ComputeHunks(original, modified []string) []model.Hunk {
	n := len(original)
	if len(modified) > n {
		n = len(modified)
	}

	var hunks []model.Hunk
	var open *model.Hunk
	for i := 1; i <= n; i++ {
		o := lineAt(original, i)
		m := lineAt(modified, i)

		if o == m {
			if open == nil {
				continue
			}
			if resyncedAt(original, modified, i+1) {
				open.EndLine = i - 1
				hunks = append(hunks, *open)
				open = nil
				continue
			}
			// Coincidental match inside a larger change; keep capturing.
			open.OriginalLines = append(open.OriginalLines, o)
			open.ModifiedLines = append(open.ModifiedLines, m)
			continue
		}

		if open == nil {
			open = &model.Hunk{StartLine: i, Status: model.StatusPending}
		}
		open.OriginalLines = append(open.OriginalLines, o)
		open.ModifiedLines = append(open.ModifiedLines, m)
	}
	if open != nil {
		open.EndLine = n
		hunks = append(hunks, *open)
	}
	return hunks
}

// ComputeStats classifies every captured hunk position in that order:
// past the end of the original it counts as added, past the end of the
// modified as removed, and a differing in-range pair as modified. An
// equal pair folded into a hunk counts as nothing only while both sides
// are in range; a folded empty pair past the original's end is a
// genuine added line and counts as such.
func ComputeStats(hunks []model.Hunk, originalLen, modifiedLen int) model.LineStats {
	var stats model.LineStats
	for _, h := range hunks {
		for k := range h.OriginalLines {
			line := h.StartLine + k
			switch {
			case line > originalLen:
				stats.Added++
			case line > modifiedLen:
				stats.Removed++
			case h.OriginalLines[k] != h.ModifiedLines[k]:
				stats.Modified++
			}
		}
	}
	return stats
}
