package track

import (
	"fmt"
	"strings"
)

// DiffSummary renders a line-capped, unified-diff-style summary between the
// previous and current normalized text. It is computed on demand for report
// consumers and never persisted.
func DiffSummary(prev, curr string, maxLines int) string {
	if maxLines <= 0 {
		maxLines = 12
	}
	prevLines := splitLines(Normalize(prev))
	currLines := splitLines(Normalize(curr))

	lines := diffLines(prevLines, currLines)
	if len(lines) == 0 {
		return ""
	}
	if len(lines) > maxLines {
		head := lines[:maxLines]
		head = append(head, fmt.Sprintf("... (+%d more)", len(lines)-maxLines))
		return strings.Join(head, "\n")
	}
	return strings.Join(lines, "\n")
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// diffLines produces -/+ hunks from an LCS alignment of the two sides.
func diffLines(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	// LCS table; inputs are bounded snapshots, so quadratic cost is fine.
	n, m := len(a), len(b)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var out []string
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			out = append(out, "- "+a[i])
			i++
		default:
			out = append(out, "+ "+b[j])
			j++
		}
	}
	for ; i < n; i++ {
		out = append(out, "- "+a[i])
	}
	for ; j < m; j++ {
		out = append(out, "+ "+b[j])
	}
	return out
}
