// Package diff3 is the textual three-way merge adapter. It reconciles two
// line-level edit scripts against a common base and reports conflicts with
// git-style markers. The merge engine treats it as a black box over file
// bytes.
package diff3

import (
	"bytes"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Result is the outcome of a three-way merge. When Conflict is false,
// Merged holds the reconciled bytes. When Conflict is true, Merged is nil
// and Annotated holds the marker-annotated text.
type Result struct {
	Merged    []byte
	Conflict  bool
	Annotated []byte
}

// hunk replaces base lines [baseStart, baseEnd) with lines.
type hunk struct {
	baseStart int
	baseEnd   int
	lines     []string
}

// Merge3 merges origin and dest against base. Labels annotate the conflict
// markers.
func Merge3(origin, base, dest []byte, originLabel, destLabel string) Result {
	if bytes.Equal(origin, dest) {
		return Result{Merged: origin}
	}
	if bytes.Equal(base, origin) {
		return Result{Merged: dest}
	}
	if bytes.Equal(base, dest) {
		return Result{Merged: origin}
	}

	baseLines := splitLines(string(base))
	originHunks := diffHunks(string(base), string(origin))
	destHunks := diffHunks(string(base), string(dest))

	var out []string
	var conflict bool
	pos := 0
	oi, di := 0, 0

	for oi < len(originHunks) || di < len(destHunks) {
		switch {
		case di >= len(destHunks) || (oi < len(originHunks) && !overlaps(originHunks[oi], destHunks[di]) && originHunks[oi].baseStart < destHunks[di].baseStart):
			h := originHunks[oi]
			out = append(out, baseLines[pos:h.baseStart]...)
			out = append(out, h.lines...)
			pos = h.baseEnd
			oi++
		case oi >= len(originHunks) || (di < len(destHunks) && !overlaps(originHunks[oi], destHunks[di])):
			h := destHunks[di]
			out = append(out, baseLines[pos:h.baseStart]...)
			out = append(out, h.lines...)
			pos = h.baseEnd
			di++
		default:
			// Overlapping region: widen it while hunks from either side
			// keep intersecting, then compare each side's rendering.
			rs := min(originHunks[oi].baseStart, destHunks[di].baseStart)
			re := max(originHunks[oi].baseEnd, destHunks[di].baseEnd)
			oStart, dStart := oi, di
			oi++
			di++
			for {
				grew := false
				for oi < len(originHunks) && originHunks[oi].baseStart < re {
					re = max(re, originHunks[oi].baseEnd)
					oi++
					grew = true
				}
				for di < len(destHunks) && destHunks[di].baseStart < re {
					re = max(re, destHunks[di].baseEnd)
					di++
					grew = true
				}
				if !grew {
					break
				}
			}
			oVersion := renderRegion(baseLines, rs, re, originHunks[oStart:oi])
			dVersion := renderRegion(baseLines, rs, re, destHunks[dStart:di])
			out = append(out, baseLines[pos:rs]...)
			if equalLines(oVersion, dVersion) {
				out = append(out, oVersion...)
			} else {
				conflict = true
				out = append(out, markerLine("<<<<<<< ", originLabel))
				out = append(out, oVersion...)
				out = append(out, markerLine("======= ", ""))
				out = append(out, dVersion...)
				out = append(out, markerLine(">>>>>>> ", destLabel))
			}
			pos = re
		}
	}
	out = append(out, baseLines[pos:]...)

	merged := []byte(strings.Join(out, ""))
	if conflict {
		return Result{Conflict: true, Annotated: merged}
	}
	return Result{Merged: merged}
}

// diffHunks computes the base→side edit script as replacement hunks over
// base line ranges, using line-mode diffing.
func diffHunks(base, side string) []hunk {
	dmp := diffmatchpatch.New()
	c1, c2, lineArray := dmp.DiffLinesToChars(base, side)
	diffs := dmp.DiffMain(c1, c2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var hunks []hunk
	baseIdx := 0
	i := 0
	for i < len(diffs) {
		if diffs[i].Type == diffmatchpatch.DiffEqual {
			baseIdx += len(splitLines(diffs[i].Text))
			i++
			continue
		}
		del := 0
		var ins []string
		for i < len(diffs) && diffs[i].Type != diffmatchpatch.DiffEqual {
			if diffs[i].Type == diffmatchpatch.DiffDelete {
				del += len(splitLines(diffs[i].Text))
			} else {
				ins = append(ins, splitLines(diffs[i].Text)...)
			}
			i++
		}
		hunks = append(hunks, hunk{baseStart: baseIdx, baseEnd: baseIdx + del, lines: ins})
		baseIdx += del
	}
	return hunks
}

// overlaps reports whether two hunks touch the same base region. Hunks
// anchored at the same point (including two pure insertions) collide.
func overlaps(a, b hunk) bool {
	if a.baseStart == b.baseStart {
		return true
	}
	return a.baseStart < b.baseEnd && b.baseStart < a.baseEnd
}

// renderRegion applies a side's hunks to base lines [rs, re).
func renderRegion(baseLines []string, rs, re int, hunks []hunk) []string {
	var out []string
	pos := rs
	for _, h := range hunks {
		out = append(out, baseLines[pos:h.baseStart]...)
		out = append(out, h.lines...)
		pos = h.baseEnd
	}
	out = append(out, baseLines[pos:re]...)
	return out
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func markerLine(marker, label string) string {
	return strings.TrimRight(marker+label, " ") + "\n"
}

// splitLines splits text into lines with their terminators attached. The
// empty string yields no lines; a final line without a newline is kept.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			lines = append(lines, text)
			return lines
		}
		lines = append(lines, text[:i+1])
		text = text[i+1:]
		if text == "" {
			return lines
		}
	}
}
