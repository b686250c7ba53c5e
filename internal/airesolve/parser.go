package airesolve

import (
	"fmt"
	"regexp"
	"strings"
)

var fencedBlockPattern = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\\n(.*?)```")

// extractCodeBlock returns the content of the first fenced code block in
// response, or false if none is present.
func extractCodeBlock(response string) (string, bool) {
	match := fencedBlockPattern.FindStringSubmatch(response)
	if match == nil {
		return "", false
	}

	return match[1], true
}

// extractLocationBlock finds the resolution for one batched location,
// tagged by a "--- CONFLICT_N RESOLVED ---" marker immediately preceding
// its fenced code block.
func extractLocationBlock(response string, index int) (string, bool) {
	marker := fmt.Sprintf("--- CONFLICT_%d RESOLVED ---", index+1)

	markerIdx := strings.Index(response, marker)
	if markerIdx < 0 {
		return "", false
	}

	rest := response[markerIdx+len(marker):]

	return extractCodeBlock(rest)
}

// conflictHunk is one git-style conflict-marker section.
type conflictHunk struct {
	before string
	ours   string
	theirs string
	after  string
}

var (
	markerStart = "<<<<<<<"
	markerMid   = "======="
	markerEnd   = ">>>>>>>"
)

// splitConflictMarkers parses git-style conflict markers out of content,
// returning the ours and theirs sides of each hunk; the unconflicted text
// around the hunks is not captured.
func splitConflictMarkers(content string) ([]conflictHunk, bool) {
	lines := strings.Split(content, "\n")

	var hunks []conflictHunk

	i := 0

	for i < len(lines) {
		if !strings.HasPrefix(lines[i], markerStart) {
			i++

			continue
		}

		start := i
		mid := -1
		end := -1

		for j := start + 1; j < len(lines); j++ {
			if mid == -1 && strings.HasPrefix(lines[j], markerMid) {
				mid = j
			}

			if strings.HasPrefix(lines[j], markerEnd) {
				end = j

				break
			}
		}

		if mid == -1 || end == -1 {
			break
		}

		hunks = append(hunks, conflictHunk{
			ours:   strings.Join(lines[start+1:mid], "\n"),
			theirs: strings.Join(lines[mid+1:end], "\n"),
		})

		i = end + 1
	}

	return hunks, len(hunks) > 0
}

// stitchResolutions reconstructs the full file by replacing every
// conflict-marker hunk in content with its resolution, defaulting
// unresolved hunks to the "theirs" (feature-branch) side.
func stitchResolutions(content string, resolutions map[int]string) string {
	lines := strings.Split(content, "\n")

	var out []string

	hunkIndex := 0
	i := 0

	for i < len(lines) {
		if !strings.HasPrefix(lines[i], markerStart) {
			out = append(out, lines[i])
			i++

			continue
		}

		mid := -1
		end := -1

		for j := i + 1; j < len(lines); j++ {
			if mid == -1 && strings.HasPrefix(lines[j], markerMid) {
				mid = j
			}

			if strings.HasPrefix(lines[j], markerEnd) {
				end = j

				break
			}
		}

		if mid == -1 || end == -1 {
			out = append(out, lines[i])
			i++

			continue
		}

		if resolved, ok := resolutions[hunkIndex]; ok {
			out = append(out, resolved)
		} else {
			out = append(out, lines[mid+1:end]...)
		}

		hunkIndex++
		i = end + 1
	}

	return strings.Join(out, "\n")
}
