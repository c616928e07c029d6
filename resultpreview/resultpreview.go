// Package resultpreview compacts a role's raw output into a short preview
// before it is placed on the blackboard, so a long Rework loop doesn't
// force the Orchestrator to re-read every prior attempt's full transcript
// on each iteration. Grounded on the teacher's clampPreview
// (runtime/agent/runtime/result_preview.go), which normalizes whitespace
// and bounds a tool result to a fixed length for UI display; the same
// normalize-then-clamp shape is applied here to a role's output instead of
// a tool result.
package resultpreview

import "strings"

// DefaultMaxRunes matches the teacher's own UI preview length.
const DefaultMaxRunes = 140

// Clamp collapses consecutive whitespace runs to a single space, trims the
// result, and bounds it to maxRunes runes. maxRunes <= 0 disables clamping,
// returning the whitespace-normalized string unbounded.
func Clamp(s string, maxRunes int) string {
	if s == "" {
		return ""
	}

	out := make([]rune, 0, len(s))
	prevSpace := false
	for _, r := range s {
		switch r {
		case '\n', '\r', '\t', ' ':
			if !prevSpace {
				out = append(out, ' ')
			}
			prevSpace = true
		default:
			out = append(out, r)
			prevSpace = false
		}
	}

	if maxRunes <= 0 || len(out) <= maxRunes {
		return strings.TrimSpace(string(out))
	}
	return strings.TrimSpace(string(out[:maxRunes]))
}
