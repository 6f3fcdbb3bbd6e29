package diarize

import (
	"strings"

	"call-insights-go/internal/types"
)

// BuildSegments groups consecutive same-role tokens into segments. A new
// segment starts whenever the resolved role changes; labels missing from
// roles resolve to agent. The segment timestamp is the start time of its
// first token.
func BuildSegments(tokens []types.SpeakerToken, roles map[string]types.SpeakerRole) []types.TranscriptionSegment {
	var segments []types.TranscriptionSegment
	var current *types.TranscriptionSegment
	var buf strings.Builder

	flush := func() {
		if current != nil {
			current.Text = strings.TrimSpace(buf.String())
			segments = append(segments, *current)
			current = nil
			buf.Reset()
		}
	}

	for _, t := range tokens {
		role := resolveRole(t.Speaker, roles)
		if current == nil || current.Speaker != role {
			flush()
			current = &types.TranscriptionSegment{
				Timestamp: t.StartTime,
				Speaker:   role,
			}
		}
		buf.WriteString(t.Text)
	}
	flush()
	return segments
}

func resolveRole(label string, roles map[string]types.SpeakerRole) types.SpeakerRole {
	if r, ok := roles[label]; ok {
		return r
	}
	return types.RoleAgent
}

// RenderTranscript joins role-labeled segment lines with a blank line
// between them, preserving segment order.
func RenderTranscript(segments []types.TranscriptionSegment) string {
	lines := make([]string, 0, len(segments))
	for _, s := range segments {
		label := "Agent"
		if s.Speaker == types.RolePartner {
			label = "Partner"
		}
		lines = append(lines, label+": "+s.Text)
	}
	return strings.Join(lines, "\n\n")
}

// SplitByRole partitions segments into agent and partner lists, keeping
// chronological order within each.
func SplitByRole(segments []types.TranscriptionSegment) (agent, partner []types.TranscriptionSegment) {
	for _, s := range segments {
		if s.Speaker == types.RolePartner {
			partner = append(partner, s)
		} else {
			agent = append(agent, s)
		}
	}
	return agent, partner
}

// RoleText concatenates the text of one role's segments, used as LLM input.
func RoleText(segments []types.TranscriptionSegment, role types.SpeakerRole) string {
	var parts []string
	for _, s := range segments {
		if s.Speaker == role {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, " ")
}
