package analyzer

import (
	"encoding/json"
	"strings"

	"call-insights-go/internal/types"
)

// Fallbacks used when the model returns something other than the strict
// JSON it was asked for. Malformed output degrades gracefully; transport
// failure does not (see AnalyzeCall).
const (
	fallbackSentiment  = "neutral"
	fallbackConfidence = 0.5
	fallbackScore      = 5
	maxSatisfaction    = 10
	rawDetailLimit     = 200
)

func parseSentiment(raw string) types.SentimentResult {
	var parsed struct {
		Overall    string  `json:"overall"`
		Confidence float64 `json:"confidence"`
		Details    string  `json:"details"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil || parsed.Overall == "" {
		return types.SentimentResult{
			Overall:    fallbackSentiment,
			Confidence: fallbackConfidence,
			Details:    truncate(raw, rawDetailLimit),
		}
	}
	return types.SentimentResult{
		Overall:    strings.ToLower(strings.TrimSpace(parsed.Overall)),
		Confidence: parsed.Confidence,
		Details:    parsed.Details,
	}
}

func parseSatisfaction(raw string) types.SatisfactionScore {
	var parsed struct {
		Score     float64 `json:"score"`
		Reasoning string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return types.SatisfactionScore{
			Score:     fallbackScore,
			MaxScore:  maxSatisfaction,
			Reasoning: truncate(raw, rawDetailLimit),
		}
	}
	return types.SatisfactionScore{
		Score:     clampScore(int(parsed.Score)),
		MaxScore:  maxSatisfaction,
		Reasoning: parsed.Reasoning,
	}
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > maxSatisfaction {
		return maxSatisfaction
	}
	return n
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

// extractJSON finds the first balanced JSON object in a string, stripping
// the markdown fences models like to wrap JSON in.
func extractJSON(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, fence := range []string{"```json", "```yaml", "```text", "```", "`json", "`"} {
		s = strings.ReplaceAll(s, fence, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return s
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return s
}
