package diarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"call-insights-go/internal/logger"
	"call-insights-go/internal/types"
)

// Classifier maps opaque diarization labels to semantic roles.
type Classifier interface {
	Classify(ctx context.Context, tokens []types.SpeakerToken) (map[string]types.SpeakerRole, error)
}

// FirstSpeaker is the default classifier: whoever is captured speaking
// first answered the call, so the first distinct label is the agent and
// every later label is the partner. This is a heuristic with a known
// failure mode (IVR chimes, three-way calls captured out of answering
// order); swap in LLMClassifier when that matters.
type FirstSpeaker struct{}

func (FirstSpeaker) Classify(_ context.Context, tokens []types.SpeakerToken) (map[string]types.SpeakerRole, error) {
	roles := map[string]types.SpeakerRole{}
	for _, t := range tokens {
		if t.Speaker == "" {
			continue
		}
		if _, seen := roles[t.Speaker]; seen {
			continue
		}
		if len(roles) == 0 {
			roles[t.Speaker] = types.RoleAgent
		} else {
			roles[t.Speaker] = types.RolePartner
		}
	}
	return roles, nil
}

// Completer is the one LLM call LLMClassifier needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMClassifier asks the model to assign roles from a transcript sample.
// It is the documented alternative to FirstSpeaker and is not wired into
// the default pipeline; on any model or parse failure it falls back to
// the first-speaker heuristic.
type LLMClassifier struct {
	Completer   Completer
	SampleLimit int // tokens included in the prompt, default 80
}

func (c *LLMClassifier) Classify(ctx context.Context, tokens []types.SpeakerToken) (map[string]types.SpeakerRole, error) {
	log := logger.Component("diarize")

	limit := c.SampleLimit
	if limit <= 0 {
		limit = 80
	}
	sample := tokens
	if len(sample) > limit {
		sample = sample[:limit]
	}
	labels := map[string]bool{}
	var lines []string
	for _, t := range sample {
		if t.Speaker == "" {
			continue
		}
		labels[t.Speaker] = true
		lines = append(lines, fmt.Sprintf("[%s] %s", t.Speaker, strings.TrimSpace(t.Text)))
	}
	if len(labels) == 0 {
		return map[string]types.SpeakerRole{}, nil
	}

	prompt := fmt.Sprintf(`This is the opening of a support call between a support agent and a partner (customer). Speaker labels are in brackets.

%s

Decide which label is the support agent and which is the partner. Return ONLY a JSON object mapping each label to "agent" or "partner", e.g. {"1": "agent", "2": "partner"}.`,
		strings.Join(lines, "\n"))

	raw, err := c.Completer.Complete(ctx, prompt)
	if err != nil {
		log.WithError(err).Warn("llm classification failed, falling back to first-speaker heuristic")
		return FirstSpeaker{}.Classify(ctx, tokens)
	}

	var mapped map[string]string
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &mapped); err != nil {
		log.WithError(err).Warn("llm classification unparseable, falling back to first-speaker heuristic")
		return FirstSpeaker{}.Classify(ctx, tokens)
	}

	roles := map[string]types.SpeakerRole{}
	for label, role := range mapped {
		if strings.EqualFold(strings.TrimSpace(role), string(types.RoleAgent)) {
			roles[label] = types.RoleAgent
		} else {
			roles[label] = types.RolePartner
		}
	}
	return roles, nil
}

func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return s
	}
	return s[start : end+1]
}
