package analyzer

import (
	"fmt"
	"strings"
)

// The eight sentiment labels the model is held to. Order matters only for
// prompt rendering.
var sentimentLabels = []string{
	"calm/composed", "happy", "neutral", "concerned",
	"frustrated", "sad", "angry", "infuriated",
}

func summaryPrompt(transcript string) string {
	return fmt.Sprintf(`You are a call center analyst. Summarize this support call in 2-3 sentences covering the issue raised, how the agent responded, and the outcome.

Transcript:
%s

Return only the summary text.`, transcript)
}

func problemPrompt(transcript string) string {
	return fmt.Sprintf(`You are a call center analyst. From this support call transcript, identify the problem the partner (customer) faced. Be specific and concise.

Transcript:
%s

Return only a short description of the problem.`, transcript)
}

func solutionPrompt(transcript string) string {
	return fmt.Sprintf(`You are a call center analyst. From this support call transcript, describe the solution or next step the agent presented to the partner. If none was offered, say so.

Transcript:
%s

Return only a short description of the solution presented.`, transcript)
}

func sentimentPrompt(who, text string) string {
	return fmt.Sprintf(`You are a call center analyst. Classify the overall sentiment of the %s based only on their side of the conversation below.

%s side of the call:
%s

Pick EXACTLY ONE label from this list: %s.

Return ONLY strict JSON in this shape, with no commentary:
{"overall": "<one label>", "confidence": <number between 0 and 1>, "details": "<one-sentence justification>"}`, who, who, text, strings.Join(sentimentLabels, ", "))
}

func satisfactionPrompt(transcript string) string {
	return fmt.Sprintf(`You are a call center analyst. Rate how satisfied the partner (customer) was at the end of this support call, as an integer score from 0 (completely dissatisfied) to 10 (completely satisfied).

Transcript:
%s

Return ONLY strict JSON in this shape, with no commentary:
{"score": <integer 0-10>, "reasoning": "<brief reasoning>"}`, transcript)
}
