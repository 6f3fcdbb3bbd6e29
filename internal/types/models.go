package types

import "time"

// CallRecordingMetadata is one row of the call tracking sheet.
type CallRecordingMetadata struct {
	Date          string `json:"date"`
	Name          string `json:"name"`
	IssueType     string `json:"issueType"`
	RecordingLink string `json:"recordingLink"`
	CallingNumber string `json:"callingNumber"`
	RowNumber     int    `json:"rowNumber"`
}

// SpeakerToken is one diarized unit from the STT backend, timings in seconds.
// The speaker label is opaque and stable only within a single transcription job.
type SpeakerToken struct {
	Text      string  `json:"text"`
	Speaker   string  `json:"speaker"`
	StartTime float64 `json:"startTime,omitempty"`
	EndTime   float64 `json:"endTime,omitempty"`
	IsFinal   bool    `json:"isFinal,omitempty"`
}

type SpeakerRole string

const (
	RoleAgent   SpeakerRole = "agent"
	RolePartner SpeakerRole = "partner"
)

// TranscriptionSegment is a maximal run of consecutive tokens from one role.
type TranscriptionSegment struct {
	Text      string      `json:"text"`
	Timestamp float64     `json:"timestamp"`
	Speaker   SpeakerRole `json:"speaker"`
}

type SentimentResult struct {
	Overall    string  `json:"overall"`
	Confidence float64 `json:"confidence"`
	Details    string  `json:"details"`
}

// SatisfactionScore holds the partner satisfaction judgment. Score is
// clamped to [0, MaxScore] before persisting.
type SatisfactionScore struct {
	Score     int    `json:"score"`
	MaxScore  int    `json:"maxScore"`
	Reasoning string `json:"reasoning"`
}

// CallAnalysis is the union of the independent LLM judgments for one call.
type CallAnalysis struct {
	Summary                  string            `json:"summary"`
	ProblemFaced             string            `json:"problemFaced"`
	SolutionPresented        string            `json:"solutionPresented"`
	AgentSentiment           SentimentResult   `json:"agentSentiment"`
	PartnerSentiment         SentimentResult   `json:"partnerSentiment"`
	PartnerSatisfactionScore SatisfactionScore `json:"partnerSatisfactionScore"`
}

type CallMetadata struct {
	Date          string    `json:"date"`
	Name          string    `json:"name"`
	IssueType     string    `json:"issueType"`
	CallingNumber string    `json:"callingNumber"`
	RecordingLink string    `json:"recordingLink"`
	ProcessedAt   time.Time `json:"processedAt"`
	CallDuration  int       `json:"callDuration"`
}

type TranscriptionData struct {
	AgentSegments   []TranscriptionSegment `json:"agentSegments"`
	PartnerSegments []TranscriptionSegment `json:"partnerSegments"`
	FullTranscript  string                 `json:"fullTranscript"`
}

// ProcessedCallData is the persisted artifact, one JSON file per call.
// It is the sole contract with downstream consumers and is never mutated
// after being written.
type ProcessedCallData struct {
	Metadata      CallMetadata      `json:"metadata"`
	Transcription TranscriptionData `json:"transcription"`
	Analysis      CallAnalysis      `json:"analysis"`
}
