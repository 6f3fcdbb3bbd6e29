package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"call-insights-go/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func writeArtifact(t *testing.T, dir, name string, processedAt time.Time, score int, sentiment string, duration int) {
	t.Helper()
	data := types.ProcessedCallData{
		Metadata: types.CallMetadata{
			Date:          "1/29/26 1:45 PM",
			Name:          "Jyoti R.",
			IssueType:     "battery stuck",
			CallingNumber: "7248888738",
			RecordingLink: "https://drive.google.com/file/d/abc/view",
			ProcessedAt:   processedAt,
			CallDuration:  duration,
		},
		Transcription: types.TranscriptionData{
			AgentSegments: []types.TranscriptionSegment{
				{Text: "hello", Speaker: types.RoleAgent, Timestamp: 0},
			},
			PartnerSegments: []types.TranscriptionSegment{
				{Text: "battery stuck", Speaker: types.RolePartner, Timestamp: 2.5},
			},
			FullTranscript: "Agent: hello\n\nPartner: battery stuck",
		},
		Analysis: types.CallAnalysis{
			Summary:                  "partner reported a stuck battery",
			ProblemFaced:             "battery stuck",
			SolutionPresented:        "remote reset",
			AgentSentiment:           types.SentimentResult{Overall: "calm/composed", Confidence: 0.9},
			PartnerSentiment:         types.SentimentResult{Overall: sentiment, Confidence: 0.8},
			PartnerSatisfactionScore: types.SatisfactionScore{Score: score, MaxScore: 10},
		},
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), encoded, 0o644); err != nil {
		t.Fatal(err)
	}
}

func testRouter(t *testing.T, dir string) *gin.Engine {
	t.Helper()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return Router(store, nil, "*")
}

func doGet(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r := testRouter(t, t.TempDir())
	w := doGet(t, r, "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestCallsListNewestFirstWithoutTranscripts(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 29, 10, 0, 0, 0, time.UTC)
	writeArtifact(t, dir, "call_old.json", base, 6, "neutral", 100)
	writeArtifact(t, dir, "call_new.json", base.Add(time.Hour), 9, "happy", 200)

	w := doGet(t, testRouter(t, dir), "/api/calls")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}

	var resp struct {
		Calls []map[string]json.RawMessage `json:"calls"`
		Total int                          `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Calls) != 2 {
		t.Fatalf("total = %d, calls = %d", resp.Total, len(resp.Calls))
	}

	var file string
	json.Unmarshal(resp.Calls[0]["file"], &file)
	if file != "call_new.json" {
		t.Errorf("first item = %q, want newest", file)
	}
	if _, ok := resp.Calls[0]["transcription"]; ok {
		t.Error("list view must not include transcripts")
	}
}

func TestCallsListPagination(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		writeArtifact(t, dir, fmt.Sprintf("call_%d.json", i), base.Add(time.Duration(i)*time.Hour), 5, "neutral", 60)
	}
	r := testRouter(t, dir)

	w := doGet(t, r, "/api/calls?limit=2&skip=1")
	var resp struct {
		Calls []callListItem `json:"calls"`
		Total int            `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 5 || len(resp.Calls) != 2 {
		t.Errorf("total = %d, page = %d", resp.Total, len(resp.Calls))
	}
	// Newest first: skipping one lands on the second-newest.
	if resp.Calls[0].File != "call_3.json" {
		t.Errorf("page starts at %q", resp.Calls[0].File)
	}
}

func TestCallDetail(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "call_x.json", time.Now().UTC(), 7, "happy", 42)
	r := testRouter(t, dir)

	w := doGet(t, r, "/api/calls/call_x.json")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var data types.ProcessedCallData
	if err := json.Unmarshal(w.Body.Bytes(), &data); err != nil {
		t.Fatal(err)
	}
	if data.Transcription.FullTranscript == "" {
		t.Error("detail view must include the transcript")
	}
	if data.Analysis.PartnerSatisfactionScore.Score != 7 {
		t.Errorf("score = %d", data.Analysis.PartnerSatisfactionScore.Score)
	}
}

func TestCallDetailRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "call_x.json", time.Now().UTC(), 7, "happy", 42)
	r := testRouter(t, dir)

	for _, name := range []string{"missing.json", "call_x.txt", "..%2Fsecrets.json"} {
		w := doGet(t, r, "/api/calls/"+name)
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %q status = %d, want 404", name, w.Code)
		}
	}
}

func TestAnalyticsSummary(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().UTC()
	writeArtifact(t, dir, "a.json", base, 8, "happy", 120)
	writeArtifact(t, dir, "b.json", base.Add(time.Minute), 5, "frustrated", 60)
	writeArtifact(t, dir, "c.json", base.Add(2*time.Minute), 8, "happy", 90)

	w := doGet(t, testRouter(t, dir), "/api/analytics/summary")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		TotalCalls            int            `json:"totalCalls"`
		AvgSatisfactionScore  float64        `json:"avgSatisfactionScore"`
		AvgDurationSeconds    float64        `json:"avgDurationSeconds"`
		SentimentDistribution map[string]int `json:"sentimentDistribution"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalCalls != 3 {
		t.Errorf("totalCalls = %d", resp.TotalCalls)
	}
	if resp.AvgSatisfactionScore != 7 {
		t.Errorf("avgSatisfactionScore = %v, want 7", resp.AvgSatisfactionScore)
	}
	if resp.AvgDurationSeconds != 90 {
		t.Errorf("avgDurationSeconds = %v, want 90", resp.AvgDurationSeconds)
	}
	if resp.SentimentDistribution["happy"] != 2 || resp.SentimentDistribution["frustrated"] != 1 {
		t.Errorf("sentimentDistribution = %v", resp.SentimentDistribution)
	}
}

func TestAnalyticsSummaryEmpty(t *testing.T) {
	w := doGet(t, testRouter(t, t.TempDir()), "/api/analytics/summary")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["totalCalls"].(float64) != 0 {
		t.Errorf("totalCalls = %v", resp["totalCalls"])
	}
	if resp["avgSatisfactionScore"].(float64) != 0 {
		t.Errorf("avgSatisfactionScore = %v", resp["avgSatisfactionScore"])
	}
}

func TestRunsRouteAbsentWithoutLedger(t *testing.T) {
	w := doGet(t, testRouter(t, t.TempDir()), "/api/runs")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no ledger is configured", w.Code)
	}
}

func TestStoreIgnoresMalformedArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "good.json", time.Now().UTC(), 7, "neutral", 30)
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	artifacts, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(artifacts) != 1 || artifacts[0].File != "good.json" {
		t.Errorf("artifacts = %+v", artifacts)
	}
}
