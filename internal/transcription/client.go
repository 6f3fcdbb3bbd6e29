package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"call-insights-go/internal/logger"
	"call-insights-go/internal/types"
)

// Terminal poll outcomes. Both abort the current record; neither is retried.
var (
	ErrNotFound    = errors.New("transcription job not found")
	ErrPollTimeout = errors.New("transcription polling timed out")
)

const (
	defaultPollInterval = time.Second
	defaultMaxPolls     = 300 // ~5 minutes at 1s
)

// Client drives the async STT backend through its per-call state machine:
// upload -> create -> poll -> fetch -> cleanup.
type Client struct {
	BaseURL         string
	APIKey          string
	Model           string
	LanguageHints   []string
	VocabularyHints []string

	HTTPClient   *http.Client
	PollInterval time.Duration
	MaxPolls     int
}

// Result is the final output of one transcription job.
type Result struct {
	Tokens   []types.SpeakerToken
	Duration float64 // seconds, derived from the last token
}

func NewClient(baseURL, apiKey string, vocabularyHints []string) *Client {
	return &Client{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		APIKey:          apiKey,
		Model:           "stt-async-v3",
		LanguageHints:   []string{"en", "hi"},
		VocabularyHints: vocabularyHints,
		HTTPClient:      &http.Client{Timeout: 60 * time.Second},
		PollInterval:    defaultPollInterval,
		MaxPolls:        defaultMaxPolls,
	}
}

// TranscribeAudio runs the full job for one local audio file. Remote
// cleanup of the job and file is best-effort and never fails the call.
func (c *Client) TranscribeAudio(ctx context.Context, localPath string) (*Result, error) {
	log := logger.Component("transcription").WithField("audio", filepath.Base(localPath))

	fileID, err := c.uploadFile(ctx, localPath)
	if err != nil {
		return nil, fmt.Errorf("upload audio: %w", err)
	}
	log.WithField("file_id", fileID).Debug("audio uploaded")

	jobID, err := c.createJob(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("create transcription job: %w", err)
	}
	log = log.WithField("job_id", jobID)
	log.Info("transcription job created")

	defer c.cleanup(jobID, fileID, log)

	if err := c.pollUntilDone(ctx, jobID, log); err != nil {
		return nil, err
	}

	tokens, err := c.fetchTokens(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}
	log.WithField("tokens", len(tokens)).Info("transcription completed")

	return &Result{Tokens: tokens, Duration: deriveDuration(tokens)}, nil
}

func (c *Client) uploadFile(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	_ = w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/files", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp struct {
		ID string `json:"id"`
	}
	if _, err := c.doJSON(req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("upload response missing file id")
	}
	return resp.ID, nil
}

func (c *Client) createJob(ctx context.Context, fileID string) (string, error) {
	payload := map[string]any{
		"file_id":                    fileID,
		"model":                      c.Model,
		"enable_speaker_diarization": true,
		"language_hints":             c.LanguageHints,
	}
	if len(c.VocabularyHints) > 0 {
		payload["context"] = strings.Join(c.VocabularyHints, ", ")
	}
	data, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/transcriptions", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp struct {
		ID string `json:"id"`
	}
	if _, err := c.doJSON(req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create response missing job id")
	}
	return resp.ID, nil
}

func (c *Client) pollUntilDone(ctx context.Context, jobID string, log *logrus.Entry) error {
	interval := c.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxPolls := c.MaxPolls
	if maxPolls <= 0 {
		maxPolls = defaultMaxPolls
	}

	for i := 0; i < maxPolls; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/transcriptions/"+jobID, nil)
		if err != nil {
			return err
		}
		var status struct {
			Status       string `json:"status"`
			ErrorMessage string `json:"error_message"`
		}
		code, err := c.doJSON(req, &status)
		if code == http.StatusNotFound {
			return ErrNotFound
		}
		if err != nil {
			log.WithError(err).Warn("poll attempt failed")
			continue
		}

		switch status.Status {
		case "completed":
			return nil
		case "error":
			return fmt.Errorf("transcription failed: %s", status.ErrorMessage)
		case "queued", "processing":
			continue
		default:
			log.WithField("status", status.Status).Warn("unknown job status")
		}
	}
	return ErrPollTimeout
}

func (c *Client) fetchTokens(ctx context.Context, jobID string) ([]types.SpeakerToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/transcriptions/"+jobID+"/transcript", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Tokens []wireToken `json:"tokens"`
	}
	if _, err := c.doJSON(req, &resp); err != nil {
		return nil, err
	}

	tokens := make([]types.SpeakerToken, 0, len(resp.Tokens))
	for _, t := range resp.Tokens {
		tokens = append(tokens, types.SpeakerToken{
			Text:      t.Text,
			Speaker:   speakerLabel(t.Speaker),
			StartTime: float64(t.StartMs) / 1000,
			EndTime:   float64(t.EndMs) / 1000,
			IsFinal:   t.IsFinal,
		})
	}
	return tokens, nil
}

// cleanup deletes the remote job and file. Best-effort: log and move on.
func (c *Client) cleanup(jobID, fileID string, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	for _, path := range []string{"/v1/transcriptions/" + jobID, "/v1/files/" + fileID} {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+path, nil)
		if err != nil {
			continue
		}
		c.authorize(req)
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("remote cleanup failed")
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			log.WithField("path", path).WithField("status", resp.StatusCode).Warn("remote cleanup rejected")
		}
	}
}

// wireToken carries millisecond offsets; the speaker label may arrive as
// either a string or a number depending on backend version.
type wireToken struct {
	Text    string `json:"text"`
	Speaker any    `json:"speaker"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	IsFinal bool   `json:"is_final"`
}

func speakerLabel(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

// deriveDuration: end of the last token when positive, else its start when
// positive, else zero.
func deriveDuration(tokens []types.SpeakerToken) float64 {
	if len(tokens) == 0 {
		return 0
	}
	last := tokens[len(tokens)-1]
	if last.EndTime > 0 {
		return last.EndTime
	}
	if last.StartTime > 0 {
		return last.StartTime
	}
	return 0
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
}

// doJSON executes req and decodes the body into target, returning the
// status code so callers can special-case 404.
func (c *Client) doJSON(req *http.Request, target any) (int, error) {
	c.authorize(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, target); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
