package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"call-insights-go/internal/diarize"
	"call-insights-go/internal/ledger"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/sheets"
	"call-insights-go/internal/transcription"
	"call-insights-go/internal/types"
)

// Pipeline stage contracts. The processor only sequences them; each stage
// owns its own retries and timeouts.
type MetadataSource interface {
	FetchCallRecordings(ctx context.Context) ([]types.CallRecordingMetadata, error)
}

type AudioFetcher interface {
	DownloadAudio(ctx context.Context, link, destName string) (string, error)
}

type Transcriber interface {
	TranscribeAudio(ctx context.Context, localPath string) (*transcription.Result, error)
}

type CallAnalyzer interface {
	AnalyzeCall(ctx context.Context, fullTranscript, agentText, partnerText string) (*types.CallAnalysis, error)
}

// Filter selects which sheet records a run covers. Precedence, first set
// wins: exact row > row range > date range > everything.
type Filter struct {
	Row              int
	RowFrom, RowTo   int
	DateFrom, DateTo time.Time
}

// Options tune a batch run.
type Options struct {
	OutputDir     string
	MaxConcurrent int
	DeleteAudio   bool
	DryRun        bool
	Classifier    diarize.Classifier
	Ledger        *ledger.Ledger // nil disables run recording
}

type Processor struct {
	Source   MetadataSource
	Audio    AudioFetcher
	STT      Transcriber
	Analyzer CallAnalyzer
	Opts     Options
}

func New(source MetadataSource, audio AudioFetcher, stt Transcriber, analyzer CallAnalyzer, opts Options) *Processor {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.Classifier == nil {
		opts.Classifier = diarize.FirstSpeaker{}
	}
	return &Processor{Source: source, Audio: audio, STT: stt, Analyzer: analyzer, Opts: opts}
}

// Run executes one batch. A metadata fetch or output-dir failure is fatal
// and returned; everything after that is isolated per record into stats.
func (p *Processor) Run(ctx context.Context, filter Filter) (*ProcessingStats, error) {
	log := logger.Component("processor")

	records, err := p.Source.FetchCallRecordings(ctx)
	if err != nil {
		log.WithError(err).Error("metadata fetch failed")
		return nil, fmt.Errorf("fetch call recordings: %w", err)
	}

	selected := applyFilter(records, filter)
	stats := newStats(len(selected), len(records)-len(selected))
	log.WithField("selected", len(selected)).WithField("skipped", stats.Skipped).Info("records selected")

	if p.Opts.DryRun {
		for _, rec := range selected {
			log.WithField("row", rec.RowNumber).
				WithField("date", rec.Date).
				WithField("name", rec.Name).
				WithField("issue", rec.IssueType).
				Info("dry run: would process")
		}
		stats.finish()
		return stats, nil
	}

	if err := os.MkdirAll(p.Opts.OutputDir, 0o755); err != nil {
		log.WithError(err).Error("cannot create output directory")
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var (
		outcomeMu sync.Mutex
		outcomes  []ledger.CallOutcome
	)

	// Records run in fixed-size chunks: each chunk joins fully, including
	// failed members, before the next starts.
	for start := 0; start < len(selected); start += p.Opts.MaxConcurrent {
		end := start + p.Opts.MaxConcurrent
		if end > len(selected) {
			end = len(selected)
		}
		chunk := selected[start:end]

		var wg sync.WaitGroup
		for _, rec := range chunk {
			wg.Add(1)
			go func(rec types.CallRecordingMetadata) {
				defer wg.Done()
				artifact, err := p.processRecord(ctx, rec)

				outcomeMu.Lock()
				defer outcomeMu.Unlock()
				if err != nil {
					stats.markFailed(rec.RowNumber, rec.RecordingLink, err)
					outcomes = append(outcomes, ledger.CallOutcome{
						RowNumber: rec.RowNumber, Error: err.Error(), RecordingLink: rec.RecordingLink,
					})
					log.WithField("row", rec.RowNumber).WithError(err).Error("record failed")
					return
				}
				stats.markProcessed()
				outcomes = append(outcomes, ledger.CallOutcome{
					RowNumber: rec.RowNumber, Artifact: artifact, RecordingLink: rec.RecordingLink,
				})
			}(rec)
		}
		wg.Wait()
	}

	stats.finish()
	p.report(stats)
	p.recordRun(ctx, stats, outcomes)
	return stats, nil
}

func (p *Processor) processRecord(ctx context.Context, rec types.CallRecordingMetadata) (string, error) {
	log := logger.Component("processor").WithField("row", rec.RowNumber)
	log.Info("processing record")

	destName := fmt.Sprintf("recording_row_%d.mp3", rec.RowNumber)
	localPath, err := p.Audio.DownloadAudio(ctx, rec.RecordingLink, destName)
	if err != nil {
		return "", err
	}

	result, err := p.STT.TranscribeAudio(ctx, localPath)
	if err != nil {
		return "", err
	}
	if len(result.Tokens) == 0 {
		return "", fmt.Errorf("no speech recognized in recording")
	}

	roles, err := p.Opts.Classifier.Classify(ctx, result.Tokens)
	if err != nil {
		return "", fmt.Errorf("classify speakers: %w", err)
	}

	segments := diarize.BuildSegments(result.Tokens, roles)
	full := diarize.RenderTranscript(segments)
	agentText := diarize.RoleText(segments, types.RoleAgent)
	partnerText := diarize.RoleText(segments, types.RolePartner)

	analysis, err := p.Analyzer.AnalyzeCall(ctx, full, agentText, partnerText)
	if err != nil {
		return "", err
	}

	agentSegs, partnerSegs := diarize.SplitByRole(segments)
	data := types.ProcessedCallData{
		Metadata: types.CallMetadata{
			Date:          rec.Date,
			Name:          rec.Name,
			IssueType:     rec.IssueType,
			CallingNumber: rec.CallingNumber,
			RecordingLink: rec.RecordingLink,
			ProcessedAt:   time.Now().UTC(),
			CallDuration:  int(math.Round(result.Duration)),
		},
		Transcription: types.TranscriptionData{
			AgentSegments:   agentSegs,
			PartnerSegments: partnerSegs,
			FullTranscript:  full,
		},
		Analysis: *analysis,
	}

	filename := ArtifactName(rec.Date, rec.Name, rec.CallingNumber, time.Now())
	if err := writeArtifact(filepath.Join(p.Opts.OutputDir, filename), data); err != nil {
		return "", err
	}
	log.WithField("artifact", filename).Info("record processed")

	if p.Opts.DeleteAudio {
		if err := os.Remove(localPath); err != nil {
			log.WithError(err).Warn("could not delete local audio")
		}
	}
	return filename, nil
}

func writeArtifact(path string, data types.ProcessedCallData) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

func applyFilter(records []types.CallRecordingMetadata, f Filter) []types.CallRecordingMetadata {
	switch {
	case f.Row > 0:
		return sheets.FilterByRow(records, f.Row)
	case f.RowFrom > 0 || f.RowTo > 0:
		return sheets.FilterByRowRange(records, f.RowFrom, f.RowTo)
	case !f.DateFrom.IsZero() || !f.DateTo.IsZero():
		from, to := f.DateFrom, f.DateTo
		if to.IsZero() {
			to = time.Now().AddDate(100, 0, 0)
		}
		return sheets.FilterByDateRange(records, from, to)
	default:
		return records
	}
}

func (p *Processor) report(stats *ProcessingStats) {
	log := logger.Component("processor")
	log.WithField("total", stats.Total).
		WithField("processed", stats.Processed).
		WithField("failed", stats.Failed).
		WithField("skipped", stats.Skipped).
		WithField("elapsed", stats.EndTime.Sub(stats.StartTime).String()).
		Info("run complete")
	for _, e := range stats.Errors {
		log.WithField("row", e.RowNumber).WithField("link", e.RecordingLink).Error(e.Error)
	}
}

// recordRun is best-effort: the ledger never fails a run.
func (p *Processor) recordRun(ctx context.Context, stats *ProcessingStats, outcomes []ledger.CallOutcome) {
	if p.Opts.Ledger == nil {
		return
	}
	run := ledger.Run{
		StartedAt:  stats.StartTime,
		FinishedAt: stats.EndTime,
		Total:      stats.Total,
		Processed:  stats.Processed,
		Failed:     stats.Failed,
		Skipped:    stats.Skipped,
	}
	if _, err := p.Opts.Ledger.RecordRun(ctx, run, outcomes); err != nil {
		logger.Component("processor").WithError(err).Warn("ledger write failed")
	}
}
