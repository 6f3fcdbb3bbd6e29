package analyzer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"call-insights-go/internal/logger"
	"call-insights-go/internal/types"
)

// Analyzer derives call judgments from transcripts via six independent
// LLM prompts run concurrently. The join is all-or-nothing: a sub-call
// whose retries are exhausted fails the whole analysis, while malformed
// JSON from the model is absorbed per sub-call with documented fallbacks.
type Analyzer struct {
	LLM Completer
}

func New(llm Completer) *Analyzer {
	return &Analyzer{LLM: llm}
}

// outcome carries one sub-call's result: either an apply step for the
// analysis or a propagating error, never both.
type outcome struct {
	name  string
	apply func(*types.CallAnalysis)
	err   error
}

func (a *Analyzer) AnalyzeCall(ctx context.Context, fullTranscript, agentText, partnerText string) (*types.CallAnalysis, error) {
	log := logger.Component("analyzer")

	tasks := []struct {
		name string
		run  func(context.Context) (func(*types.CallAnalysis), error)
	}{
		{"summary", func(ctx context.Context) (func(*types.CallAnalysis), error) {
			text, err := a.LLM.Complete(ctx, summaryPrompt(fullTranscript))
			if err != nil {
				return nil, err
			}
			return func(an *types.CallAnalysis) { an.Summary = strings.TrimSpace(text) }, nil
		}},
		{"problem", func(ctx context.Context) (func(*types.CallAnalysis), error) {
			text, err := a.LLM.Complete(ctx, problemPrompt(fullTranscript))
			if err != nil {
				return nil, err
			}
			return func(an *types.CallAnalysis) { an.ProblemFaced = strings.TrimSpace(text) }, nil
		}},
		{"solution", func(ctx context.Context) (func(*types.CallAnalysis), error) {
			text, err := a.LLM.Complete(ctx, solutionPrompt(fullTranscript))
			if err != nil {
				return nil, err
			}
			return func(an *types.CallAnalysis) { an.SolutionPresented = strings.TrimSpace(text) }, nil
		}},
		{"agent_sentiment", func(ctx context.Context) (func(*types.CallAnalysis), error) {
			raw, err := a.LLM.Complete(ctx, sentimentPrompt("agent", agentText))
			if err != nil {
				return nil, err
			}
			result := parseSentiment(raw)
			return func(an *types.CallAnalysis) { an.AgentSentiment = result }, nil
		}},
		{"partner_sentiment", func(ctx context.Context) (func(*types.CallAnalysis), error) {
			raw, err := a.LLM.Complete(ctx, sentimentPrompt("partner", partnerText))
			if err != nil {
				return nil, err
			}
			result := parseSentiment(raw)
			return func(an *types.CallAnalysis) { an.PartnerSentiment = result }, nil
		}},
		{"satisfaction", func(ctx context.Context) (func(*types.CallAnalysis), error) {
			raw, err := a.LLM.Complete(ctx, satisfactionPrompt(fullTranscript))
			if err != nil {
				return nil, err
			}
			result := parseSatisfaction(raw)
			return func(an *types.CallAnalysis) { an.PartnerSatisfactionScore = result }, nil
		}},
	}

	results := make(chan outcome, len(tasks))
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(name string, run func(context.Context) (func(*types.CallAnalysis), error)) {
			defer wg.Done()
			apply, err := run(ctx)
			results <- outcome{name: name, apply: apply, err: err}
		}(task.name, task.run)
	}
	wg.Wait()
	close(results)

	analysis := &types.CallAnalysis{}
	for res := range results {
		if res.err != nil {
			// A partial set of completed judgments is discarded, not persisted.
			log.WithField("task", res.name).WithError(res.err).Error("analysis sub-call failed")
			return nil, fmt.Errorf("analysis %s: %w", res.name, res.err)
		}
		res.apply(analysis)
	}
	return analysis, nil
}
