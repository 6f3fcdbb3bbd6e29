package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"call-insights-go/internal/analyzer"
	"call-insights-go/internal/audio"
	"call-insights-go/internal/config"
	"call-insights-go/internal/ledger"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/processor"
	"call-insights-go/internal/sheets"
	"call-insights-go/internal/transcription"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load() // loads .env

	var (
		fromFlag    = flag.String("from", "", "start of inclusive date range (YYYY-MM-DD or M/D/YY)")
		toFlag      = flag.String("to", "", "end of inclusive date range (YYYY-MM-DD or M/D/YY)")
		rowFlag     = flag.Int("row", 0, "process a single sheet row")
		rowsFlag    = flag.String("rows", "", "process an inclusive row range, e.g. 12-30")
		dryRunFlag  = flag.Bool("dry-run", false, "list matching records and stop")
		verboseFlag = flag.Bool("verbose", false, "debug logging")
	)
	flag.Parse()

	log := logger.New()
	if *verboseFlag {
		log.SetVerbose()
	}
	log.WithField("service", "call-insights-pipeline").Info("starting batch run")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("configuration error")
		return 1
	}
	if cfg.SheetExportURL == "" {
		log.Error("SHEET_EXPORT_URL not set")
		return 1
	}
	if !*dryRunFlag {
		if err := cfg.Validate(); err != nil {
			log.WithError(err).Error("configuration error")
			return 1
		}
	}

	filter, err := buildFilter(*fromFlag, *toFlag, *rowFlag, *rowsFlag)
	if err != nil {
		log.WithError(err).Error("bad filter flags")
		return 1
	}

	var led *ledger.Ledger
	if cfg.LedgerPath != "" {
		led, err = ledger.Open(cfg.LedgerPath)
		if err != nil {
			log.WithError(err).Warn("ledger unavailable, continuing without it")
			led = nil
		} else {
			defer led.Close()
		}
	}

	llm := analyzer.NewClient(cfg.LLMGatewayURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTemperature)
	proc := processor.New(
		sheets.New(cfg.SheetExportURL),
		audio.NewFetcher(cfg.TempAudioDir),
		transcription.NewClient(cfg.STTAPIURL, cfg.STTAPIKey, cfg.VocabularyHints),
		analyzer.New(llm),
		processor.Options{
			OutputDir:     cfg.OutputDir,
			MaxConcurrent: cfg.MaxConcurrent,
			DeleteAudio:   cfg.DeleteAudio,
			DryRun:        *dryRunFlag,
			Ledger:        led,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := proc.Run(ctx, filter)
	if err != nil {
		log.WithError(err).Error("pipeline failed")
		return 1
	}
	if stats.HasFailures() {
		return 1
	}
	return 0
}

// buildFilter applies the selection precedence: row > row range > dates.
func buildFilter(from, to string, row int, rows string) (processor.Filter, error) {
	var f processor.Filter

	switch {
	case row > 0:
		f.Row = row
	case rows != "":
		var lo, hi int
		if _, err := fmt.Sscanf(rows, "%d-%d", &lo, &hi); err != nil || lo < 1 || hi < lo {
			return f, fmt.Errorf("invalid -rows value %q, want A-B", rows)
		}
		f.RowFrom, f.RowTo = lo, hi
	case from != "" || to != "":
		if from != "" {
			t, err := parseCLIDate(from)
			if err != nil {
				return f, err
			}
			f.DateFrom = t
		}
		if to != "" {
			t, err := parseCLIDate(to)
			if err != nil {
				return f, err
			}
			// inclusive through the whole end day
			f.DateTo = t.Add(24*time.Hour - time.Nanosecond)
		}
	}
	return f, nil
}

func parseCLIDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "1/2/06", "1/2/2006"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
