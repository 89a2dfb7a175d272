package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/batch"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/setup"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/setup/logger"
	"github.com/rs/zerolog/log"
)

func main() {
	startTime := time.Now()

	input := flag.String("input", "", "Input file relative path, or - for stdin")
	output := flag.String("output", "", "Output file relative path")
	format := flag.String("format", batch.FormatJSONL, "Output file format. Supported formats: 'jsonl', 'summary'")
	summary := flag.String("summary", "", "Optional separate summary file")
	workers := flag.Int("workers", 5, "Concurrent guard workers")
	continueOnError := flag.Bool("continue-on-error", true, "Continue on write failures")
	dryRun := flag.Bool("dry-run", false, "Validate input without running the guard")
	validate := flag.Bool("validate", false, "Validation mode: compare decisions with expected_decision labels")
	agreementThreshold := flag.Float64("agreement-threshold", 0.9, "Minimum agreement rate for validation")

	flag.Parse()

	envErr := godotenv.Load()

	cfg := setup.LoadConfig()
	cfg.WatchConfig = false
	logger.New(cfg.LogLevel, true)

	if envErr != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}
	if *input == "" {
		log.Fatal().Msg("required flag -input not provided")
	}
	formatValidator(*format)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Open input file
	var inputFile io.Reader
	if *input == "-" {
		inputFile = os.Stdin
		log.Info().Msg("Reading from stdin")
	} else {
		f, err := os.Open(*input)
		if err != nil {
			log.Fatal().Err(err).Str("file", *input).Msg("Failed to open input file")
		}
		defer f.Close()
		inputFile = f
		log.Info().Str("file", *input).Msg("Reading input file")
	}

	// Read records
	reader := batch.NewReader(inputFile, &log.Logger)

	var records []batch.InputRecord
	for record := range reader.ReadAll(ctx) {
		records = append(records, record)
	}

	log.Info().Int("total", len(records)).Msg("Input file parsed")

	// Dry run validation
	if *dryRun {
		dryRunAndExit(records)
	}

	deps, err := setup.Wire(ctx, cfg, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer deps.Close(context.Background())

	processor := batch.NewProcessor(deps.System, *workers, deps.Logger)

	// Validation mode
	if *validate {
		runValidationMode(ctx, processor, records, *agreementThreshold)
		return
	}

	// Open output file
	var outputFile io.Writer
	if *output == "" {
		outputFile = os.Stdout
		log.Info().Msg("Writing to stdout")
	} else {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatal().Err(err).Str("file", *output).Msg("Failed to create output file")
		}
		defer f.Close()
		outputFile = f
		log.Info().Str("file", *output).Msg("Writing to output file")
	}

	writer, err := batch.NewWriter(outputFile, *format, deps.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create writer")
	}

	var summaryWriter batch.Writer
	if *summary != "" {
		f, err := os.Create(*summary)
		if err != nil {
			log.Fatal().Err(err).Str("file", *summary).Msg("Failed to create summary file")
		}
		defer f.Close()
		summaryWriter, _ = batch.NewWriter(f, batch.FormatSummary, deps.Logger)
	}

	// Write results
	successCount := 0
	errorCount := 0

	for result := range processor.Process(ctx, records) {
		if summaryWriter != nil {
			_ = summaryWriter.Write(result)
		}
		if result.Error != "" {
			errorCount++
		}
		if err := writer.Write(result); err != nil {
			log.Error().Err(err).Int("line", result.LineNumber).Msg("Failed to write result")
			errorCount++

			if !*continueOnError {
				log.Fatal().Msg("Stopping due to write error")
			}
			continue
		}
		successCount++
	}

	if err := writer.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to flush output")
	}
	if summaryWriter != nil {
		if err := summaryWriter.Close(); err != nil {
			log.Error().Err(err).Str("file", *summary).Msg("Failed to write summary")
		} else {
			log.Info().Str("file", *summary).Msg("Summary written")
		}
	}

	log.Info().
		Int("written", successCount).
		Int("errors", errorCount).
		Dur("duration", time.Since(startTime)).
		Msg("Batch processing complete")
}

func formatValidator(format string) {
	validFormats := map[string]bool{batch.FormatJSONL: true, batch.FormatSummary: true}
	if !validFormats[format] {
		log.Fatal().
			Str("format", format).
			Msg("Invalid format. Supported: jsonl, summary")
	}
}

func dryRunAndExit(records []batch.InputRecord) {
	errorCount := 0
	for _, record := range records {
		if record.Error != nil {
			log.Error().
				Int("line", record.LineNumber).
				Err(record.Error).
				Msg("Validation error")
			errorCount++
		}
	}

	if errorCount > 0 {
		log.Fatal().Int("errors", errorCount).Msg("Validation failed")
	}

	log.Info().Msg("Validation successful")
	os.Exit(0)
}

func runValidationMode(ctx context.Context, processor *batch.Processor, records []batch.InputRecord, threshold float64) {
	log.Info().Msg("Validation mode enabled")

	missing := 0
	for _, record := range records {
		if record.Error == nil && record.Request.ExpectedDecision == "" {
			log.Error().
				Int("line", record.LineNumber).
				Str("event_id", record.Request.EventID).
				Msg("Record missing expected_decision")
			missing++
		}
	}
	if missing > 0 {
		log.Fatal().
			Int("missing", missing).
			Msg("Validation mode requires all records to have 'expected_decision' field")
	}

	var results []batch.OutputRecord
	for result := range processor.Process(ctx, records) {
		results = append(results, result)
	}

	validationResult, err := batch.ValidateDecisions(results, threshold)
	if err != nil {
		log.Fatal().Err(err).Msg("Validation failed")
	}

	validationJSON, err := json.MarshalIndent(validationResult, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal validation result")
	}
	fmt.Println(string(validationJSON))

	status := "PASSED"
	if !validationResult.Passed {
		status = "FAILED"
	}
	log.Info().
		Int("records", validationResult.TotalRecords).
		Int("agreement", validationResult.AgreementCount).
		Float64("agreement_rate", validationResult.AgreementRate).
		Float64("threshold", validationResult.Threshold).
		Int("mismatches", len(validationResult.Mismatches)).
		Str("status", status).
		Msg("Validation complete")

	if !validationResult.Passed {
		log.Error().Msg("Review configs/rails.yaml thresholds and re-run validation")
		os.Exit(1)
	}
}
