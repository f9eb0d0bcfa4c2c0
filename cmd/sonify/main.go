package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/google/uuid"

	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/feature"
	"github.com/kaushik6g/Semantic-Sonifier/internal/semantic"
	"github.com/kaushik6g/Semantic-Sonifier/internal/sonify"
	"github.com/kaushik6g/Semantic-Sonifier/internal/timeline"
)

var version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'run', 'validate' or 'version'")
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runCmd := flag.NewFlagSet("run", flag.ExitOnError)
		configPath := runCmd.String("config", "", "Path to configuration file (built-in defaults when empty)")
		budget := runCmd.Float64("budget", 0, "Override the total duration budget in seconds")
		pretty := runCmd.Bool("pretty", false, "Indent timeline JSON")
		verbose := runCmd.Bool("v", false, "Log pipeline stages to stderr")
		_ = runCmd.Parse(os.Args[2:])
		if err := runSonify(*configPath, *budget, *pretty, *verbose, runCmd.Args()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "validate":
		validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
		configPath := validateCmd.String("config", "sonifier.yaml", "Path to configuration file")
		_ = validateCmd.Parse(os.Args[2:])
		if _, err := config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("config valid")
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}

// runSonify turns each input into a document and sonifies them as one batch.
// A single input writes the bare timeline to stdout; multiple inputs write
// one JSON envelope per line so a failing document never hides its siblings.
func runSonify(configPath string, budget float64, pretty, verbose bool, inputs []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if budget > 0 {
		cfg.Sonify.Schedule.MaxTotalDuration = budget
		if err := config.ValidateSonify(cfg.Sonify); err != nil {
			return err
		}
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	pipeline, err := sonify.NewPipeline(cfg.Sonify, logger)
	if err != nil {
		return err
	}
	extractor, err := feature.New(cfg.Feature)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	texts, names, err := readInputs(inputs)
	if err != nil {
		return err
	}

	docs := make([]semantic.Document, len(texts))
	for i, text := range texts {
		doc, err := extractor.Extract(ctx, text)
		if err != nil {
			return fmt.Errorf("extract features from %s: %w", names[i], err)
		}
		docs[i] = doc
	}

	if len(docs) == 1 {
		tl, err := pipeline.Run(ctx, docs[0])
		if err != nil {
			return err
		}
		return writeTimeline(os.Stdout, tl, pretty)
	}

	results := pipeline.RunBatch(ctx, docs)
	enc := json.NewEncoder(os.Stdout)
	failures := 0
	for i, res := range results {
		out := batchOutput{Input: names[i], SessionID: uuid.NewString()}
		if res.Err != nil {
			failures++
			out.Error = res.Err.Error()
		} else {
			payload, err := res.Timeline.Marshal()
			if err != nil {
				return fmt.Errorf("encode timeline for %s: %w", names[i], err)
			}
			out.Events = res.Timeline.Len()
			out.Span = res.Timeline.Span()
			out.Timeline = payload
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d documents failed", failures, len(results))
	}
	return nil
}

type batchOutput struct {
	Input     string          `json:"input"`
	SessionID string          `json:"session_id"`
	Events    int             `json:"events,omitempty"`
	Span      float64         `json:"span_seconds,omitempty"`
	Timeline  json.RawMessage `json:"timeline,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// readInputs resolves command-line arguments into document texts. No
// arguments, or the argument "-", reads stdin.
func readInputs(paths []string) (texts, names []string, err error) {
	if len(paths) == 0 {
		paths = []string{"-"}
	}
	for _, p := range paths {
		if p == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return nil, nil, fmt.Errorf("read stdin: %w", err)
			}
			texts = append(texts, string(data))
			names = append(names, "stdin")
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, nil, err
		}
		texts = append(texts, string(data))
		names = append(names, p)
	}
	return texts, names, nil
}

func writeTimeline(w io.Writer, tl timeline.Timeline, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(tl)
}
