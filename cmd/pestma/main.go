package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"pestma/internal/app"
	"pestma/internal/config"
	"pestma/internal/logger"
	"pestma/internal/pipeline"
)

func main() {
	cfgPath := os.Getenv("PESTMA_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("init log file: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("config loaded (env=%s)", cfg.App.Env)

	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "serve":
		runServe(cfg)
	case "analyze":
		runAnalyze(cfg, args)
	case "batch":
		runBatch(cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected serve, analyze or batch)\n", cmd)
		os.Exit(2)
	}
}

func runServe(cfg *config.Config) {
	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("init app: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}

func runAnalyze(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	desc := fs.String("desc", "", "case description")
	imagePath := fs.String("image", "", "path to a plant photo (optional)")
	_ = fs.Parse(args)

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("init app: %v", err)
	}
	defer a.Close()

	in, err := caseFromArgs(*desc, *imagePath)
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}

	start := time.Now()
	result, err := a.Orchestrator().Run(context.Background(), in)
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}
	duration := time.Since(start)

	if st := a.Store(); st != nil {
		if id, err := st.Save(context.Background(), in, result, duration); err != nil {
			logger.Warnf("analysis persist failed: %v", err)
		} else {
			logger.Infof("analysis saved: %s", id)
		}
	}
	printJSON(result)
}

type batchCase struct {
	Description string `json:"description"`
	ImagePath   string `json:"image_path"`
}

func runBatch(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	file := fs.String("file", "", "JSONL file, one case per line")
	concurrency := fs.Int("concurrency", 2, "max cases in flight")
	_ = fs.Parse(args)
	if *file == "" {
		log.Fatalf("batch: -file is required")
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("init app: %v", err)
	}
	defer a.Close()

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("batch: %v", err)
	}
	var cases []batchCase
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var bc batchCase
		if err := json.Unmarshal([]byte(line), &bc); err != nil {
			log.Fatalf("batch: line %d: %v", i+1, err)
		}
		cases = append(cases, bc)
	}
	logger.Infof("batch: %d case(s), concurrency=%d", len(cases), *concurrency)

	var (
		mu       sync.Mutex
		degraded int
		failed   int
	)
	group, ctx := errgroup.WithContext(context.Background())
	group.SetLimit(*concurrency)
	for i, bc := range cases {
		i, bc := i, bc
		group.Go(func() error {
			in, err := caseFromArgs(bc.Description, bc.ImagePath)
			if err != nil {
				logger.Errorf("case %d rejected: %v", i+1, err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			start := time.Now()
			result, err := a.Orchestrator().Run(ctx, in)
			if err != nil {
				logger.Errorf("case %d rejected: %v", i+1, err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			if st := a.Store(); st != nil {
				if _, err := st.Save(ctx, in, result, time.Since(start)); err != nil {
					logger.Warnf("case %d persist failed: %v", i+1, err)
				}
			}
			if result.Degraded() {
				mu.Lock()
				degraded++
				mu.Unlock()
			}
			logger.Infof("case %d done: %s (%.2f)", i+1,
				result.Diagnosis.Record.Diagnosis, result.Validation.Record.AdjustedConfidence)
			return nil
		})
	}
	_ = group.Wait()
	logger.Infof("batch complete: %d ok, %d degraded, %d rejected",
		len(cases)-degraded-failed, degraded, failed)
}

func caseFromArgs(desc, imagePath string) (pipeline.CaseInput, error) {
	in := pipeline.CaseInput{Description: desc}
	if imagePath != "" {
		img, err := os.ReadFile(imagePath)
		if err != nil {
			return pipeline.CaseInput{}, fmt.Errorf("read image: %w", err)
		}
		in.Image = img
		in.ImageMIME = mime.TypeByExtension(filepath.Ext(imagePath))
	}
	return in, in.Validate()
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("encode result: %v", err)
	}
	fmt.Println(string(b))
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
