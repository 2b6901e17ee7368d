package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/lecturegen/internal/app"
	"github.com/yungbote/lecturegen/internal/modules/lecture"
	"github.com/yungbote/lecturegen/internal/platform/logger"
)

func main() {
	var (
		topic    string
		audience string
		minutes  int
		prompt   string
		outDir   string
		planOnly bool
		silent   bool
		keep     bool
	)
	flag.StringVar(&topic, "topic", "", "lecture topic")
	flag.StringVar(&audience, "audience", "", "target audience")
	flag.IntVar(&minutes, "minutes", 5, "target duration in minutes")
	flag.StringVar(&prompt, "prompt", "", "raw prompt; overrides topic/audience/minutes")
	flag.StringVar(&outDir, "out", "", "output directory (default from config)")
	flag.BoolVar(&planOnly, "plan-only", false, "print the lecture plan JSON and exit")
	flag.BoolVar(&silent, "silent", false, "also write a video without narration")
	flag.BoolVar(&keep, "keep", false, "keep slide images and per-slide narration")
	flag.Parse()

	if topic == "" && prompt == "" {
		fmt.Fprintln(os.Stderr, "one of -topic or -prompt is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Printf("load config: %v\n", err)
		os.Exit(1)
	}
	if outDir != "" {
		cfg.Media.OutputDir = outDir
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comp, err := app.BuildComponents(ctx, log, cfg, nil)
	if err != nil {
		fmt.Printf("init pipeline: %v\n", err)
		os.Exit(1)
	}
	defer comp.Close()

	req := lecture.Request{
		Topic:           topic,
		Audience:        audience,
		DurationMinutes: minutes,
		Prompt:          prompt,
		WorkDir:         cfg.Media.OutputDir,
	}

	if planOnly {
		text, _, err := comp.Pipeline.Generate(ctx, req)
		if err != nil {
			fmt.Printf("generate plan: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(text)
		return
	}

	res, err := comp.Pipeline.Run(ctx, req, func(stage string, progress int) {
		fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", progress, stage)
	})
	if err != nil {
		fmt.Printf("build lecture: %v\n", err)
		os.Exit(1)
	}
	if silent {
		if path, ok := comp.Video.CreateVideoWithoutAudio(ctx, res.SlideImages, ""); ok {
			fmt.Fprintf(os.Stderr, "silent video: %s\n", path)
		}
	}
	if !keep {
		if err := lecture.CleanupIntermediates(res); err != nil {
			log.Warn("cleanup intermediates", "error", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res.Artifact)
}
