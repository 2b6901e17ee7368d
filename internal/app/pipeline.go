package app

import (
	"context"
	"fmt"

	types "github.com/yungbote/lecturegen/internal/domain"
	"github.com/yungbote/lecturegen/internal/modules/lecture"
	"github.com/yungbote/lecturegen/internal/platform/gcp"
	"github.com/yungbote/lecturegen/internal/platform/gemini"
	"github.com/yungbote/lecturegen/internal/platform/localmedia"
	"github.com/yungbote/lecturegen/internal/platform/logger"
	"github.com/yungbote/lecturegen/internal/platform/openai"
	"github.com/yungbote/lecturegen/internal/platform/slides"
)

var defaultOpenAIModels = []string{"gpt-4o-mini", "gpt-4o"}

// Components are the lecture building blocks shared by the server and the CLI.
type Components struct {
	Pipeline *lecture.Pipeline
	Video    *lecture.VideoAssembler
	Tools    localmedia.Tools

	closers []func() error
}

func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

// BuildComponents wires backends from cfg. Missing credentials leave the
// matching backend unconfigured instead of failing startup.
func BuildComponents(ctx context.Context, log *logger.Logger, cfg Config, cache lecture.PlanCache) (*Components, error) {
	comp := &Components{}

	var geminiClient *gemini.Client
	var openaiClient *openai.Client
	if cfg.Secrets.GeminiAPIKey != "" {
		c, err := gemini.NewClient(ctx, log, cfg.Secrets.GeminiAPIKey)
		if err != nil {
			log.Warn("gemini client unavailable", "error", err)
		} else {
			geminiClient = c
			comp.closers = append(comp.closers, c.Close)
		}
	}
	if cfg.Secrets.OpenAIAPIKey != "" {
		c, err := openai.NewClient(log, openai.Config{APIKey: cfg.Secrets.OpenAIAPIKey})
		if err != nil {
			log.Warn("openai client unavailable", "error", err)
		} else {
			openaiClient = c
		}
	}

	backend := lecture.Unconfigured()
	models := cfg.Content.Models
	switch cfg.ContentProvider() {
	case "gemini":
		if geminiClient != nil {
			backend = lecture.Configured(geminiClient)
		}
	case "openai":
		if openaiClient != nil {
			backend = lecture.Configured(openaiClient)
		}
		if len(models) == 0 {
			models = defaultOpenAIModels
		}
	}
	if !backend.IsConfigured() {
		log.Warn("no text model configured; lectures use the offline plan", "provider", cfg.ContentProvider())
	}
	content := lecture.NewContentGenerator(log, backend, lecture.ContentGeneratorConfig{
		Models: models,
		Cache:  cache,
	})

	var speech lecture.SpeechBackend
	switch cfg.Speech.Provider {
	case "gcp":
		tts, err := gcp.NewTextToSpeech(ctx, log, cfg.Secrets.Google)
		if err != nil {
			log.Warn("text-to-speech unavailable", "error", err)
		} else {
			speech = tts
			comp.closers = append(comp.closers, tts.Close)
		}
	case "openai":
		if openaiClient != nil {
			speech = openaiClient
		} else {
			log.Warn("openai speech selected without OPENAI_API_KEY")
		}
	}
	narration := lecture.NewNarrationSynthesizer(log, speech, types.VoiceConfig{
		LanguageCode: cfg.Speech.LanguageCode,
		VoiceName:    cfg.Speech.VoiceName,
		SpeakingRate: cfg.Speech.SpeakingRate,
	})

	comp.Tools = localmedia.New(log, localmedia.Config{
		FFmpegPath:  cfg.Media.FFmpegPath,
		FFprobePath: cfg.Media.FFprobePath,
		Timeout:     cfg.Media.Timeout,
	})
	if err := comp.Tools.AssertReady(ctx); err != nil {
		log.Warn("ffmpeg tooling not ready; video assembly will fail", "error", err)
	}

	var upload lecture.UploadSink
	if cfg.Storage.Bucket != "" {
		storageCfg, err := gcp.ResolveObjectStorageConfig(cfg.Storage.Mode, cfg.Storage.EmulatorHost)
		if err != nil {
			comp.Close()
			return nil, err
		}
		bucket, err := gcp.NewBucket(ctx, log, gcp.BucketConfig{
			Name:          cfg.Storage.Bucket,
			CDNDomain:     cfg.Storage.CDNDomain,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
			KeyPrefix:     cfg.Storage.KeyPrefix,
			Storage:       storageCfg,
			Credentials:   cfg.Secrets.Google,
		})
		if err != nil {
			log.Warn("video bucket unavailable; uploads disabled", "error", err)
		} else {
			upload = bucket
			comp.closers = append(comp.closers, bucket.Close)
		}
	}
	comp.Video = lecture.NewVideoAssembler(log, comp.Tools, lecture.VideoAssemblerConfig{
		OutputDir: cfg.Media.OutputDir,
		Upload:    upload,
	})

	slideCfg := slides.DefaultConfig()
	if cfg.Slides.Width > 0 && cfg.Slides.Height > 0 {
		slideCfg.Width, slideCfg.Height = cfg.Slides.Width, cfg.Slides.Height
	}
	slideCfg.TitleFontPath = cfg.Slides.TitleFont
	slideCfg.BodyFontPath = cfg.Slides.BodyFont
	renderer, err := slides.NewRenderer(log, slideCfg)
	if err != nil {
		comp.Close()
		return nil, fmt.Errorf("slide renderer: %w", err)
	}

	pipeline, err := lecture.NewPipeline(lecture.PipelineDeps{
		Log:       log,
		Content:   content,
		Slides:    renderer,
		Narration: narration,
		Audio:     lecture.NewAudioCombiner(log),
		Inspector: lecture.NewMediaInspector(log, comp.Tools),
		Video:     comp.Video,
	})
	if err != nil {
		comp.Close()
		return nil, err
	}
	comp.Pipeline = pipeline
	return comp, nil
}
