package lecture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	types "github.com/yungbote/lecturegen/internal/domain"
	"github.com/yungbote/lecturegen/internal/observability"
	"github.com/yungbote/lecturegen/internal/platform/ctxutil"
	"github.com/yungbote/lecturegen/internal/platform/logger"
)

const (
	StageGenerating     = "generating"
	StageRenderSlides   = "rendering_slides"
	StageNarrating      = "narrating"
	StageCombiningAudio = "combining_audio"
	StageRenderingVideo = "rendering_video"
	StageDone           = "done"
)

// SlideRenderer draws one image per slide into dir, in slide order.
type SlideRenderer interface {
	RenderSlides(ctx context.Context, plan types.LecturePlan, dir string) ([]string, error)
}

// ProgressFunc is called when the pipeline enters a stage.
type ProgressFunc func(stage string, progress int)

type Request struct {
	Topic           string
	Audience        string
	DurationMinutes int
	// Prompt overrides the prompt composed from Topic/Audience/DurationMinutes.
	Prompt string
	// WorkDir receives slides, narration and the video. Required.
	WorkDir string
}

type Result struct {
	Prompt      string               `json:"-"`
	PlanJSON    string               `json:"-"`
	Plan        types.LecturePlan    `json:"plan"`
	SlideImages []string             `json:"slide_images"`
	Narration   []string             `json:"narration"`
	AudioPath   string               `json:"audio_path"`
	Durations   []float64            `json:"durations"`
	Artifact    *types.VideoArtifact `json:"artifact"`
}

type PipelineDeps struct {
	Log       *logger.Logger
	Content   *ContentGenerator
	Slides    SlideRenderer
	Narration *NarrationSynthesizer
	Audio     *AudioCombiner
	Inspector *MediaInspector
	Video     *VideoAssembler
}

type Pipeline struct {
	deps PipelineDeps
	log  *logger.Logger
}

func NewPipeline(deps PipelineDeps) (*Pipeline, error) {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	var missing []string
	if deps.Content == nil {
		missing = append(missing, "Content")
	}
	if deps.Slides == nil {
		missing = append(missing, "Slides")
	}
	if deps.Narration == nil {
		missing = append(missing, "Narration")
	}
	if deps.Audio == nil {
		missing = append(missing, "Audio")
	}
	if deps.Inspector == nil {
		missing = append(missing, "Inspector")
	}
	if deps.Video == nil {
		missing = append(missing, "Video")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("lecture pipeline missing deps: %s", strings.Join(missing, ", "))
	}
	return &Pipeline{deps: deps, log: deps.Log.With("service", "LecturePipeline")}, nil
}

// Generate runs only the content stage and parses the plan. A plan with no
// usable slides is replaced by the parse-error plan.
func (p *Pipeline) Generate(ctx context.Context, req Request) (string, types.LecturePlan, error) {
	ctx = ctxutil.Default(ctx)
	prompt := promptFor(req)
	if prompt == "" {
		return "", types.LecturePlan{}, newError(KindInvalidArgument, "generate", "topic or prompt required")
	}
	text := p.deps.Content.GenerateLecture(ctx, prompt)
	plan, err := ParsePlan(text)
	if errors.Is(err, ErrMalformedResponse) {
		// Keys were present but no slide survived parsing.
		p.log.Warn("unusable lecture plan; using parse-error plan", "error", err, "response", head(text, 200))
		text = parseErrorPayload
		plan, err = ParsePlan(text)
	}
	if err != nil {
		return text, plan, err
	}
	return text, plan, nil
}

// Run executes one full build. Stages run sequentially; the first failing
// stage ends the run.
func (p *Pipeline) Run(ctx context.Context, req Request, progress ProgressFunc) (res *Result, err error) {
	ctx = ctxutil.Default(ctx)
	if progress == nil {
		progress = func(string, int) {}
	}
	if strings.TrimSpace(req.WorkDir) == "" {
		return nil, newError(KindInvalidArgument, "run", "work dir required")
	}

	ctx, span := observability.StartSpan(ctx, "lecture.pipeline",
		attribute.String("lecture.topic", req.Topic),
	)
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	res = &Result{Prompt: promptFor(req)}

	progress(StageGenerating, 5)
	if err := p.stage(ctx, StageGenerating, func(ctx context.Context) error {
		text, plan, err := p.Generate(ctx, req)
		res.PlanJSON = text
		res.Plan = plan
		return err
	}); err != nil {
		return res, err
	}

	progress(StageRenderSlides, 20)
	if err := p.stage(ctx, StageRenderSlides, func(ctx context.Context) error {
		imgs, err := p.deps.Slides.RenderSlides(ctx, res.Plan, filepath.Join(req.WorkDir, "slides"))
		if err != nil {
			return wrapError(KindEncodingFailure, "render slides", err)
		}
		res.SlideImages = imgs
		return nil
	}); err != nil {
		return res, err
	}

	progress(StageNarrating, 40)
	if err := p.stage(ctx, StageNarrating, func(ctx context.Context) error {
		audioDir := filepath.Join(req.WorkDir, "audio")
		for i, s := range res.Plan.Slides {
			out := filepath.Join(audioDir, fmt.Sprintf("slide_%03d.mp3", i+1))
			path, err := p.deps.Narration.Synthesize(ctx, s.Script, out)
			if err != nil {
				return fmt.Errorf("slide %d: %w", i+1, err)
			}
			res.Narration = append(res.Narration, path)
			d, ok := p.deps.Inspector.GetDuration(ctx, path)
			if !ok {
				d = DefaultSlideSeconds
			}
			res.Durations = append(res.Durations, d)
		}
		return nil
	}); err != nil {
		return res, err
	}

	progress(StageCombiningAudio, 65)
	if err := p.stage(ctx, StageCombiningAudio, func(ctx context.Context) error {
		out, err := p.deps.Audio.Combine(res.Narration, filepath.Join(req.WorkDir, "narration.mp3"))
		res.AudioPath = out
		return err
	}); err != nil {
		return res, err
	}

	progress(StageRenderingVideo, 80)
	if err := p.stage(ctx, StageRenderingVideo, func(ctx context.Context) error {
		job := types.RenderJob{SlideImages: res.SlideImages, Durations: res.Durations, AudioPath: res.AudioPath}
		res.Artifact = p.deps.Video.Render(ctx, job, filepath.Join(req.WorkDir, defaultVideoName))
		if res.Artifact == nil {
			return newError(KindEncodingFailure, "render video", "video assembly failed")
		}
		return nil
	}); err != nil {
		return res, err
	}

	progress(StageDone, 100)
	p.log.Info("lecture built",
		"slides", len(res.Plan.Slides),
		"video", res.Artifact.LocalPath,
		"uploaded", res.Artifact.CloudURL != "",
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	ctx, span := observability.StartSpan(ctx, "lecture."+name)
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	if err = fn(ctx); err != nil {
		p.log.Error("lecture stage failed", "stage", name, "error", err, "kind", KindOf(err).String())
		return err
	}
	p.log.Debug("lecture stage done", "stage", name, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func promptFor(req Request) string {
	if p := strings.TrimSpace(req.Prompt); p != "" {
		return p
	}
	if strings.TrimSpace(req.Topic) == "" {
		return ""
	}
	return ComposePrompt(req.Topic, req.Audience, req.DurationMinutes)
}

// PlanJSON re-encodes a parsed plan for storage.
func PlanJSON(plan types.LecturePlan) ([]byte, error) {
	return json.Marshal(plan)
}

// CleanupIntermediates removes per-slide narration and slide images once the
// video exists.
func CleanupIntermediates(res *Result) error {
	if res == nil {
		return nil
	}
	var errs []error
	for _, p := range append(append([]string{}, res.Narration...), res.SlideImages...) {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
