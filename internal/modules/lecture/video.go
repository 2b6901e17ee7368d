package lecture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"

	types "github.com/yungbote/lecturegen/internal/domain"
	"github.com/yungbote/lecturegen/internal/platform/ctxutil"
	"github.com/yungbote/lecturegen/internal/platform/localmedia"
	"github.com/yungbote/lecturegen/internal/platform/logger"
)

const (
	DefaultSlideSeconds = 10.0
	MaxSlideSeconds     = 15.0
	ClipBatchSize       = 5

	defaultVideoName        = "lecture.mp4"
	defaultSilentVideoName  = "lecture_no_audio.mp4"
	uploadResourceTypeVideo = "video"
)

// UploadSink stores a finished file and reports its public URL.
type UploadSink interface {
	Upload(ctx context.Context, localPath string, resourceType string) (*types.UploadResult, error)
}

type VideoAssemblerConfig struct {
	// OutputDir holds the default outputs. Defaults to "output".
	OutputDir string
	Encode    localmedia.EncodeOptions
	Upload    UploadSink
}

type VideoAssembler struct {
	log       *logger.Logger
	tools     localmedia.Tools
	upload    UploadSink
	outputDir string
	encode    localmedia.EncodeOptions
}

func NewVideoAssembler(log *logger.Logger, tools localmedia.Tools, cfg VideoAssemblerConfig) *VideoAssembler {
	if log == nil {
		log = logger.Nop()
	}
	v := &VideoAssembler{
		log:       log.With("service", "VideoAssembler"),
		tools:     tools,
		upload:    cfg.Upload,
		outputDir: cfg.OutputDir,
		encode:    cfg.Encode,
	}
	if v.outputDir == "" {
		v.outputDir = "output"
	}
	if v.encode == (localmedia.EncodeOptions{}) {
		v.encode = localmedia.DefaultEncodeOptions()
	}
	return v
}

func (v *VideoAssembler) DefaultOutputPath() string {
	return filepath.Join(v.outputDir, defaultVideoName)
}

func (v *VideoAssembler) DefaultSilentOutputPath() string {
	return filepath.Join(v.outputDir, defaultSilentVideoName)
}

// CreateVideo renders to the default output path. It returns nil on any
// failure.
func (v *VideoAssembler) CreateVideo(ctx context.Context, slideImages []string, audioPath string, durations []float64) *types.VideoArtifact {
	return v.Render(ctx, types.RenderJob{
		SlideImages: slideImages,
		Durations:   durations,
		AudioPath:   audioPath,
	}, v.DefaultOutputPath())
}

// Render builds job into outputPath and hands the result to the upload sink.
// Upload failures keep the local artifact. Any other failure is logged and
// reported as nil.
func (v *VideoAssembler) Render(ctx context.Context, job types.RenderJob, outputPath string) (art *types.VideoArtifact) {
	ctx = ctxutil.Default(ctx)
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("video render panicked", "panic", r, "stack", string(debug.Stack()))
			art = nil
		}
	}()

	path, err := v.render(ctx, job, outputPath)
	if err != nil {
		v.log.Error("error creating video", "error", err, "kind", KindOf(err).String(), "stack", string(debug.Stack()))
		return nil
	}

	art = &types.VideoArtifact{LocalPath: path}
	if v.upload == nil {
		return art
	}
	res, err := v.upload.Upload(ctx, path, uploadResourceTypeVideo)
	if err != nil {
		v.log.Warn("video upload failed", "path", path, "error", err)
		return art
	}
	if res != nil {
		art.CloudURL = res.SecureURL
	}
	return art
}

func (v *VideoAssembler) render(ctx context.Context, job types.RenderJob, outputPath string) (string, error) {
	if v.tools == nil {
		return "", wrapError(KindBackendUnavailable, "create video", errors.New("media tools not configured"))
	}
	if outputPath == "" {
		return "", newError(KindInvalidArgument, "create video", "output path required")
	}
	if err := requireFile(job.AudioPath, "audio file"); err != nil {
		return "", err
	}

	durations := EffectiveDurations(job.Durations, len(job.SlideImages))
	images, durations := existingSlides(job.SlideImages, durations)
	if len(images) == 0 {
		return "", newError(KindNotFound, "create video", "no valid slide images found")
	}
	if dropped := len(job.SlideImages) - len(images); dropped > 0 {
		v.log.Warn("skipping missing slide images", "missing", dropped, "kept", len(images))
	}

	b, err := v.newClipBuilder(outputPath)
	if err != nil {
		return "", err
	}
	defer b.close()

	if err := b.build(ctx, images, durations); err != nil {
		return "", err
	}
	if err := v.tools.MuxAudio(ctx, b.composite, job.AudioPath, b.total, outputPath, v.encode); err != nil {
		_ = os.Remove(outputPath)
		return "", wrapError(KindEncodingFailure, "create video", err)
	}
	v.log.Info("video created", "path", outputPath, "slides", len(images), "seconds", b.total)
	return outputPath, nil
}

// CreateVideoWithoutAudio renders every existing slide for DefaultSlideSeconds
// with no audio track. An empty outputPath uses the default silent output.
func (v *VideoAssembler) CreateVideoWithoutAudio(ctx context.Context, slideImages []string, outputPath string) (path string, ok bool) {
	ctx = ctxutil.Default(ctx)
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("silent video render panicked", "panic", r, "stack", string(debug.Stack()))
			path, ok = "", false
		}
	}()
	if outputPath == "" {
		outputPath = v.DefaultSilentOutputPath()
	}
	if err := v.renderSilent(ctx, slideImages, outputPath); err != nil {
		v.log.Error("error creating video without audio", "error", err, "kind", KindOf(err).String(), "stack", string(debug.Stack()))
		return "", false
	}
	return outputPath, true
}

func (v *VideoAssembler) renderSilent(ctx context.Context, slideImages []string, outputPath string) error {
	if v.tools == nil {
		return wrapError(KindBackendUnavailable, "create silent video", errors.New("media tools not configured"))
	}
	images, durations := existingSlides(slideImages, EffectiveDurations(nil, len(slideImages)))
	if len(images) == 0 {
		return newError(KindNotFound, "create silent video", "no valid slide images found")
	}

	b, err := v.newClipBuilder(outputPath)
	if err != nil {
		return err
	}
	defer b.close()

	if err := b.build(ctx, images, durations); err != nil {
		return err
	}
	if err := os.Rename(b.composite, outputPath); err != nil {
		// Different filesystem; remux into place instead.
		if cerr := v.tools.Concat(ctx, []string{b.composite}, outputPath); cerr != nil {
			return wrapError(KindEncodingFailure, "create silent video", cerr)
		}
	}
	b.composite = ""
	v.log.Info("silent video created", "path", outputPath, "slides", len(images), "seconds", b.total)
	return nil
}

// EffectiveDurations aligns durations with n slides by index. nil durations
// give DefaultSlideSeconds for every slide; otherwise values are capped at
// MaxSlideSeconds and missing or non-positive entries use the default.
func EffectiveDurations(durations []float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = DefaultSlideSeconds
		if i < len(durations) && durations[i] > 0 {
			out[i] = min(durations[i], MaxSlideSeconds)
		}
	}
	return out
}

func existingSlides(images []string, durations []float64) ([]string, []float64) {
	keptImages := make([]string, 0, len(images))
	keptDurations := make([]float64, 0, len(images))
	for i, img := range images {
		if img == "" {
			continue
		}
		st, err := os.Stat(img)
		if err != nil || st.IsDir() {
			continue
		}
		keptImages = append(keptImages, img)
		keptDurations = append(keptDurations, durations[i])
	}
	return keptImages, keptDurations
}

func requireFile(path string, what string) error {
	if path == "" {
		return newError(KindNotFound, "create video", "%s not provided", what)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newError(KindNotFound, "create video", "%s not found: %s", what, path)
		}
		return wrapError(KindEncodingFailure, "create video", err)
	}
	return nil
}

// clipBuilder turns slides into still clips one batch at a time and folds
// each batch into a running composite. Only one batch of clips exists on disk
// at a time.
type clipBuilder struct {
	tools   localmedia.Tools
	encode  localmedia.EncodeOptions
	workDir string

	composite string
	total     float64
	clips     int
	merges    int
}

func (v *VideoAssembler) newClipBuilder(outputPath string) (*clipBuilder, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrapError(KindEncodingFailure, "create video", err)
	}
	work, err := os.MkdirTemp(dir, ".clips-*")
	if err != nil {
		return nil, wrapError(KindEncodingFailure, "create video", err)
	}
	return &clipBuilder{tools: v.tools, encode: v.encode, workDir: work}, nil
}

func (b *clipBuilder) close() {
	_ = os.RemoveAll(b.workDir)
}

func (b *clipBuilder) build(ctx context.Context, images []string, durations []float64) error {
	for start := 0; start < len(images); start += ClipBatchSize {
		end := min(start+ClipBatchSize, len(images))
		if err := b.addBatch(ctx, images[start:end], durations[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (b *clipBuilder) addBatch(ctx context.Context, images []string, durations []float64) error {
	clips := make([]string, 0, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			removeAll(clips)
			return wrapError(KindEncodingFailure, "render clip", err)
		}
		out := filepath.Join(b.workDir, fmt.Sprintf("clip_%04d.mp4", b.clips))
		b.clips++
		if err := b.tools.StillClip(ctx, img, durations[i], out, b.encode); err != nil {
			removeAll(clips)
			return wrapError(KindEncodingFailure, "render clip", err)
		}
		clips = append(clips, out)
	}
	if err := b.mergeBatch(ctx, clips); err != nil {
		return err
	}
	for _, d := range durations {
		b.total += d
	}
	return nil
}

// mergeBatch appends clips to the composite and releases them along with the
// previous composite.
func (b *clipBuilder) mergeBatch(ctx context.Context, clips []string) error {
	defer removeAll(clips)
	if len(clips) == 0 {
		return nil
	}
	parts := clips
	if b.composite != "" {
		parts = append([]string{b.composite}, clips...)
	}
	out := filepath.Join(b.workDir, fmt.Sprintf("composite_%03d.mp4", b.merges))
	b.merges++
	if err := b.tools.Concat(ctx, parts, out); err != nil {
		return wrapError(KindEncodingFailure, "merge batch", err)
	}
	if b.composite != "" {
		_ = os.Remove(b.composite)
	}
	b.composite = out
	return nil
}

func removeAll(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
