package localmedia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/lecturegen/internal/platform/ctxutil"
	"github.com/yungbote/lecturegen/internal/platform/logger"
)

// Tools is the glue around the ffmpeg/ffprobe binaries used to assemble
// slide videos.
//
// REQUIRED BINARIES at runtime:
// - ffmpeg for still clips, concatenation and audio muxing
// - ffprobe for media durations
type Tools interface {
	AssertReady(ctx context.Context) error

	StillClip(ctx context.Context, imagePath string, seconds float64, outPath string, opts EncodeOptions) error
	Concat(ctx context.Context, parts []string, outPath string) error
	MuxAudio(ctx context.Context, videoPath string, audioPath string, seconds float64, outPath string, opts EncodeOptions) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

type EncodeOptions struct {
	VideoCodec string
	AudioCodec string
	FPS        int
	Bitrate    string
	Threads    int
	Preset     string
}

// DefaultEncodeOptions favors render speed and file size over fidelity.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		VideoCodec: "libx264",
		AudioCodec: "aac",
		FPS:        10,
		Bitrate:    "1000k",
		Threads:    4,
		Preset:     "ultrafast",
	}
}

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes one external command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		return res, err
	}
	return res, nil
}

type Config struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
	Runner      Runner
}

type tools struct {
	log *logger.Logger

	ffmpegPath  string
	ffprobePath string
	runner      Runner

	defaultTimeout time.Duration
}

func New(log *logger.Logger, cfg Config) Tools {
	if log == nil {
		log = logger.Nop()
	}
	t := &tools{
		log:            log.With("service", "MediaTools"),
		ffmpegPath:     strings.TrimSpace(cfg.FFmpegPath),
		ffprobePath:    strings.TrimSpace(cfg.FFprobePath),
		runner:         cfg.Runner,
		defaultTimeout: cfg.Timeout,
	}
	if t.ffmpegPath == "" {
		t.ffmpegPath = "ffmpeg"
	}
	if t.ffprobePath == "" {
		t.ffprobePath = "ffprobe"
	}
	if t.runner == nil {
		t.runner = ExecRunner{}
	}
	if t.defaultTimeout <= 0 {
		t.defaultTimeout = 10 * time.Minute
	}
	return t
}

func (m *tools) AssertReady(ctx context.Context) error {
	for _, bin := range []string{m.ffmpegPath, m.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	return nil
}

func (m *tools) StillClip(ctx context.Context, imagePath string, seconds float64, outPath string, opts EncodeOptions) error {
	ctx = ctxutil.Default(ctx)
	if imagePath == "" || outPath == "" {
		return fmt.Errorf("imagePath and outPath required")
	}
	if seconds <= 0 {
		return fmt.Errorf("clip duration must be positive, got %v", seconds)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("mkdir clip dir: %w", err)
	}
	opts = withDefaults(opts)

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-loop", "1",
		"-i", imagePath,
		"-t", formatSeconds(seconds),
		"-r", strconv.Itoa(opts.FPS),
		// libx264 needs even dimensions.
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2,format=yuv420p",
		"-c:v", opts.VideoCodec,
		"-preset", opts.Preset,
		"-b:v", opts.Bitrate,
		"-threads", strconv.Itoa(opts.Threads),
		"-an",
		outPath,
	}
	return m.ffmpeg(ctx, "still clip", args)
}

// Concat joins clips that share one encoding with the concat demuxer, without
// re-encoding.
func (m *tools) Concat(ctx context.Context, parts []string, outPath string) error {
	ctx = ctxutil.Default(ctx)
	if len(parts) == 0 {
		return fmt.Errorf("no parts to concat")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("mkdir concat dir: %w", err)
	}

	var list strings.Builder
	for _, p := range parts {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		list.WriteString("file '")
		list.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		list.WriteString("'\n")
	}
	listPath := outPath + ".txt"
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	}
	return m.ffmpeg(ctx, "concat", args)
}

// MuxAudio attaches audioPath as the only audio stream and cuts the output at
// seconds so the video track decides the length.
func (m *tools) MuxAudio(ctx context.Context, videoPath string, audioPath string, seconds float64, outPath string, opts EncodeOptions) error {
	ctx = ctxutil.Default(ctx)
	if videoPath == "" || audioPath == "" || outPath == "" {
		return fmt.Errorf("videoPath, audioPath and outPath required")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("mkdir output dir: %w", err)
	}
	opts = withDefaults(opts)

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", opts.AudioCodec,
		"-threads", strconv.Itoa(opts.Threads),
	}
	if seconds > 0 {
		args = append(args, "-t", formatSeconds(seconds))
	}
	args = append(args, "-movflags", "+faststart", outPath)
	return m.ffmpeg(ctx, "mux audio", args)
}

func (m *tools) ProbeDuration(ctx context.Context, path string) (float64, error) {
	ctx = ctxutil.Default(ctx)
	if path == "" {
		return 0, fmt.Errorf("path required")
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := m.runner.Run(ctx, m.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w; out=%s", err, strings.TrimSpace(res.Stderr))
	}
	line := strings.TrimSpace(res.Stdout)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	d, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", line, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %v", d)
	}
	return d, nil
}

func (m *tools) ffmpeg(ctx context.Context, what string, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	start := time.Now()
	res, err := m.runner.Run(ctx, m.ffmpegPath, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg %s failed: %w; out=%s", what, err, strings.TrimSpace(res.Stderr))
	}
	m.log.Debug("ffmpeg done", "step", what, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func withDefaults(opts EncodeOptions) EncodeOptions {
	def := DefaultEncodeOptions()
	if opts.VideoCodec == "" {
		opts.VideoCodec = def.VideoCodec
	}
	if opts.AudioCodec == "" {
		opts.AudioCodec = def.AudioCodec
	}
	if opts.FPS <= 0 {
		opts.FPS = def.FPS
	}
	if opts.Bitrate == "" {
		opts.Bitrate = def.Bitrate
	}
	if opts.Threads <= 0 {
		opts.Threads = def.Threads
	}
	if opts.Preset == "" {
		opts.Preset = def.Preset
	}
	return opts
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
