package lecture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	types "github.com/yungbote/lecturegen/internal/domain"
	"github.com/yungbote/lecturegen/internal/platform/localmedia"
)

type fakeModel struct {
	mu      sync.Mutex
	healthy map[string]bool
	reply   string
	err     error
	panics  bool
	calls   []string
}

func (f *fakeModel) GenerateText(ctx context.Context, model string, prompt string, opts types.GenerationOptions) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, model+"|"+prompt)
	f.mu.Unlock()
	if prompt == "Hello" {
		if f.healthy[model] {
			return "hi", nil
		}
		return "", fmt.Errorf("model %s not found", model)
	}
	if f.panics {
		panic("backend exploded")
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type mapCache struct {
	items map[string]string
	sets  int
}

func (c *mapCache) Get(ctx context.Context, prompt string) (string, bool, error) {
	v, ok := c.items[prompt]
	return v, ok, nil
}

func (c *mapCache) Set(ctx context.Context, prompt string, planJSON string) error {
	if c.items == nil {
		c.items = map[string]string{}
	}
	c.items[prompt] = planJSON
	c.sets++
	return nil
}

type fakeSpeech struct {
	audio []byte
	err   error
	texts []string
	voice types.VoiceConfig
}

func (f *fakeSpeech) SynthesizeSpeech(ctx context.Context, text string, voice types.VoiceConfig) ([]byte, error) {
	f.texts = append(f.texts, text)
	f.voice = voice
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

type clipCall struct {
	image   string
	seconds float64
	out     string
}

// fakeTools writes placeholder files for every output so path handling and
// cleanup behave like the real encoder.
type fakeTools struct {
	clips    []clipCall
	concats  [][]string
	muxes    int
	muxSecs  float64
	probe    map[string]float64
	failClip bool
	failMux  bool
}

func (f *fakeTools) AssertReady(ctx context.Context) error { return nil }

func (f *fakeTools) StillClip(ctx context.Context, imagePath string, seconds float64, outPath string, opts localmedia.EncodeOptions) error {
	if f.failClip {
		return errors.New("encoder crashed")
	}
	f.clips = append(f.clips, clipCall{image: imagePath, seconds: seconds, out: outPath})
	return os.WriteFile(outPath, []byte(strconv.FormatFloat(seconds, 'f', -1, 64)), 0o644)
}

func (f *fakeTools) Concat(ctx context.Context, parts []string, outPath string) error {
	for _, p := range parts {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("concat input missing: %w", err)
		}
	}
	f.concats = append(f.concats, append([]string{}, parts...))
	return os.WriteFile(outPath, []byte("video"), 0o644)
}

func (f *fakeTools) MuxAudio(ctx context.Context, videoPath string, audioPath string, seconds float64, outPath string, opts localmedia.EncodeOptions) error {
	if f.failMux {
		_ = os.WriteFile(outPath, []byte("partial"), 0o644)
		return errors.New("mux failed")
	}
	f.muxes++
	f.muxSecs = seconds
	return os.WriteFile(outPath, []byte("video+audio"), 0o644)
}

func (f *fakeTools) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if d, ok := f.probe[filepath.Base(path)]; ok {
		return d, nil
	}
	return 0, errors.New("unreadable media")
}

func (f *fakeTools) clipSeconds() []float64 {
	out := make([]float64, 0, len(f.clips))
	for _, c := range f.clips {
		out = append(out, c.seconds)
	}
	return out
}

type fakeSink struct {
	url   string
	err   error
	calls []string
}

func (f *fakeSink) Upload(ctx context.Context, localPath string, resourceType string) (*types.UploadResult, error) {
	f.calls = append(f.calls, resourceType+"|"+localPath)
	if f.err != nil {
		return nil, f.err
	}
	return &types.UploadResult{SecureURL: f.url}, nil
}

type fakeSlides struct{}

func (fakeSlides) RenderSlides(ctx context.Context, plan types.LecturePlan, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(plan.Slides))
	for i := range plan.Slides {
		p := filepath.Join(dir, fmt.Sprintf("slide_%03d.png", i+1))
		if err := os.WriteFile(p, []byte("png"), 0o644); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func writeFile(t *testing.T, path string, body string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

type textModelFunc func(ctx context.Context, model, prompt string, temp *float32, max int32) (string, error)

func (f textModelFunc) GenerateText(ctx context.Context, model string, prompt string, opts types.GenerationOptions) (string, error) {
	return f(ctx, model, prompt, opts.Temperature, opts.MaxOutputTokens)
}
