package slides

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/lecturegen/internal/domain"
	"github.com/yungbote/lecturegen/internal/platform/ctxutil"
	"github.com/yungbote/lecturegen/internal/platform/logger"
)

type Config struct {
	Width  int
	Height int
	// TitleFontPath and BodyFontPath are TTF files. Empty uses the Go fonts.
	TitleFontPath string
	BodyFontPath  string
	Background    string
	Foreground    string
	Accent        string
	Concurrency   int
}

func DefaultConfig() Config {
	return Config{
		Width:       1280,
		Height:      720,
		Background:  "#0f172a",
		Foreground:  "#f8fafc",
		Accent:      "#38bdf8",
		Concurrency: 4,
	}
}

// Renderer draws each slide of a plan as a PNG with its title and bullets.
type Renderer struct {
	log       *logger.Logger
	cfg       Config
	titleFont *truetype.Font
	bodyFont  *truetype.Font
}

func NewRenderer(log *logger.Logger, cfg Config) (*Renderer, error) {
	if log == nil {
		log = logger.Nop()
	}
	def := DefaultConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.Background == "" {
		cfg.Background = def.Background
	}
	if cfg.Foreground == "" {
		cfg.Foreground = def.Foreground
	}
	if cfg.Accent == "" {
		cfg.Accent = def.Accent
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	title, err := loadFont(cfg.TitleFontPath, gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("could not load title font: %w", err)
	}
	body, err := loadFont(cfg.BodyFontPath, goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("could not load body font: %w", err)
	}
	return &Renderer{log: log.With("service", "SlideRenderer"), cfg: cfg, titleFont: title, bodyFont: body}, nil
}

// RenderSlides writes slide_001.png, slide_002.png, ... into dir and returns
// the paths in slide order.
func (r *Renderer) RenderSlides(ctx context.Context, plan types.LecturePlan, dir string) ([]string, error) {
	ctx = ctxutil.Default(ctx)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create slide dir: %w", err)
	}
	paths := make([]string, len(plan.Slides))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, s := range plan.Slides {
		paths[i] = filepath.Join(dir, fmt.Sprintf("slide_%03d.png", i+1))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := r.renderOne(s, i+1, len(plan.Slides), paths[i]); err != nil {
				return fmt.Errorf("slide %d: %w", i+1, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.log.Debug("slides rendered", "count", len(paths), "dir", dir)
	return paths, nil
}

func (r *Renderer) renderOne(s types.Slide, index, total int, out string) error {
	w, h := float64(r.cfg.Width), float64(r.cfg.Height)
	margin := w * 0.07

	dc := gg.NewContext(r.cfg.Width, r.cfg.Height)
	dc.SetHexColor(r.cfg.Background)
	dc.Clear()

	// Accent bar under the title.
	dc.SetHexColor(r.cfg.Accent)
	dc.DrawRectangle(margin, h*0.22, w*0.12, 6)
	dc.Fill()

	titleFace := newFace(r.titleFont, h*0.075)
	defer titleFace.Close()
	dc.SetFontFace(titleFace)
	dc.SetHexColor(r.cfg.Foreground)
	dc.DrawStringWrapped(strings.TrimSpace(s.Title), margin, h*0.08, 0, 0, w-2*margin, 1.2, gg.AlignLeft)

	bodyFace := newFace(r.bodyFont, h*0.045)
	defer bodyFace.Close()
	dc.SetFontFace(bodyFace)
	y := h * 0.30
	lineH := dc.FontHeight() * 1.5
	for _, bullet := range s.Content {
		bullet = strings.TrimSpace(bullet)
		if bullet == "" {
			continue
		}
		lines := dc.WordWrap(bullet, w-2*margin-40)
		for j, line := range lines {
			if y > h-margin {
				break
			}
			if j == 0 {
				dc.DrawCircle(margin+10, y-dc.FontHeight()*0.35, 6)
				dc.Fill()
			}
			dc.DrawString(line, margin+40, y)
			y += lineH
		}
	}

	footer := fmt.Sprintf("%d / %d", index, total)
	fw, _ := dc.MeasureString(footer)
	dc.DrawString(footer, w-margin-fw, h-margin/2)

	return dc.SavePNG(out)
}

func loadFont(path string, fallback []byte) (*truetype.Font, error) {
	raw := fallback
	if p := strings.TrimSpace(path); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read font file: %w", err)
		}
		raw = b
	}
	f, err := truetype.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return f, nil
}

func newFace(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}
