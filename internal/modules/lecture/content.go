package lecture

import (
	"context"
	"encoding/json"
	"errors"
	"runtime/debug"
	"strings"
	"unicode/utf8"

	types "github.com/yungbote/lecturegen/internal/domain"
	"github.com/yungbote/lecturegen/internal/platform/ctxutil"
	"github.com/yungbote/lecturegen/internal/platform/logger"
)

// TextModel is a text generation backend addressed by model name.
type TextModel interface {
	GenerateText(ctx context.Context, model string, prompt string, opts types.GenerationOptions) (string, error)
}

// GenerationBackend says whether a text model is available. The zero value is
// Unconfigured.
type GenerationBackend struct {
	model TextModel
}

func Configured(m TextModel) GenerationBackend { return GenerationBackend{model: m} }

func Unconfigured() GenerationBackend { return GenerationBackend{} }

func (b GenerationBackend) IsConfigured() bool { return b.model != nil }

// HealthCheck reports whether a model can serve requests.
type HealthCheck func(ctx context.Context, model string) error

// PlanCache stores validated generations keyed by the user prompt.
type PlanCache interface {
	Get(ctx context.Context, prompt string) (string, bool, error)
	Set(ctx context.Context, prompt string, planJSON string) error
}

var DefaultModels = []string{
	"gemini-2.5-flash-latest",
	"gemini-2.5-flash",
	"gemini-1.5-flash-latest",
	"gemini-1.5-flash",
	"gemini-1.5-pro-latest",
	"gemini-1.5-pro",
	"gemini-pro",
}

var ErrNoHealthyModel = errors.New("no working model found")

func DefaultGenerationOptions() types.GenerationOptions {
	temp := float32(0.7)
	topP := float32(0.95)
	topK := int32(40)
	return types.GenerationOptions{
		Temperature:     &temp,
		TopP:            &topP,
		TopK:            &topK,
		MaxOutputTokens: 4096,
		Safety: []types.SafetyRule{
			{Category: types.HarmHarassment, Threshold: types.BlockOnlyHigh},
			{Category: types.HarmHateSpeech, Threshold: types.BlockOnlyHigh},
			{Category: types.HarmSexuallyExplicit, Threshold: types.BlockOnlyHigh},
			{Category: types.HarmDangerousContent, Threshold: types.BlockOnlyHigh},
		},
	}
}

// SmokeCheck probes a model with a tiny deterministic request.
func SmokeCheck(m TextModel) HealthCheck {
	return func(ctx context.Context, model string) error {
		temp := float32(0)
		_, err := m.GenerateText(ctx, model, "Hello", types.GenerationOptions{
			Temperature:     &temp,
			MaxOutputTokens: 10,
		})
		return err
	}
}

// SelectModel returns the first candidate whose health check passes. Later
// candidates are not probed.
func SelectModel(ctx context.Context, candidates []string, healthy HealthCheck) (string, error) {
	if healthy == nil {
		return "", wrapError(KindBackendUnavailable, "select model", ErrNoHealthyModel)
	}
	var last error
	for _, name := range candidates {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", wrapError(KindBackendUnavailable, "select model", err)
		}
		if err := healthy(ctx, name); err != nil {
			last = err
			continue
		}
		return name, nil
	}
	if last != nil {
		return "", &Error{Kind: KindBackendUnavailable, Op: "select model", Err: errors.Join(ErrNoHealthyModel, last)}
	}
	return "", wrapError(KindBackendUnavailable, "select model", ErrNoHealthyModel)
}

type ContentGeneratorConfig struct {
	Models  []string
	Options *types.GenerationOptions
	// Health defaults to SmokeCheck against the configured model.
	Health HealthCheck
	Cache  PlanCache
}

type ContentGenerator struct {
	log     *logger.Logger
	backend GenerationBackend
	models  []string
	opts    types.GenerationOptions
	health  HealthCheck
	cache   PlanCache
}

func NewContentGenerator(log *logger.Logger, backend GenerationBackend, cfg ContentGeneratorConfig) *ContentGenerator {
	if log == nil {
		log = logger.Nop()
	}
	g := &ContentGenerator{
		log:     log.With("service", "ContentGenerator"),
		backend: backend,
		models:  cfg.Models,
		opts:    DefaultGenerationOptions(),
		health:  cfg.Health,
		cache:   cfg.Cache,
	}
	if len(g.models) == 0 {
		g.models = DefaultModels
	}
	if cfg.Options != nil {
		g.opts = *cfg.Options
	}
	if g.health == nil && backend.IsConfigured() {
		g.health = SmokeCheck(backend.model)
	}
	return g
}

// GenerateLecture always returns JSON text with "slides" and "quiz" keys.
// Failures degrade to a fallback payload and are only logged.
func (g *ContentGenerator) GenerateLecture(ctx context.Context, prompt string) (out string) {
	ctx = ctxutil.Default(ctx)
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("lecture generation panicked", "panic", r, "stack", string(debug.Stack()))
			out = errorPayload
		}
	}()

	if !g.backend.IsConfigured() {
		g.log.Warn("generation backend not configured, returning offline content")
		return offlinePayload
	}

	text, err := g.Generate(ctx, prompt)
	if err == nil {
		return text
	}
	switch {
	case errors.Is(err, ErrNoHealthyModel):
		g.log.Error("no working model found", "error", err, "candidates", len(g.models))
		return noModelPayload
	case KindOf(err) == KindMalformedResponse:
		g.log.Error("could not parse generated lecture", "error", err)
		return parseErrorPayload
	default:
		g.log.Error("lecture generation failed", "error", err, "kind", KindOf(err).String())
		return errorPayload
	}
}

// Generate is the error-returning form of GenerateLecture. It does not
// substitute fallback payloads.
func (g *ContentGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if !g.backend.IsConfigured() {
		return "", wrapError(KindBackendUnavailable, "generate lecture", errors.New("generation backend not configured"))
	}

	if g.cache != nil {
		if cached, ok, err := g.cache.Get(ctx, prompt); err != nil {
			g.log.Warn("plan cache read failed", "error", err)
		} else if ok {
			if _, verr := validatePlanJSON(cached); verr == nil {
				g.log.Debug("plan cache hit")
				return cached, nil
			}
		}
	}

	model, err := SelectModel(ctx, g.models, g.health)
	if err != nil {
		return "", err
	}
	g.log.Info("selected model", "model", model)

	raw, err := g.backend.model.GenerateText(ctx, model, buildGenerationPrompt(prompt), g.opts)
	if err != nil {
		return "", wrapError(KindBackendUnavailable, "generate lecture", err)
	}

	text := stripCodeFence(raw)
	counts, err := validatePlanJSON(text)
	if err != nil {
		g.log.Debug("unparseable response", "head", head(text, 500))
		return "", err
	}
	g.log.Info("generated lecture", "model", model, "slides", counts.slides, "quiz", counts.quiz)

	if g.cache != nil {
		if err := g.cache.Set(ctx, prompt, text); err != nil {
			g.log.Warn("plan cache write failed", "error", err)
		}
	}
	return text, nil
}

// stripCodeFence removes one leading ```json or ``` and one trailing ```.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return strings.TrimSpace(s)
}

type planCounts struct {
	slides int
	quiz   int
}

// validatePlanJSON checks only that text is a JSON object carrying both
// "slides" and "quiz".
func validatePlanJSON(text string) (planCounts, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &top); err != nil {
		return planCounts{}, wrapError(KindMalformedResponse, "validate lecture", err)
	}
	slides, okS := top["slides"]
	quiz, okQ := top["quiz"]
	if !okS || !okQ {
		return planCounts{}, newError(KindMalformedResponse, "validate lecture", "response missing 'slides' or 'quiz' keys")
	}
	return planCounts{slides: arrayLen(slides), quiz: arrayLen(quiz)}, nil
}

func arrayLen(raw json.RawMessage) int {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0
	}
	return len(items)
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
