package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	types "github.com/yungbote/lecturegen/internal/domain"
	"github.com/yungbote/lecturegen/internal/platform/ctxutil"
	"github.com/yungbote/lecturegen/internal/platform/logger"
)

// Client is the Gemini text model used for lecture generation.
type Client struct {
	log    *logger.Logger
	client *genai.Client

	closeOnce sync.Once
}

func NewClient(ctx context.Context, log *logger.Logger, apiKey string) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	c, err := genai.NewClient(ctxutil.Default(ctx), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{log: log.With("service", "GeminiClient"), client: c}, nil
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.client != nil {
			err = c.client.Close()
		}
	})
	return err
}

func (c *Client) GenerateText(ctx context.Context, model string, prompt string, opts types.GenerationOptions) (string, error) {
	ctx = ctxutil.Default(ctx)
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("model required")
	}
	m := c.client.GenerativeModel(model)
	applyOptions(m, opts)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", model, err)
	}
	return responseText(resp)
}

func applyOptions(m *genai.GenerativeModel, opts types.GenerationOptions) {
	if opts.Temperature != nil {
		m.SetTemperature(*opts.Temperature)
	}
	if opts.TopP != nil {
		m.SetTopP(*opts.TopP)
	}
	if opts.TopK != nil {
		m.SetTopK(*opts.TopK)
	}
	if opts.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(opts.MaxOutputTokens)
	}
	if len(opts.Safety) > 0 {
		m.SafetySettings = safetySettings(opts.Safety)
	}
}

func safetySettings(rules []types.SafetyRule) []*genai.SafetySetting {
	out := make([]*genai.SafetySetting, 0, len(rules))
	for _, r := range rules {
		cat, ok := harmCategories[r.Category]
		if !ok {
			continue
		}
		out = append(out, &genai.SafetySetting{Category: cat, Threshold: blockThreshold(r.Threshold)})
	}
	return out
}

var harmCategories = map[types.HarmCategory]genai.HarmCategory{
	types.HarmHarassment:       genai.HarmCategoryHarassment,
	types.HarmHateSpeech:       genai.HarmCategoryHateSpeech,
	types.HarmSexuallyExplicit: genai.HarmCategorySexuallyExplicit,
	types.HarmDangerousContent: genai.HarmCategoryDangerousContent,
}

func blockThreshold(t types.BlockThreshold) genai.HarmBlockThreshold {
	switch t {
	case types.BlockLowAndAbove:
		return genai.HarmBlockLowAndAbove
	case types.BlockMediumAbove:
		return genai.HarmBlockMediumAndAbove
	case types.BlockNone:
		return genai.HarmBlockNone
	default:
		return genai.HarmBlockOnlyHigh
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini: empty response")
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	if b.Len() == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason.String())
		}
		return "", errors.New("gemini: no text in response")
	}
	return b.String(), nil
}
