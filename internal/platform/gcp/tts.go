package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	types "github.com/yungbote/lecturegen/internal/domain"
	"github.com/yungbote/lecturegen/internal/pkg/httpx"
	"github.com/yungbote/lecturegen/internal/platform/ctxutil"
	"github.com/yungbote/lecturegen/internal/platform/logger"
)

// TextToSpeech synthesizes narration with Cloud Text-to-Speech.
type TextToSpeech struct {
	log        *logger.Logger
	client     *texttospeech.Client
	maxRetries int
	timeout    time.Duration

	synth func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)
	sleep func(ctx context.Context, d time.Duration) error
}

func NewTextToSpeech(ctx context.Context, log *logger.Logger, creds Credentials) (*TextToSpeech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	c, err := texttospeech.NewClient(ctxutil.Default(ctx), creds.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("texttospeech client: %w", err)
	}
	t := &TextToSpeech{
		log:        log.With("service", "gcp.TextToSpeech"),
		client:     c,
		maxRetries: 4,
		timeout:    2 * time.Minute,
		sleep:      httpx.Sleep,
	}
	t.synth = func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		return c.SynthesizeSpeech(ctx, req)
	}
	return t, nil
}

func (t *TextToSpeech) Close() error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Close()
}

// SynthesizeSpeech returns MP3 audio for text.
func (t *TextToSpeech) SynthesizeSpeech(ctx context.Context, text string, voice types.VoiceConfig) ([]byte, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req := buildSynthesizeRequest(text, voice)
	resp, err := t.retry(ctx, func() (*texttospeechpb.SynthesizeSpeechResponse, error) {
		return t.synth(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("texttospeech synthesize: %w", err)
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, fmt.Errorf("texttospeech returned no audio")
	}
	return resp.GetAudioContent(), nil
}

func buildSynthesizeRequest(text string, voice types.VoiceConfig) *texttospeechpb.SynthesizeSpeechRequest {
	lang := strings.TrimSpace(voice.LanguageCode)
	if lang == "" {
		lang = "en-US"
	}
	rate := voice.SpeakingRate
	if rate <= 0 {
		rate = 1.0
	}
	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: lang,
			Name:         strings.TrimSpace(voice.VoiceName),
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  rate,
		},
	}
}

func retryableCode(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

func (t *TextToSpeech) retry(ctx context.Context, fn func() (*texttospeechpb.SynthesizeSpeechResponse, error)) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	var last error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err
		if !retryableCode(err) || attempt == t.maxRetries {
			break
		}
		wait := httpx.Backoff(attempt, 750*time.Millisecond, 10*time.Second)
		t.log.Warn("texttospeech retrying", "attempt", attempt+1, "code", status.Code(err).String(), "sleep", wait.String())
		if err := t.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, last
}
