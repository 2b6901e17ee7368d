package lecture

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	types "github.com/yungbote/lecturegen/internal/domain"
	"github.com/yungbote/lecturegen/internal/platform/ctxutil"
	"github.com/yungbote/lecturegen/internal/platform/logger"
)

// SpeechBackend turns text into encoded audio bytes.
type SpeechBackend interface {
	SynthesizeSpeech(ctx context.Context, text string, voice types.VoiceConfig) ([]byte, error)
}

type NarrationSynthesizer struct {
	log     *logger.Logger
	backend SpeechBackend
	voice   types.VoiceConfig
}

func NewNarrationSynthesizer(log *logger.Logger, backend SpeechBackend, voice types.VoiceConfig) *NarrationSynthesizer {
	if log == nil {
		log = logger.Nop()
	}
	if voice.LanguageCode == "" {
		voice.LanguageCode = types.DefaultVoice().LanguageCode
	}
	if voice.SpeakingRate <= 0 {
		voice.SpeakingRate = 1.0
	}
	return &NarrationSynthesizer{
		log:     log.With("service", "NarrationSynthesizer"),
		backend: backend,
		voice:   voice,
	}
}

// Synthesize writes spoken text to outputPath as MP3. Text is passed through
// unmodified and backend failures are returned to the caller.
func (n *NarrationSynthesizer) Synthesize(ctx context.Context, text string, outputPath string) (string, error) {
	ctx = ctxutil.Default(ctx)
	if n.backend == nil {
		return "", wrapError(KindBackendUnavailable, "synthesize", errors.New("speech backend not configured"))
	}
	if outputPath == "" {
		return "", newError(KindInvalidArgument, "synthesize", "output path required")
	}

	audio, err := n.backend.SynthesizeSpeech(ctx, text, n.voice)
	if err != nil {
		return "", wrapError(KindBackendUnavailable, "synthesize", err)
	}
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", wrapError(KindEncodingFailure, "synthesize", err)
		}
	}
	if err := os.WriteFile(outputPath, audio, 0o644); err != nil {
		return "", wrapError(KindEncodingFailure, "synthesize", err)
	}
	n.log.Debug("narration written", "path", outputPath, "bytes", len(audio))
	return outputPath, nil
}
