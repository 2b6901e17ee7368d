package lecture

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yungbote/lecturegen/internal/platform/logger"
)

// AudioCombiner splices audio files byte for byte. It is only correct for
// inputs sharing one encoding, which holds for narration from a single
// synthesizer configuration.
type AudioCombiner struct {
	log *logger.Logger
}

func NewAudioCombiner(log *logger.Logger) *AudioCombiner {
	if log == nil {
		log = logger.Nop()
	}
	return &AudioCombiner{log: log.With("service", "AudioCombiner")}
}

// Combine concatenates audioPaths in order into outputPath. All inputs are
// checked before the output is created, and a failed copy removes the partial
// output.
func (c *AudioCombiner) Combine(audioPaths []string, outputPath string) (string, error) {
	if len(audioPaths) == 0 {
		return "", newError(KindInvalidArgument, "combine audio", "no audio files provided")
	}
	for _, p := range audioPaths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", newError(KindNotFound, "combine audio", "audio file not found: %s", p)
			}
			return "", wrapError(KindEncodingFailure, "combine audio", err)
		}
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", wrapError(KindEncodingFailure, "combine audio", err)
		}
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return "", wrapError(KindEncodingFailure, "combine audio", err)
	}

	var written int64
	for _, p := range audioPaths {
		n, err := appendFile(out, p)
		written += n
		if err != nil {
			_ = out.Close()
			_ = os.Remove(outputPath)
			if errors.Is(err, fs.ErrNotExist) {
				return "", newError(KindNotFound, "combine audio", "audio file not found: %s", p)
			}
			return "", wrapError(KindEncodingFailure, "combine audio", err)
		}
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(outputPath)
		return "", wrapError(KindEncodingFailure, "combine audio", err)
	}
	c.log.Debug("combined audio", "inputs", len(audioPaths), "bytes", written, "path", outputPath)
	return outputPath, nil
}

func appendFile(dst io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := io.Copy(dst, f)
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", path, err)
	}
	return n, nil
}
