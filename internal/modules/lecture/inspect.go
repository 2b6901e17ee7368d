package lecture

import (
	"context"
	"os"

	"github.com/yungbote/lecturegen/internal/platform/ctxutil"
	"github.com/yungbote/lecturegen/internal/platform/localmedia"
	"github.com/yungbote/lecturegen/internal/platform/logger"
)

type MediaInspector struct {
	log   *logger.Logger
	tools localmedia.Tools
}

func NewMediaInspector(log *logger.Logger, tools localmedia.Tools) *MediaInspector {
	if log == nil {
		log = logger.Nop()
	}
	return &MediaInspector{log: log.With("service", "MediaInspector"), tools: tools}
}

// GetDuration returns the media length in seconds, or false when the file is
// missing or cannot be probed.
func (m *MediaInspector) GetDuration(ctx context.Context, path string) (float64, bool) {
	ctx = ctxutil.Default(ctx)
	if _, err := os.Stat(path); err != nil {
		m.log.Warn("media file not found", "path", path, "error", err)
		return 0, false
	}
	if m.tools == nil {
		m.log.Warn("media tools not configured", "path", path)
		return 0, false
	}
	d, err := m.tools.ProbeDuration(ctx, path)
	if err != nil {
		m.log.Warn("media duration probe failed", "path", path, "error", err)
		return 0, false
	}
	return d, true
}
