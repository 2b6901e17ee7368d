package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/lecturegen/internal/platform/logger"
)

// RunEvent announces a lecture run changing stage.
type RunEvent struct {
	RunID    string    `json:"run_id"`
	Status   string    `json:"status"`
	Stage    string    `json:"stage"`
	Progress int       `json:"progress"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// EventBus publishes run events on a pub/sub channel.
type EventBus struct {
	log     *logger.Logger
	rdb     publisher
	channel string
}

func NewEventBus(log *logger.Logger, rdb publisher, channel string) *EventBus {
	if log == nil {
		log = logger.Nop()
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "lecturegen:runs"
	}
	return &EventBus{log: log.With("service", "RedisEventBus"), rdb: rdb, channel: channel}
}

func (b *EventBus) Publish(ctx context.Context, ev RunEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}
