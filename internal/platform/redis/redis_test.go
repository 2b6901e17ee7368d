package redis

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type fakeKV struct {
	items map[string]string
	ttls  map[string]time.Duration
}

func (f *fakeKV) Get(ctx context.Context, key string) *goredis.StringCmd {
	v, ok := f.items[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd {
	if f.items == nil {
		f.items = map[string]string{}
		f.ttls = map[string]time.Duration{}
	}
	f.items[key] = value.(string)
	f.ttls[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

func TestPlanCacheKeyIsStableHash(t *testing.T) {
	c := NewPlanCache(nil, &fakeKV{}, "", 0)
	a := c.Key("photosynthesis")
	if a != c.Key("photosynthesis") {
		t.Fatalf("key not stable")
	}
	if a == c.Key("Photosynthesis") {
		t.Fatalf("different prompts share a key")
	}
	if !strings.HasPrefix(a, "lecturegen:plan:") || len(a) != len("lecturegen:plan:")+64 {
		t.Fatalf("key shape: got=%q", a)
	}
}

func TestPlanCacheGetSet(t *testing.T) {
	kv := &fakeKV{}
	c := NewPlanCache(nil, kv, "test:", time.Hour)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "cells"); err != nil || ok {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "cells", `{"slides":[],"quiz":[]}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := c.Get(ctx, "cells")
	if err != nil || !ok || got != `{"slides":[],"quiz":[]}` {
		t.Fatalf("hit: got=%q ok=%v err=%v", got, ok, err)
	}
	if kv.ttls[c.Key("cells")] != time.Hour {
		t.Fatalf("ttl: want=%v got=%v", time.Hour, kv.ttls[c.Key("cells")])
	}
}

type fakePublisher struct {
	channel string
	raw     []byte
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd {
	f.channel = channel
	f.raw = message.([]byte)
	return goredis.NewIntResult(1, nil)
}

func TestEventBusPublish(t *testing.T) {
	pub := &fakePublisher{}
	bus := NewEventBus(nil, pub, "")
	if err := bus.Publish(context.Background(), RunEvent{RunID: "r1", Status: "running", Stage: "narrating", Progress: 40}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if pub.channel != "lecturegen:runs" {
		t.Fatalf("channel: got=%q", pub.channel)
	}
	var ev RunEvent
	if err := json.Unmarshal(pub.raw, &ev); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if ev.RunID != "r1" || ev.Stage != "narrating" || ev.At.IsZero() {
		t.Fatalf("event: got=%+v", ev)
	}
}
