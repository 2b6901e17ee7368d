package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	types "github.com/yungbote/lecturegen/internal/domain"
	"github.com/yungbote/lecturegen/internal/platform/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(logger.Nop(), Config{APIKey: "sk-test", BaseURL: srv.URL, MaxRetries: 2})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

const okResponse = `{"output":[{"type":"message","role":"assistant","content":[{"type":"output_text","text":"{\"slides\":[],\"quiz\":[]}"}]}]}`

func TestGenerateTextSendsOptions(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			t.Fatalf("path: want=%q got=%q", "/v1/responses", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Fatalf("auth: got=%q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, okResponse)
	})

	temp := float32(0.5)
	out, err := c.GenerateText(context.Background(), "gpt-4o-mini", "hello", types.GenerationOptions{Temperature: &temp, MaxOutputTokens: 10})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != `{"slides":[],"quiz":[]}` {
		t.Fatalf("output: got=%q", out)
	}
	if got["model"] != "gpt-4o-mini" || got["temperature"] != 0.5 {
		t.Fatalf("request: got=%v", got)
	}
	if got["max_output_tokens"] != float64(16) {
		t.Fatalf("max_output_tokens: want=16 got=%v", got["max_output_tokens"])
	}
}

func TestGenerateTextRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, okResponse)
	})
	if _, err := c.GenerateText(context.Background(), "m", "hi", types.GenerationOptions{}); err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls: want=3 got=%d", calls)
	}
}

func TestGenerateTextDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"message":"model not found"}}`)
	})
	if _, err := c.GenerateText(context.Background(), "nope", "hi", types.GenerationOptions{}); err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

func TestGenerateTextDropsRejectedTemperature(t *testing.T) {
	var withTemp, withoutTemp int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "temperature") {
			atomic.AddInt32(&withTemp, 1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"Unsupported parameter: 'temperature'"}}`)
			return
		}
		atomic.AddInt32(&withoutTemp, 1)
		_, _ = io.WriteString(w, okResponse)
	})
	temp := float32(0.7)
	for i := 0; i < 2; i++ {
		if _, err := c.GenerateText(context.Background(), "o3-mini", "hi", types.GenerationOptions{Temperature: &temp}); err != nil {
			t.Fatalf("GenerateText: %v", err)
		}
	}
	if withTemp != 1 || withoutTemp != 2 {
		t.Fatalf("calls: withTemp=%d withoutTemp=%d", withTemp, withoutTemp)
	}
}

func TestSynthesizeSpeech(t *testing.T) {
	var got speechRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3mp3"))
	})
	audio, err := c.SynthesizeSpeech(context.Background(), "Cells are small.", types.DefaultVoice())
	if err != nil {
		t.Fatalf("SynthesizeSpeech: %v", err)
	}
	if string(audio) != "ID3mp3" {
		t.Fatalf("audio: got=%q", audio)
	}
	if got.ResponseFormat != "mp3" || got.Speed != 1.0 || got.Voice != "alloy" || got.Input != "Cells are small." {
		t.Fatalf("request: got=%+v", got)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(logger.Nop(), Config{}); err == nil {
		t.Fatalf("expected missing key error")
	}
}
