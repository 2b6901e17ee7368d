package lecture

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const validPlan = `{"slides":[{"title":"Cells","content":["a","b"],"script":"Cells are small."}],"quiz":[{"question":"Q?","options":["1","2","3","4"],"answer":"2"}]}`

func mustKeys(t *testing.T, out string) map[string]json.RawMessage {
	t.Helper()
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(out), &top); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, out)
	}
	if _, ok := top["slides"]; !ok {
		t.Fatalf("missing slides key: %q", out)
	}
	if _, ok := top["quiz"]; !ok {
		t.Fatalf("missing quiz key: %q", out)
	}
	return top
}

func TestGenerateLectureAlwaysReturnsPlanJSON(t *testing.T) {
	cases := []struct {
		name    string
		backend GenerationBackend
		want    string
	}{
		{name: "unconfigured", backend: Unconfigured(), want: offlinePayload},
		{name: "no healthy model", backend: Configured(&fakeModel{}), want: noModelPayload},
		{name: "garbage reply", backend: Configured(&fakeModel{healthy: map[string]bool{"gemini-pro": true}, reply: "sorry, no"}), want: parseErrorPayload},
		{name: "missing quiz", backend: Configured(&fakeModel{healthy: map[string]bool{"gemini-pro": true}, reply: `{"slides":[]}`}), want: parseErrorPayload},
		{name: "backend error", backend: Configured(&fakeModel{healthy: map[string]bool{"gemini-pro": true}, err: errors.New("quota")}), want: errorPayload},
		{name: "backend panic", backend: Configured(&fakeModel{healthy: map[string]bool{"gemini-pro": true}, panics: true}), want: errorPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewContentGenerator(nil, tc.backend, ContentGeneratorConfig{})
			for _, prompt := range []string{"", "photosynthesis for kids", strings.Repeat("x", 10000)} {
				out := g.GenerateLecture(context.Background(), prompt)
				mustKeys(t, out)
				if out != tc.want {
					t.Fatalf("payload: want=%q got=%q", tc.want, out)
				}
			}
		})
	}
}

func TestGenerateLectureStripsFenceAndUsesFullPrompt(t *testing.T) {
	m := &fakeModel{
		healthy: map[string]bool{"gemini-1.5-flash": true},
		reply:   "```json\n" + validPlan + "\n```",
	}
	g := NewContentGenerator(nil, Configured(m), ContentGeneratorConfig{})
	out := g.GenerateLecture(context.Background(), "cells for grade 5")
	if out != validPlan {
		t.Fatalf("output: want=%q got=%q", validPlan, out)
	}
	last := m.calls[len(m.calls)-1]
	if !strings.HasPrefix(last, "gemini-1.5-flash|"+systemInstruction+"\n\nUSER REQUEST:\ncells for grade 5") {
		t.Fatalf("generation call: got=%q", last[:min(len(last), 120)])
	}
}

func TestSelectModelStopsAtFirstHealthy(t *testing.T) {
	var probed []string
	healthy := func(ctx context.Context, model string) error {
		probed = append(probed, model)
		if model == "b" {
			return nil
		}
		return errors.New("unavailable")
	}
	got, err := SelectModel(context.Background(), []string{"a", "b", "c"}, healthy)
	if err != nil {
		t.Fatalf("SelectModel: %v", err)
	}
	if got != "b" {
		t.Fatalf("model: want=%q got=%q", "b", got)
	}
	if strings.Join(probed, ",") != "a,b" {
		t.Fatalf("probed: want=%q got=%q", "a,b", strings.Join(probed, ","))
	}
}

func TestSelectModelNoneHealthy(t *testing.T) {
	_, err := SelectModel(context.Background(), []string{"a", "b"}, func(ctx context.Context, model string) error {
		return errors.New("down")
	})
	if !errors.Is(err, ErrNoHealthyModel) {
		t.Fatalf("expected ErrNoHealthyModel, got %v", err)
	}
	if KindOf(err) != KindBackendUnavailable {
		t.Fatalf("kind: want=%v got=%v", KindBackendUnavailable, KindOf(err))
	}
}

func TestSmokeCheckUsesTinyRequest(t *testing.T) {
	var gotTemp float32 = -1
	var gotMax int32
	m := textModelFunc(func(ctx context.Context, model, prompt string, temp *float32, max int32) (string, error) {
		if temp != nil {
			gotTemp = *temp
		}
		gotMax = max
		return "hi", nil
	})
	if err := SmokeCheck(m)(context.Background(), "gemini-pro"); err != nil {
		t.Fatalf("SmokeCheck: %v", err)
	}
	if gotTemp != 0 || gotMax != 10 {
		t.Fatalf("smoke options: want temp=0 max=10 got temp=%v max=%d", gotTemp, gotMax)
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"  {\"a\":1}  ":           `{"a":1}`,
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		"{\"a\":1}\n```":          `{"a":1}`,
		"```":                     "",
	}
	for in, want := range cases {
		if got := stripCodeFence(in); got != want {
			t.Fatalf("stripCodeFence(%q): want=%q got=%q", in, want, got)
		}
	}
}

func TestOfflinePayloadRoundTrip(t *testing.T) {
	plan, err := ParsePlan(offlinePayload)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if len(plan.Slides) != 1 || len(plan.Quiz) != 1 {
		t.Fatalf("counts: want=1/1 got=%d/%d", len(plan.Slides), len(plan.Quiz))
	}
	s := plan.Slides[0]
	if s.Title == "" || s.Script == "" || len(s.Content) == 0 {
		t.Fatalf("slide fields empty: %+v", s)
	}
	q := plan.Quiz[0]
	if q.Question == "" || q.Answer == "" || len(q.Options) != 4 {
		t.Fatalf("quiz fields: %+v", q)
	}
}

func TestErrorPayloadsHaveEmptyQuizArray(t *testing.T) {
	for _, p := range []string{noModelPayload, parseErrorPayload, errorPayload} {
		top := mustKeys(t, p)
		if string(top["quiz"]) != "[]" {
			t.Fatalf("quiz: want=[] got=%s", top["quiz"])
		}
	}
}

func TestPlanCacheHitSkipsBackend(t *testing.T) {
	cache := &mapCache{items: map[string]string{"cells": validPlan}}
	m := &fakeModel{}
	g := NewContentGenerator(nil, Configured(m), ContentGeneratorConfig{Cache: cache})
	if out := g.GenerateLecture(context.Background(), "cells"); out != validPlan {
		t.Fatalf("output: want=%q got=%q", validPlan, out)
	}
	if len(m.calls) != 0 {
		t.Fatalf("backend calls: want=0 got=%d", len(m.calls))
	}
}

func TestPlanCacheStoresOnlySuccesses(t *testing.T) {
	cache := &mapCache{}
	m := &fakeModel{healthy: map[string]bool{"gemini-pro": true}, reply: "not json"}
	g := NewContentGenerator(nil, Configured(m), ContentGeneratorConfig{Cache: cache})
	_ = g.GenerateLecture(context.Background(), "cells")
	if cache.sets != 0 {
		t.Fatalf("fallback cached: sets=%d", cache.sets)
	}

	m.reply = validPlan
	_ = g.GenerateLecture(context.Background(), "cells")
	if cache.sets != 1 || cache.items["cells"] != validPlan {
		t.Fatalf("success not cached: sets=%d items=%v", cache.sets, cache.items)
	}
}

func TestDefaultGenerationOptions(t *testing.T) {
	o := DefaultGenerationOptions()
	if *o.Temperature != 0.7 || *o.TopP != 0.95 || *o.TopK != 40 || o.MaxOutputTokens != 4096 {
		t.Fatalf("sampling: got temp=%v topP=%v topK=%v max=%d", *o.Temperature, *o.TopP, *o.TopK, o.MaxOutputTokens)
	}
	if len(o.Safety) != 4 {
		t.Fatalf("safety rules: want=4 got=%d", len(o.Safety))
	}
}

func TestComposePrompt(t *testing.T) {
	got := ComposePrompt(" Black holes ", "", 5)
	for _, want := range []string{"Topic: Black holes", "Target audience: general audience", "Duration: 5 minutes"} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q: %q", want, got)
		}
	}
}

func TestParsePlanTolerance(t *testing.T) {
	text := "```json\n" + `{"slides":[{"title":"A","content":"single bullet","script":"s"},42,{}],"quiz":[{"question":"Q","options":["x","y"]},{"question":""}]}` + "\n```"
	plan, err := ParsePlan(text)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if len(plan.Slides) != 1 || plan.Slides[0].Content[0] != "single bullet" {
		t.Fatalf("slides: got=%+v", plan.Slides)
	}
	if len(plan.Quiz) != 1 || len(plan.Quiz[0].Options) != 2 {
		t.Fatalf("quiz: got=%+v", plan.Quiz)
	}
	if _, err := ParsePlan("nope"); KindOf(err) != KindMalformedResponse {
		t.Fatalf("kind: want=%v got=%v", KindMalformedResponse, KindOf(err))
	}
}
