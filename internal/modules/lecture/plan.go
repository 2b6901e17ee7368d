package lecture

import (
	"encoding/json"
	"fmt"
	"strings"

	types "github.com/yungbote/lecturegen/internal/domain"
)

type looseSlide struct {
	Title   string          `json:"title"`
	Content json.RawMessage `json:"content"`
	Script  string          `json:"script"`
}

type looseQuizItem struct {
	Question string          `json:"question"`
	Options  json.RawMessage `json:"options"`
	Answer   string          `json:"answer"`
}

type loosePlan struct {
	Slides []json.RawMessage `json:"slides"`
	Quiz   []json.RawMessage `json:"quiz"`
}

// ParsePlan decodes generator output into a LecturePlan. Malformed slide or
// quiz entries are skipped and string-valued bullet lists are accepted, since
// only the top-level keys are guaranteed.
func ParsePlan(text string) (types.LecturePlan, error) {
	var lp loosePlan
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &lp); err != nil {
		return types.LecturePlan{}, wrapError(KindMalformedResponse, "parse plan", err)
	}

	plan := types.LecturePlan{Slides: []types.Slide{}, Quiz: []types.QuizItem{}}
	for _, raw := range lp.Slides {
		var s looseSlide
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		slide := types.Slide{
			Title:   strings.TrimSpace(s.Title),
			Content: stringList(s.Content),
			Script:  strings.TrimSpace(s.Script),
		}
		if slide.Title == "" && slide.Script == "" && len(slide.Content) == 0 {
			continue
		}
		plan.Slides = append(plan.Slides, slide)
	}
	for _, raw := range lp.Quiz {
		var q looseQuizItem
		if err := json.Unmarshal(raw, &q); err != nil {
			continue
		}
		if strings.TrimSpace(q.Question) == "" {
			continue
		}
		plan.Quiz = append(plan.Quiz, types.QuizItem{
			Question: strings.TrimSpace(q.Question),
			Options:  stringList(q.Options),
			Answer:   strings.TrimSpace(q.Answer),
		})
	}
	if len(plan.Slides) == 0 {
		return plan, newError(KindMalformedResponse, "parse plan", "no usable slides")
	}
	return plan, nil
}

func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			s := strings.TrimSpace(fmt.Sprint(v))
			if v == nil || s == "" {
				continue
			}
			out = append(out, s)
		}
		return out
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && strings.TrimSpace(single) != "" {
		return []string{strings.TrimSpace(single)}
	}
	return []string{}
}
