package lecture

import (
	"encoding/json"

	types "github.com/yungbote/lecturegen/internal/domain"
)

var (
	offlinePayload = mustPayload(types.LecturePlan{
		Slides: []types.Slide{{
			Title: "Introduction to Photosynthesis",
			Content: []string{
				"Photosynthesis converts light energy to chemical energy",
				"It occurs in chloroplasts of plant cells",
				"It produces glucose and oxygen",
			},
			Script: "Photosynthesis converts light to chemical energy in plant chloroplasts, producing glucose and oxygen.",
		}},
		Quiz: []types.QuizItem{{
			Question: "Where does photosynthesis occur?",
			Options:  []string{"Mitochondria", "Chloroplasts", "Nucleus", "Cell membrane"},
			Answer:   "Chloroplasts",
		}},
	})

	noModelPayload    = errorSlidePayload("API Error", "No working AI model found", "Error connecting to AI service.")
	parseErrorPayload = errorSlidePayload("Content Generation Error", "Unable to parse AI response", "Error generating content.")
	errorPayload      = errorSlidePayload("Error", "Error during content generation", "Please try again.")
)

func errorSlidePayload(title, bullet, script string) string {
	return mustPayload(types.LecturePlan{
		Slides: []types.Slide{{Title: title, Content: []string{bullet}, Script: script}},
		Quiz:   []types.QuizItem{},
	})
}

func mustPayload(p types.LecturePlan) string {
	b, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	return string(b)
}
