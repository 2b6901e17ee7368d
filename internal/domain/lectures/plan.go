package lectures

// LecturePlan is the structured output of content generation. Downstream
// stages treat it as read-only.
type LecturePlan struct {
	Slides []Slide    `json:"slides"`
	Quiz   []QuizItem `json:"quiz"`
}

type Slide struct {
	Title   string   `json:"title"`
	Content []string `json:"content"`
	Script  string   `json:"script"`
}

// QuizItem is expected to carry four options with Answer equal to one of
// them; neither is enforced after parsing.
type QuizItem struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// RenderJob is the input of one video build. Durations align positionally
// with SlideImages.
type RenderJob struct {
	SlideImages []string  `json:"slide_images"`
	Durations   []float64 `json:"durations,omitempty"`
	AudioPath   string    `json:"audio_path"`
}

type VideoArtifact struct {
	LocalPath string `json:"local_path"`
	CloudURL  string `json:"cloud_url,omitempty"`
}

// UploadResult is what an upload sink reports for a stored file.
type UploadResult struct {
	SecureURL string `json:"secure_url"`
}
