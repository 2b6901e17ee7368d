package lecture

import (
	"fmt"
	"strings"
)

const systemInstruction = `You are an educational content generator.
Given a topic, target audience, and duration, produce structured lecture content.

Requirements:
1. Create detailed slide outlines with title, content bullets, and a CONCISE narration script (approximately 10-15 seconds when read aloud)
2. Generate exactly 3 multiple-choice quiz questions with 4 options each
3. Keep scripts SHORT and PUNCHY - focus on key points only
4. Each script should be no more than 2-3 sentences

IMPORTANT: Output ONLY valid JSON with NO markdown formatting, NO code blocks, NO additional text.

JSON Structure:
{
    "slides": [
        {
            "title": "Slide Title Here",
            "content": ["Key point 1", "Key point 2", "Key point 3"],
            "script": "Concise narration for this slide, 10-15 seconds when read aloud."
        }
    ],
    "quiz": [
        {
            "question": "Question text here?",
            "options": ["Option A", "Option B", "Option C", "Option D"],
            "answer": "Correct Option"
        }
    ]
}

Return ONLY the JSON object, nothing else.`

const userRequestSeparator = "\n\nUSER REQUEST:\n"

func buildGenerationPrompt(userPrompt string) string {
	return systemInstruction + userRequestSeparator + userPrompt
}

// ComposePrompt turns the request fields collected by the HTTP and CLI entry
// points into the free-text prompt sent to the content generator.
func ComposePrompt(topic, audience string, durationMinutes int) string {
	topic = strings.TrimSpace(topic)
	audience = strings.TrimSpace(audience)
	if audience == "" {
		audience = "general audience"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	fmt.Fprintf(&b, "Target audience: %s\n", audience)
	if durationMinutes > 0 {
		fmt.Fprintf(&b, "Duration: %d minutes\n", durationMinutes)
	}
	b.WriteString("Create a lecture with slides and a quiz.")
	return b.String()
}
