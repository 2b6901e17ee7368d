package domain

import "github.com/yungbote/lecturegen/internal/domain/lectures"

type (
	LecturePlan   = lectures.LecturePlan
	Slide         = lectures.Slide
	QuizItem      = lectures.QuizItem
	RenderJob     = lectures.RenderJob
	VideoArtifact = lectures.VideoArtifact
	UploadResult  = lectures.UploadResult
	LectureRun    = lectures.LectureRun

	GenerationOptions = lectures.GenerationOptions
	SafetyRule        = lectures.SafetyRule
	HarmCategory      = lectures.HarmCategory
	BlockThreshold    = lectures.BlockThreshold
	VoiceConfig       = lectures.VoiceConfig
)

const (
	RunStatusQueued    = lectures.RunStatusQueued
	RunStatusRunning   = lectures.RunStatusRunning
	RunStatusSucceeded = lectures.RunStatusSucceeded
	RunStatusFailed    = lectures.RunStatusFailed

	HarmHarassment       = lectures.HarmHarassment
	HarmHateSpeech       = lectures.HarmHateSpeech
	HarmSexuallyExplicit = lectures.HarmSexuallyExplicit
	HarmDangerousContent = lectures.HarmDangerousContent

	BlockOnlyHigh    = lectures.BlockOnlyHigh
	BlockMediumAbove = lectures.BlockMediumAbove
	BlockLowAndAbove = lectures.BlockLowAndAbove
	BlockNone        = lectures.BlockNone
)

func DefaultVoice() VoiceConfig { return lectures.DefaultVoice() }
