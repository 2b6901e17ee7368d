package lectures

type HarmCategory string

const (
	HarmHarassment       HarmCategory = "harassment"
	HarmHateSpeech       HarmCategory = "hate_speech"
	HarmSexuallyExplicit HarmCategory = "sexually_explicit"
	HarmDangerousContent HarmCategory = "dangerous_content"
)

type BlockThreshold string

const (
	BlockOnlyHigh    BlockThreshold = "block_only_high"
	BlockMediumAbove BlockThreshold = "block_medium_and_above"
	BlockLowAndAbove BlockThreshold = "block_low_and_above"
	BlockNone        BlockThreshold = "block_none"
)

type SafetyRule struct {
	Category  HarmCategory
	Threshold BlockThreshold
}

// GenerationOptions are the sampling settings handed to a text model. Zero
// values mean "backend default".
type GenerationOptions struct {
	Temperature     *float32
	TopP            *float32
	TopK            *int32
	MaxOutputTokens int32
	Safety          []SafetyRule
}

type VoiceConfig struct {
	LanguageCode string
	VoiceName    string
	SpeakingRate float64
}

// DefaultVoice is English at normal speaking rate.
func DefaultVoice() VoiceConfig {
	return VoiceConfig{LanguageCode: "en-US", SpeakingRate: 1.0}
}
