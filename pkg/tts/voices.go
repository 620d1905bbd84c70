package tts

// Voice describes one selectable OpenAI voice.
type Voice struct {
	Value       string `json:"value"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Recommended bool   `json:"recommended,omitempty"`
}

var openAIVoices = []Voice{
	{Value: VoiceNova, Name: "Nova", Description: "Clear and professional - optimal for technical discussions", Recommended: true},
	{Value: VoiceAlloy, Name: "Alloy", Description: "Balanced and natural - good general purpose voice"},
	{Value: VoiceEcho, Name: "Echo", Description: "Friendly and warm - good for casual conversations"},
	{Value: VoiceFable, Name: "Fable", Description: "Expressive and dynamic - good for storytelling"},
	{Value: VoiceOnyx, Name: "Onyx", Description: "Deep and authoritative - good for formal presentations"},
	{Value: VoiceShimmer, Name: "Shimmer", Description: "Soft and gentle - good for calm interactions"},
}

// DefaultVoice is the recommended OpenAI voice.
const DefaultVoice = VoiceNova

// Voices returns the OpenAI voice catalogue, recommended voice first.
func Voices() []Voice {
	out := make([]Voice, len(openAIVoices))
	copy(out, openAIVoices)
	return out
}

// IsVoice reports whether name is an OpenAI voice or an ElevenLabs preset.
func IsVoice(name string) bool {
	for _, v := range openAIVoices {
		if v.Value == name {
			return true
		}
	}
	return IsElevenLabsPreset(name)
}

// ElevenLabsVoices maps friendly preset names to ElevenLabs voice IDs.
var ElevenLabsVoices = map[string]string{
	"charlotte": "XB0fDUnXU5powFXDhCwa", // British female, warm
	"aria":      "9BWtsMINqrJLrRacOk9x", // American female, expressive
	"sarah":     "EXAVITQu4vr4xnSDxMaL", // American female, soft
	"rachel":    "21m00Tcm4TlvDq8ikWAM", // American female, calm
	"josh":      "TxGEqnHWrfWFTfGW9XjX", // American male, deep
	"adam":      "pNInz6obpgDQGcFmaJgB", // American male, deep
}

// ResolveElevenLabsVoice returns the voice ID for a preset name,
// or the input unchanged if it's already a voice ID.
func ResolveElevenLabsVoice(name string) string {
	if id, ok := ElevenLabsVoices[name]; ok {
		return id
	}
	return name
}

// IsElevenLabsPreset returns true if the name is a known preset.
func IsElevenLabsPreset(name string) bool {
	_, ok := ElevenLabsVoices[name]
	return ok
}
