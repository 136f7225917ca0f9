// Package synth is the uniform call surface over the TTS backend and the
// audio stitcher. It resolves voices, retries line synthesis, substitutes
// placeholders on permanent failure, and concatenates segments and episodes
// in declared order.
package synth

import (
	"github.com/papercast-ai/papercast/internal/types"
)

// VoiceMap resolves (style, speaker) to a concrete backend voice ID.
// Unmapped pairs fall back to the style's narrator voice, then to the
// global default.
type VoiceMap struct {
	// Styles maps style ID -> speaker -> voice ID.
	Styles map[string]map[types.Speaker]string `mapstructure:"styles"`

	// Default voices used when a style has no mapping.
	Default map[types.Speaker]string `mapstructure:"default"`
}

// DefaultVoiceMap returns the built-in mapping over the OpenAI voice set.
func DefaultVoiceMap() VoiceMap {
	return VoiceMap{
		Default: map[types.Speaker]string{
			types.SpeakerHost1:    "nova",
			types.SpeakerHost2:    "onyx",
			types.SpeakerNarrator: "alloy",
		},
		Styles: map[string]map[types.Speaker]string{
			"npr_calm": {
				types.SpeakerHost1:    "shimmer",
				types.SpeakerHost2:    "echo",
				types.SpeakerNarrator: "alloy",
			},
			"news_flash": {
				types.SpeakerHost1:    "nova",
				types.SpeakerHost2:    "fable",
				types.SpeakerNarrator: "alloy",
			},
			"tech_energetic": {
				types.SpeakerHost1:    "nova",
				types.SpeakerHost2:    "ballad",
				types.SpeakerNarrator: "alloy",
			},
			"debate_format": {
				types.SpeakerHost1:    "ash",
				types.SpeakerHost2:    "sage",
				types.SpeakerNarrator: "alloy",
			},
		},
	}
}

// Resolve returns the voice ID for a (style, speaker) pair. Resolution is a
// pure function of its inputs: style override, then style narrator, then
// global default, then global narrator.
func (v VoiceMap) Resolve(styleID string, speaker types.Speaker) string {
	if m, ok := v.Styles[styleID]; ok {
		if voice, ok := m[speaker]; ok && voice != "" {
			return voice
		}
		if voice, ok := m[types.SpeakerNarrator]; ok && voice != "" {
			return voice
		}
	}
	if voice, ok := v.Default[speaker]; ok && voice != "" {
		return voice
	}
	return v.Default[types.SpeakerNarrator]
}
