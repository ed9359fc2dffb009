package tts

import (
	"math/rand"
	"sync"
)

// Voice is a speaker plus optional delivery instructions.
type Voice struct {
	Name         string
	Instructions string
}

// Voices supported by the speech endpoint.
var Voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer", "coral"}

// Personas are delivery instructions for models that accept them.
var Personas = []string{
	// energetic instructor
	"Voice: energetic, enthusiastic and motivating. Tone: inspiring and encouraging. " +
		"Pacing: dynamic, with pauses before important concepts. Pronunciation: clear, stressing technical terms.",
	// academic professor
	"Voice: calm, methodical and analytical. Tone: authoritative yet accessible. " +
		"Pacing: steady, taking time with difficult concepts. Pauses: after complex explanations.",
	// friendly mentor
	"Voice: warm and conversational. Tone: collaborative, like a one-on-one talk with a friend. " +
		"Pacing: natural, slowing for key insights. Occasional light humor.",
	// practical coach
	"Voice: direct, practical and efficient. Tone: no-nonsense but helpful. " +
		"Pacing: brisk but clear. Emphasis on actionable points and real-world use.",
	// storyteller
	"Voice: vivid and engaging, like a storyteller. Tone: narrative, connecting ideas to real scenarios. " +
		"Pacing: slow for complex ideas, faster for examples. Dramatic pauses before key connections.",
	// mysterious narrator
	"Voice: deep and intriguing. Tone: enigmatic, as if revealing long-hidden knowledge. " +
		"Pacing: deliberate, building anticipation. Long pauses before major revelations.",
	// energetic host
	"Voice: high-energy and inviting, like a show host. Tone: upbeat, with a sense of discovery. " +
		"Pacing: quick and varied. Short pauses after surprising facts.",
	// horror storyteller
	"Voice: eerie and suspenseful. Tone: ominous yet compelling. " +
		"Pacing: slow for tension, quicker at peaks. Longer silences before revelations.",
	// gentle guide
	"Voice: soft, soothing and calm. Tone: nurturing and reassuring. " +
		"Pacing: slow and measured. Generous pauses for reflection.",
	// technical expert
	"Voice: precise and technically oriented. Tone: detailed and factual. " +
		"Pacing: methodical and structured. Careful pronunciation of terminology.",
}

type VoiceSelector interface {
	Select() Voice
}

// RandomSelector picks a voice and a persona uniformly at random. It is
// safe for concurrent use.
type RandomSelector struct {
	mu       sync.Mutex
	rng      *rand.Rand
	voices   []string
	personas []string
}

// NewRandomSelector uses the package voice and persona catalogs. A nil
// rng is seeded from the global source.
func NewRandomSelector(rng *rand.Rand) *RandomSelector {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &RandomSelector{rng: rng, voices: Voices, personas: Personas}
}

func (s *RandomSelector) Select() Voice {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := Voice{Name: s.voices[s.rng.Intn(len(s.voices))]}
	if len(s.personas) > 0 {
		v.Instructions = s.personas[s.rng.Intn(len(s.personas))]
	}
	return v
}

// FixedSelector always returns the same voice.
type FixedSelector Voice

func (s FixedSelector) Select() Voice {
	return Voice(s)
}
