// Package turn is the voice-conversation turn-taking engine: the activity state machine,
// the silence-detection timer and the pipeline that carries one utterance through the
// agent, translation, memory and speech.
package turn

// ActivityState is the single visible phase of a call.
type ActivityState string

const (
	Idle           ActivityState = "idle"
	Initializing   ActivityState = "initializing"
	Listening      ActivityState = "listening"
	Thinking       ActivityState = "thinking"
	Translating    ActivityState = "translating"
	PreparingVoice ActivityState = "preparing_voice"
	Speaking       ActivityState = "speaking"
)

func (s ActivityState) String() string { return string(s) }

// Busy reports whether the pipeline owns the turn (the learner cannot be heard).
func (s ActivityState) Busy() bool {
	switch s {
	case Thinking, Translating, PreparingVoice, Speaking, Initializing:
		return true
	default:
		return false
	}
}

var transitions = map[ActivityState][]ActivityState{
	// Idle -> Listening only while a call is active; the controller enforces that.
	Idle:         {Initializing, Listening},
	Initializing: {Speaking, Listening},
	Speaking:     {Listening},
	Listening:    {Thinking},
	Thinking:     {Translating, PreparingVoice, Listening},
	Translating:  {PreparingVoice, Listening},
	// PreparingVoice -> Listening covers a failed speak and the error backoff.
	PreparingVoice: {Speaking, Listening},
}

// CanTransition reports whether from -> to is a legal edge. Every state may return to Idle.
func CanTransition(from, to ActivityState) bool {
	if to == Idle {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DisplayPriority orders states when several indicators are raised at once. Higher wins.
func DisplayPriority(s ActivityState) int {
	switch s {
	case Initializing:
		return 6
	case Speaking:
		return 5
	case Thinking:
		return 4
	case Translating:
		return 3
	case PreparingVoice:
		return 2
	case Listening:
		return 1
	default:
		return 0
	}
}

// Resolve picks the state to display from a set of raised indicators, or Idle.
func Resolve(raised ...ActivityState) ActivityState {
	best := Idle
	for _, s := range raised {
		if DisplayPriority(s) > DisplayPriority(best) {
			best = s
		}
	}
	return best
}
