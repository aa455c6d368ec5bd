package turn

import (
	"strings"
	"time"
)

// MemoryCues are phrases the tutor uses when it learns something about the learner.
var MemoryCues = []string{
	"I'll remember",
	"I'll note that",
	"Good to know",
	"So you",
	"I see you",
}

// factDateLayout renders the day a fact was learned.
const factDateLayout = "2006-01-02"

// MatchMemoryCue reports the first cue found in reply, ignoring case.
func MatchMemoryCue(reply string) (string, bool) {
	lower := strings.ToLower(reply)
	for _, cue := range MemoryCues {
		if strings.Contains(lower, strings.ToLower(cue)) {
			return cue, true
		}
	}
	return "", false
}

// FactContent is the stored memory for a learner utterance.
func FactContent(utterance string, learnedAt time.Time) string {
	return "Learned from conversation on " + learnedAt.Format(factDateLayout) + ": " + strings.TrimSpace(utterance)
}
