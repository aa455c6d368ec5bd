package turn

import (
	"regexp"
	"strings"
)

var (
	speechBoldPattern       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	speechItalicPattern     = regexp.MustCompile(`\*(.+?)\*`)
	speechUnderscorePattern = regexp.MustCompile(`_(.+?)_`)
	speechInlineCodePattern = regexp.MustCompile("`(.+?)`")
	speechLinkPattern       = regexp.MustCompile(`\[(.+?)\]\(.+?\)`)
	speechHeadingPattern    = regexp.MustCompile(`#{1,6}\s`)
	speechSpacePattern      = regexp.MustCompile(`\s+`)

	speechGlyphs = strings.NewReplacer(
		"😊", "", "😄", "", "😃", "", "😀", "", "🙂", "",
		"👍", "", "✨", "", "💪", "", "🎉", "", "🌟", "",
		"\ufe0f", "",
	)
)

// SanitizeForSpeech strips markdown and decorative emoji from model text so the
// synthesizer reads only words.
func SanitizeForSpeech(raw string) string {
	out := speechBoldPattern.ReplaceAllString(raw, "$1")
	out = speechItalicPattern.ReplaceAllString(out, "$1")
	out = speechUnderscorePattern.ReplaceAllString(out, "$1")
	out = speechInlineCodePattern.ReplaceAllString(out, "$1")
	out = speechLinkPattern.ReplaceAllString(out, "$1")
	out = speechHeadingPattern.ReplaceAllString(out, "")
	out = speechGlyphs.Replace(out)
	out = speechSpacePattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
