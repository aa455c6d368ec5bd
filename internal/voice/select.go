package voice

import "strings"

// preferredVoices are pleasant English voices found across common browsers, best first.
var preferredVoices = []string{
	"Samantha",
	"Google US English",
	"Microsoft Zira",
	"Karen",
	"Victoria",
	"Fiona",
	"Moira",
	"Tessa",
	"Veena",
}

// SelectVoice picks the voice to speak with. An explicitly requested ID wins when present;
// otherwise preferred English voices, then a female English voice, then any English voice.
func SelectVoice(voices []VoiceInfo, requestedID string) (VoiceInfo, bool) {
	if requestedID = strings.TrimSpace(requestedID); requestedID != "" {
		for _, v := range voices {
			if v.ID == requestedID || v.Name == requestedID {
				return v, true
			}
		}
	}

	for _, name := range preferredVoices {
		for _, v := range voices {
			if strings.Contains(v.Name, name) && isEnglish(v) {
				return v, true
			}
		}
	}

	for _, v := range voices {
		lower := strings.ToLower(v.Name)
		if isEnglish(v) && (strings.Contains(lower, "female") || strings.Contains(lower, "woman")) {
			return v, true
		}
	}

	for _, v := range voices {
		if isEnglish(v) {
			return v, true
		}
	}
	return VoiceInfo{}, false
}

func isEnglish(v VoiceInfo) bool {
	lang := strings.ToLower(strings.TrimSpace(v.Lang))
	return lang == "en" || strings.HasPrefix(lang, "en-") || strings.HasPrefix(lang, "en_")
}
