// Package translate renders assistant replies in the learner's interface language.
package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ent0n29/talkmate/internal/agent"
)

// SourceLanguage is the language assistant replies are generated in.
const SourceLanguage = "en"

var languageNames = map[string]string{
	"tr": "Turkish",
	"en": "English",
	"de": "German",
	"es": "Spanish",
	"fr": "French",
	"it": "Italian",
	"pt": "Portuguese",
}

// LanguageName returns the English name for a language code.
func LanguageName(code string) (string, bool) {
	name, ok := languageNames[strings.ToLower(strings.TrimSpace(code))]
	return name, ok
}

// Translator never fails: every error path yields the input text unchanged.
type Translator interface {
	Translate(ctx context.Context, text, target string) string
}

// ModelTranslator prompts a generation client for a bare translation.
type ModelTranslator struct {
	client agent.Client
	log    zerolog.Logger
}

func New(client agent.Client, log zerolog.Logger) *ModelTranslator {
	return &ModelTranslator{client: client, log: log}
}

func (t *ModelTranslator) Translate(ctx context.Context, text, target string) string {
	if strings.TrimSpace(text) == "" || t == nil || t.client == nil {
		return text
	}
	name, ok := LanguageName(target)
	if !ok || strings.EqualFold(strings.TrimSpace(target), SourceLanguage) {
		return text
	}

	out, err := t.client.Generate(ctx, "", nil, Prompt(text, name))
	if err != nil {
		t.log.Debug().Err(err).Str("target", target).Msg("translation failed")
		return text
	}
	out = cleanup(out)
	if out == "" {
		return text
	}
	return out
}

// Prompt renders the translation request for a target language name.
func Prompt(text, language string) string {
	return fmt.Sprintf("Translate the following English text to %s. Only provide the translation, nothing else:\n\n\"%s\"", language, text)
}

func cleanup(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"`, "'", "“"} {
		closing := q
		if q == "“" {
			closing = "”"
		}
		if len(s) >= len(q)+len(closing) && strings.HasPrefix(s, q) && strings.HasSuffix(s, closing) {
			s = strings.TrimSpace(s[len(q) : len(s)-len(closing)])
		}
	}
	return s
}

// Disabled passes text through unchanged.
type Disabled struct{}

func (Disabled) Translate(_ context.Context, text, _ string) string { return text }
