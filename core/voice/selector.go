package voice

import (
	"strings"
	"unicode"

	"DubFlow/model"
)

// Selector picks a catalog voice for a speaker from the free-text description
// returned by video analysis.
type Selector interface {
	Select(characteristics, tone string) model.VoiceName
}

// SelectorFunc adapts a plain function to Selector.
type SelectorFunc func(characteristics, tone string) model.VoiceName

func (f SelectorFunc) Select(characteristics, tone string) model.VoiceName {
	return f(characteristics, tone)
}

// Rule matches when any of Characteristics is found in the characteristics text
// (or Characteristics is empty) and any of Tones is found in the tone text (or
// Tones is empty).
type Rule struct {
	Characteristics []string
	Tones           []string
	Voice           model.VoiceName
}

// DefaultRules is ordered, the first matching rule wins.
var DefaultRules = []Rule{
	{Characteristics: []string{"deep", "male"}, Tones: []string{"authoritative", "firm"}, Voice: model.VoiceOrus},
	{Characteristics: []string{"deep", "male"}, Tones: []string{"friendly"}, Voice: model.VoiceAchird},
	{Characteristics: []string{"deep", "male"}, Voice: model.VoiceKore},
	{Characteristics: []string{"high", "female"}, Tones: []string{"bright", "cheerful"}, Voice: model.VoiceZephyr},
	{Characteristics: []string{"high", "female"}, Tones: []string{"gentle"}, Voice: model.VoiceVindemiatrix},
	{Characteristics: []string{"high", "female"}, Voice: model.VoiceLeda},
	{Tones: []string{"energetic", "excited"}, Voice: model.VoiceFenrir},
	{Tones: []string{"calm", "smooth"}, Voice: model.VoiceAlgieba},
}

// KeywordSelector matches keywords against word prefixes, so "female" does not
// satisfy "male" while "deeply" still satisfies "deep".
type KeywordSelector struct {
	Rules    []Rule
	Fallback model.VoiceName
}

// NewKeywordSelector returns the default rule table with Kore as fallback.
func NewKeywordSelector() *KeywordSelector {
	return &KeywordSelector{Rules: DefaultRules, Fallback: model.DefaultVoice}
}

func (s *KeywordSelector) Select(characteristics, tone string) model.VoiceName {
	charWords := words(characteristics)
	toneWords := words(tone)
	for _, r := range s.Rules {
		if matchesAny(charWords, r.Characteristics) && matchesAny(toneWords, r.Tones) {
			return r.Voice
		}
	}
	if s.Fallback == "" {
		return model.DefaultVoice
	}
	return s.Fallback
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func matchesAny(ws, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, w := range ws {
		for _, k := range keywords {
			if strings.HasPrefix(w, k) {
				return true
			}
		}
	}
	return false
}
