package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"DubFlow/model"
)

func TestKeywordSelector(t *testing.T) {
	s := NewKeywordSelector()

	tests := []struct {
		name            string
		characteristics string
		tone            string
		want            model.VoiceName
	}{
		{"deep authoritative", "Deep, resonant male voice", "Authoritative", model.VoiceOrus},
		{"male firm", "male baritone", "firm and steady", model.VoiceOrus},
		{"deep friendly", "deep voice", "friendly, warm", model.VoiceAchird},
		{"deep other", "deeply gravelly", "sad", model.VoiceKore},
		{"high cheerful", "high-pitched", "cheerful", model.VoiceZephyr},
		{"female bright", "female soprano", "bright", model.VoiceZephyr},
		{"female gentle", "soft female voice", "gentle", model.VoiceVindemiatrix},
		{"female other", "female", "serious", model.VoiceLeda},
		{"energetic", "raspy", "energetic", model.VoiceFenrir},
		{"excited", "", "very excited", model.VoiceFenrir},
		{"calm", "neutral", "calm", model.VoiceAlgieba},
		{"smooth", "", "smooth delivery", model.VoiceAlgieba},
		{"no match", "robotic", "flat", model.VoiceKore},
		{"empty", "", "", model.VoiceKore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Select(tt.characteristics, tt.tone))
		})
	}
}

func TestFemaleDoesNotMatchMaleRule(t *testing.T) {
	s := NewKeywordSelector()
	// "female" must not be read as "male" and route to the deep/male rules.
	assert.Equal(t, model.VoiceLeda, s.Select("female", "authoritative"))
}

func TestCustomRulesAndFunc(t *testing.T) {
	s := &KeywordSelector{
		Rules:    []Rule{{Tones: []string{"sleepy"}, Voice: model.VoiceEnceladus}},
		Fallback: model.VoicePuck,
	}
	assert.Equal(t, model.VoiceEnceladus, s.Select("", "Sleepy"))
	assert.Equal(t, model.VoicePuck, s.Select("", "awake"))

	var fixed Selector = SelectorFunc(func(string, string) model.VoiceName { return model.VoiceSulafat })
	assert.Equal(t, model.VoiceSulafat, fixed.Select("anything", "at all"))
}
