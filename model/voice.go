package model

import (
	"fmt"
	"strings"
)

// VoiceName is a prebuilt voice identifier understood by the speech model.
type VoiceName string

const (
	VoiceZephyr        VoiceName = "Zephyr"
	VoicePuck          VoiceName = "Puck"
	VoiceCharon        VoiceName = "Charon"
	VoiceKore          VoiceName = "Kore"
	VoiceFenrir        VoiceName = "Fenrir"
	VoiceLeda          VoiceName = "Leda"
	VoiceOrus          VoiceName = "Orus"
	VoiceAoede         VoiceName = "Aoede"
	VoiceCallirrhoe    VoiceName = "Callirrhoe"
	VoiceAutonoe       VoiceName = "Autonoe"
	VoiceEnceladus     VoiceName = "Enceladus"
	VoiceIapetus       VoiceName = "Iapetus"
	VoiceUmbriel       VoiceName = "Umbriel"
	VoiceAlgieba       VoiceName = "Algieba"
	VoiceDespina       VoiceName = "Despina"
	VoiceErinome       VoiceName = "Erinome"
	VoiceAlgenib       VoiceName = "Algenib"
	VoiceRasalgethi    VoiceName = "Rasalgethi"
	VoiceLaomedeia     VoiceName = "Laomedeia"
	VoiceAchernar      VoiceName = "Achernar"
	VoiceAlnilam       VoiceName = "Alnilam"
	VoiceSchedar       VoiceName = "Schedar"
	VoiceGacrux        VoiceName = "Gacrux"
	VoicePulcherrima   VoiceName = "Pulcherrima"
	VoiceAchird        VoiceName = "Achird"
	VoiceZubenelgenubi VoiceName = "Zubenelgenubi"
	VoiceVindemiatrix  VoiceName = "Vindemiatrix"
	VoiceSadachbia     VoiceName = "Sadachbia"
	VoiceSadaltager    VoiceName = "Sadaltager"
	VoiceSulafat       VoiceName = "Sulafat"
)

// DefaultVoice is used when no heuristic rule matches and for the fallback speaker.
const DefaultVoice = VoiceKore

// VoiceInfo describes a catalog entry.
type VoiceInfo struct {
	Name            VoiceName `json:"name"`
	Characteristics string    `json:"characteristics"`
	Recommendations []string  `json:"recommended_for"`
}

var voiceCatalog = []VoiceInfo{
	{VoiceZephyr, "Bright", []string{"cheerful content", "upbeat dialogue"}},
	{VoicePuck, "Upbeat", []string{"energetic speakers", "enthusiastic content"}},
	{VoiceCharon, "Informative", []string{"educational content", "documentaries"}},
	{VoiceKore, "Firm", []string{"authoritative speakers", "business content"}},
	{VoiceFenrir, "Excitable", []string{"excited dialogue", "dynamic content"}},
	{VoiceLeda, "Youthful", []string{"young speakers", "casual conversation"}},
	{VoiceOrus, "Firm", []string{"strong male voices", "serious content"}},
	{VoiceAoede, "Breezy", []string{"relaxed dialogue", "casual content"}},
	{VoiceCallirrhoe, "Easy-going", []string{"friendly conversation", "approachable content"}},
	{VoiceAutonoe, "Bright", []string{"clear dialogue", "professional content"}},
	{VoiceEnceladus, "Breathy", []string{"soft dialogue", "intimate content"}},
	{VoiceIapetus, "Clear", []string{"clear narration", "instructional content"}},
	{VoiceUmbriel, "Easy-going", []string{"casual dialogue", "relaxed content"}},
	{VoiceAlgieba, "Smooth", []string{"smooth narration", "professional content"}},
	{VoiceDespina, "Smooth", []string{"gentle dialogue", "calm content"}},
	{VoiceErinome, "Clear", []string{"clear speech", "presentations"}},
	{VoiceAlgenib, "Gravelly", []string{"character voices", "distinctive speakers"}},
	{VoiceRasalgethi, "Informative", []string{"informative content", "explanations"}},
	{VoiceLaomedeia, "Upbeat", []string{"positive content", "uplifting dialogue"}},
	{VoiceAchernar, "Soft", []string{"gentle content", "soothing dialogue"}},
	{VoiceAlnilam, "Firm", []string{"confident speakers", "assertive content"}},
	{VoiceSchedar, "Even", []string{"balanced dialogue", "neutral content"}},
	{VoiceGacrux, "Mature", []string{"mature speakers", "experienced voices"}},
	{VoicePulcherrima, "Forward", []string{"direct dialogue", "straightforward content"}},
	{VoiceAchird, "Friendly", []string{"warm dialogue", "welcoming content"}},
	{VoiceZubenelgenubi, "Casual", []string{"informal dialogue", "relaxed conversation"}},
	{VoiceVindemiatrix, "Gentle", []string{"kind dialogue", "supportive content"}},
	{VoiceSadachbia, "Lively", []string{"animated dialogue", "lively content"}},
	{VoiceSadaltager, "Knowledgeable", []string{"expert content", "educational material"}},
	{VoiceSulafat, "Warm", []string{"warm content", "comforting dialogue"}},
}

var voiceIndex = func() map[string]VoiceName {
	idx := make(map[string]VoiceName, len(voiceCatalog))
	for _, v := range voiceCatalog {
		idx[strings.ToLower(string(v.Name))] = v.Name
	}
	return idx
}()

// VoiceCatalog returns a copy of the fixed voice catalog in catalog order.
func VoiceCatalog() []VoiceInfo {
	out := make([]VoiceInfo, len(voiceCatalog))
	for i, v := range voiceCatalog {
		v.Recommendations = append([]string(nil), v.Recommendations...)
		out[i] = v
	}
	return out
}

// ParseVoiceName resolves a case-insensitive voice identifier against the catalog.
func ParseVoiceName(s string) (VoiceName, error) {
	if v, ok := voiceIndex[strings.ToLower(strings.TrimSpace(s))]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown voice %q", s)
}

// IsKnown reports whether v is in the catalog.
func (v VoiceName) IsKnown() bool {
	_, ok := voiceIndex[strings.ToLower(string(v))]
	return ok
}
