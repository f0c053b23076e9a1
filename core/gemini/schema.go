package gemini

// schema is the subset of the OpenAPI schema object accepted as responseSchema.
type schema struct {
	Type       string             `json:"type"`
	Properties map[string]*schema `json:"properties,omitempty"`
	Items      *schema            `json:"items,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

const analysisPrompt = `Analyze this video and provide detailed information about:
1. Video duration in seconds
2. Number of speakers (count distinct voices)
3. Complete transcript with timestamps
4. If multiple speakers, format as dialogue with speaker names
5. Detected language

For each speaker, identify:
- Distinct voice characteristics
- Emotional tone and style
- Speaking segments with timestamps

Transcribe the audio from this video, giving timestamps for salient events.
Also provide visual descriptions and speaker analysis.`

var analysisSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"duration":          {Type: "NUMBER"},
		"speaker_count":     {Type: "INTEGER"},
		"transcript":        {Type: "STRING"},
		"dialogue_format":   {Type: "STRING"},
		"language_detected": {Type: "STRING"},
		"speakers": {
			Type: "ARRAY",
			Items: &schema{
				Type: "OBJECT",
				Properties: map[string]*schema{
					"name":                  {Type: "STRING"},
					"voice_characteristics": {Type: "STRING"},
					"emotional_tone":        {Type: "STRING"},
					"dialogue_segments": {
						Type:  "ARRAY",
						Items: &schema{Type: "STRING"},
					},
					"timestamps": {
						Type: "ARRAY",
						Items: &schema{
							Type:  "ARRAY",
							Items: &schema{Type: "NUMBER"},
						},
					},
				},
			},
		},
	},
	Required: []string{"duration", "speaker_count", "transcript"},
}
