package dubbing

import (
	"regexp"
	"strings"
)

var (
	// 00:12, 1:02:33, [00:12], 00:12.5
	timestampPattern = regexp.MustCompile(`\[?\b\d{1,2}:\d{2}(?::\d{2})?(?:\.\d+)?\]?\s*`)
	// [Music], [laughs], [inaudible]
	bracketPattern = regexp.MustCompile(`\[[^\]]*\]\s*`)
)

// CleanTranscript strips timestamp markers and bracketed non-speech cues, then
// joins the remaining non-blank lines with single spaces.
func CleanTranscript(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = timestampPattern.ReplaceAllString(line, "")
		line = bracketPattern.ReplaceAllString(line, "")
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, " ")
}
