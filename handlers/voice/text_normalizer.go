package voice

import (
	"regexp"
	"strings"
)

var (
	markdownReplacer = strings.NewReplacer(
		"**", "", // bold
		"__", "", // underline
		"~~", "", // strikethrough
		"`", "",  // inline code
		"*", "",  // italic / bullets
		"#", "",
	)
	// Emoji and pictographs with their joiners, variation selectors and skin
	// tones. Currency and math signs stay: they carry meaning.
	pictographRegex  = regexp.MustCompile(`[\p{So}\x{200D}\x{20E3}\x{FE0E}\x{FE0F}\x{1F3FB}-\x{1F3FF}]`)
	multiSpacesRegex = regexp.MustCompile(`\s+`)
)

// normalizeForSpeech strips markup and emoji a synthesizer would read out
// literally.
func normalizeForSpeech(text string) string {
	text = markdownReplacer.Replace(text)
	text = pictographRegex.ReplaceAllString(text, "")
	text = multiSpacesRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
