package voice

import (
	"strings"

	"neurotome/core"
)

// SelectVoice returns the first installed voice whose name contains a
// preferred name, trying preferences in order. It returns nil when nothing
// matches or no voices are installed.
func SelectVoice(voices []core.Voice, preferred []string) *core.Voice {
	for _, p := range preferred {
		if p == "" {
			continue
		}
		for i := range voices {
			if strings.Contains(voices[i].Name, p) {
				v := voices[i]
				return &v
			}
		}
	}
	return nil
}
