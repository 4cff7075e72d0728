package catalog

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// displayNameMax is the rune cap front-ends rely on for listing names.
const displayNameMax = 80

// renderDisplayName renders "[4X] Name (tag, tag)" capped at 80 runes.
// Over-long names drop tags from the right one by one, then collapse the
// tag list to "(...)", and as a last resort fall back to the raw name
// trimmed with a "..." marker.
func renderDisplayName(scale int, name string, tagNames []string) string {
	base := fmt.Sprintf("[%dX] %s", scale, name)
	d := base
	if len(tagNames) > 0 {
		d = fmt.Sprintf("%s (%s)", base, strings.Join(tagNames, ", "))
	}
	for utf8.RuneCountInString(d) > displayNameMax {
		if len(tagNames) == 0 {
			runes := []rune(base)
			if len(runes) > displayNameMax-3 {
				runes = runes[:displayNameMax-3]
			}
			return string(runes) + "..."
		}
		tagNames = tagNames[:len(tagNames)-1]
		if len(tagNames) == 0 {
			d = base + " (...)"
			continue
		}
		d = fmt.Sprintf("%s (%s)", base, strings.Join(tagNames, ", "))
	}
	return d
}
