package ingest

import "strings"

// NormalizeContent strips presentation markup from a raw radio message and
// extracts the driver reference when one is present.
//
// The radio bot formats messages as
//
//	:studio_microphone: `Leclerc` Box box box.
//
// so the driver is the text between the first pair of backticks and the
// leading :emoji: token is display-only.
func NormalizeContent(content string) (driver *string, text string) {
	text = strings.TrimSpace(content)

	if left := strings.Index(content, "`"); left != -1 {
		if right := strings.Index(content[left+1:], "`"); right != -1 {
			if d := strings.TrimSpace(content[left+1 : left+1+right]); d != "" {
				driver = &d
			}
		}
	}

	if strings.HasPrefix(text, ":") {
		if _, rest, found := strings.Cut(text, " "); found {
			text = rest
		}
	}

	return driver, strings.TrimSpace(text)
}
