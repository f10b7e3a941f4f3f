package presenter

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// SameEmbed reports whether a posted embed already shows what desired would.
// Only the parts an assignment embed sets are compared: key, colour, title,
// fields, image and footer. Timestamps and platform-filled metadata are ignored,
// and surrounding whitespace is not significant since the platform trims it.
func SameEmbed(posted, desired *discordgo.MessageEmbed) bool {
	if posted == nil || desired == nil {
		return posted == desired
	}
	if !same(posted.Description, desired.Description) ||
		posted.Color != desired.Color ||
		!same(authorName(posted), authorName(desired)) ||
		imageURL(posted) != imageURL(desired) ||
		!same(footerText(posted), footerText(desired)) {
		return false
	}
	if len(posted.Fields) != len(desired.Fields) {
		return false
	}
	for i := range posted.Fields {
		a, b := posted.Fields[i], desired.Fields[i]
		if a == nil || b == nil {
			if a != b {
				return false
			}
			continue
		}
		if !same(a.Name, b.Name) || !same(a.Value, b.Value) {
			return false
		}
	}
	return true
}

func same(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

func authorName(e *discordgo.MessageEmbed) string {
	if e.Author == nil {
		return ""
	}
	return e.Author.Name
}

func imageURL(e *discordgo.MessageEmbed) string {
	if e.Image == nil {
		return ""
	}
	return e.Image.URL
}

func footerText(e *discordgo.MessageEmbed) string {
	if e.Footer == nil {
		return ""
	}
	return e.Footer.Text
}
