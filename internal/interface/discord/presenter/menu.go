package presenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tplearn/tplearn-bot/internal/application/menu"
	"github.com/tplearn/tplearn-bot/internal/domain/assignment"
)

// ══════════════════════════════════════════════════════════════════════════════
// MENU
// ══════════════════════════════════════════════════════════════════════════════

var stepNames = map[menu.Step]string{
	menu.StepTitle:       "Title",
	menu.StepDescription: "Description",
	menu.StepDate:        "Date",
	menu.StepImage:       "Image",
}

// MenuEmbed renders an open menu. The selected field is marked so the user
// knows what the next message fills.
func (p *Presenter) MenuEmbed(st menu.State) *discordgo.MessageEmbed {
	f := st.Fields
	due := assignment.ParseDue(f.Date, p.Today())

	date := due.Readable()
	if f.Lasted > 1 {
		date = fmt.Sprintf("%s (%d days)", date, f.Lasted)
	}

	values := map[menu.Step]string{
		menu.StepTitle:       f.Title,
		menu.StepDescription: f.Description,
		menu.StepDate:        date,
		menu.StepImage:       assignment.NoImage,
	}
	if f.ImageURL != "" && f.ImageURL != assignment.NoImage {
		values[menu.StepImage] = "Attached"
	}

	embed := &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: "Homework Menu"},
		Description: "Click the reaction to select and edit.",
		Color:       ColourTeal,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Send message to set info!"},
	}

	for step := menu.StepTitle; step <= menu.StepImage; step++ {
		name := fmt.Sprintf("%s %s", menu.StepEmoji(step), stepNames[step])
		if step == st.Step {
			name = fmt.Sprintf("⭕ %s ⬅️⬅️⬅️", stepNames[step])
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  name,
			Value: truncate(orDash(values[step]), 1024),
		})
	}

	if values[menu.StepImage] == "Attached" {
		embed.Image = &discordgo.MessageEmbedImage{URL: f.ImageURL}
	}
	return embed
}

// ClosedMenuEmbed replaces the menu once its session ends.
func (p *Presenter) ClosedMenuEmbed(r menu.Result) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Author:    &discordgo.MessageEmbedAuthor{Name: "Homework Menu"},
		Timestamp: p.calendar.Now().UTC().Format(time.RFC3339),
	}

	switch r.Outcome {
	case menu.OutcomeCommitted:
		embed.Color = ColourTeal
		embed.Description = r.Reason
	case menu.OutcomeFailed:
		embed.Color = ColourDefault
		embed.Description = r.Reason
	case menu.OutcomeRejected:
		embed.Color = ColourDarkRed
		embed.Description = r.Reason
	default:
		embed.Color = ColourDarkRed
		embed.Description = "[Closed Menu]"
		if r.Reason != "" {
			embed.Description = r.Reason
		}
	}
	return embed
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTICES
// ══════════════════════════════════════════════════════════════════════════════

// Notice is a short coloured reply.
func Notice(colour int, text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: text, Color: colour}
}

// Error is a short red reply.
func Error(text string) *discordgo.MessageEmbed {
	return Notice(ColourDarkRed, text)
}

// CommandHelp is one line of the help embed.
type CommandHelp struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
}

// Help lists the commands.
func Help(prefix string, commands []CommandHelp) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "TpLearn Commands",
		Description: fmt.Sprintf("Prefix is `%s`", prefix),
		Color:       ColourBlue,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Menus close after 5 minutes without input."},
	}
	for _, c := range commands {
		name := prefix + c.Name
		if c.Usage != "" {
			name += " " + c.Usage
		}
		value := c.Description
		if len(c.Aliases) > 0 {
			value += fmt.Sprintf("\nAliases: `%s`", strings.Join(c.Aliases, "`, `"))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: name, Value: value})
	}
	return embed
}
