// Package presenter formats assignments for Discord display.
// Presenters convert domain objects into embeds and encode the urgency
// policy: how many days are left decides the colour and the title suffix.
package presenter

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tplearn/tplearn-bot/internal/domain/assignment"
	"github.com/tplearn/tplearn-bot/pkg/timeutil"
)

// Embed colours.
const (
	ColourDefault    = 0x000000
	ColourTeal       = 0x1abc9c
	ColourDarkTeal   = 0x11806a
	ColourGold       = 0xf1c40f
	ColourDarkGold   = 0xc27c0e
	ColourDarkOrange = 0xa84300
	ColourDarkRed    = 0x992d22
	ColourPurple     = 0x9b59b6
	ColourBlue       = 0x3498db
)

// Field names of the assignment embed.
const (
	FieldDate        = ":calendar_spiral: Date:"
	FieldDescription = ":clipboard: Description:"
)

// Gap is the number of days from today to a due day. Known is false for
// undatable assignments.
type Gap struct {
	Days  int
	Known bool
}

// ══════════════════════════════════════════════════════════════════════════════
// URGENCY POLICY
// ══════════════════════════════════════════════════════════════════════════════

// Colour maps urgency to an embed colour.
//
//	passed     -> default
//	unknown    -> purple
//	>= 14 days -> teal
//	>= 7       -> dark teal
//	>= 4       -> gold
//	>= 2       -> dark gold
//	== 1       -> dark orange
//	<= 0       -> dark red while the last day of the span has not passed,
//	              default afterwards
func Colour(gap Gap, passed bool, lasted int) int {
	if passed {
		return ColourDefault
	}
	if !gap.Known {
		return ColourPurple
	}
	if lasted < 1 {
		lasted = 1
	}

	switch d := gap.Days; {
	case d >= 14:
		return ColourTeal
	case d >= 7:
		return ColourDarkTeal
	case d >= 4:
		return ColourGold
	case d >= 2:
		return ColourDarkGold
	case d == 1:
		return ColourDarkOrange
	case d+lasted-1 >= 0:
		return ColourDarkRed
	default:
		return ColourDefault
	}
}

// Title appends the urgency suffix to title.
func Title(title string, gap Gap, passed bool, lasted int) string {
	return title + titleSuffix(gap, passed, lasted)
}

func titleSuffix(gap Gap, passed bool, lasted int) string {
	if passed {
		return " [ PASSED ]"
	}
	if !gap.Known {
		return ""
	}
	if lasted < 1 {
		lasted = 1
	}

	d := gap.Days
	switch {
	case d > 1 && lasted == 1:
		return fmt.Sprintf(" [In %d days]", d)
	case d > 1:
		return fmt.Sprintf(" [Starts in %d days]", d)
	case d == 1 && lasted == 1:
		return " [❗ TOMORROW ❗]"
	case d == 1:
		return " [❗ STARTING TOMORROW ❗]"
	case lasted == 1 && d == 0:
		return " [❗ TODAY ❗]"
	case lasted == 1:
		return " [ PASSED ]"
	}

	// Multi-day span that has already started.
	left := d + lasted - 1
	switch {
	case left < 0:
		return " [ PASSED ]"
	case left == 0:
		return " [❗ ENDS TODAY ❗]"
	default:
		return fmt.Sprintf(" [Ends in %d days]", left)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESENTER
// ══════════════════════════════════════════════════════════════════════════════

// Presenter renders assignment embeds against a calendar.
type Presenter struct {
	calendar *timeutil.Calendar
	facts    []string
	pick     func(n int) int
}

// New creates a presenter. facts feed the overview description; an empty
// list uses DefaultFacts for prefix.
func New(calendar *timeutil.Calendar, prefix string, facts []string) *Presenter {
	if len(facts) == 0 {
		facts = DefaultFacts(prefix)
	}
	return &Presenter{
		calendar: calendar,
		facts:    facts,
		pick:     rand.IntN,
	}
}

// Today returns the calendar date embeds are rendered against.
func (p *Presenter) Today() time.Time {
	return p.calendar.Today()
}

// GapOf returns the days until date.
func (p *Presenter) GapOf(date string) Gap {
	today := p.Today()
	due := assignment.ParseDue(date, today)
	if !due.Known {
		return Gap{}
	}
	return Gap{Days: timeutil.DaysBetween(today, due.Day), Known: true}
}

// AssignmentEmbed renders one assignment. The key is the description and
// the footer so reconciliation can match messages to records.
func (p *Presenter) AssignmentEmbed(a assignment.Assignment) *discordgo.MessageEmbed {
	gap := p.GapOf(a.Date)
	lasted := a.Span()

	embed := &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: Title(a.Title, gap, a.AlreadyPassed, lasted)},
		Description: a.Key,
		Color:       Colour(gap, a.AlreadyPassed, lasted),
		Footer:      &discordgo.MessageEmbedFooter{Text: "Key: " + a.Key},
	}

	readable := a.ReadableDate
	if readable == "" {
		readable = assignment.ParseDue(a.Date, p.Today()).Readable()
	}
	value := readable
	if lasted > 1 {
		value = fmt.Sprintf("Starts at **%s** and lasts for **%d** days.", readable, lasted)
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: FieldDate, Value: value})

	if a.HasDescription() {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: FieldDescription, Value: a.Description})
	}
	if a.HasImage() {
		embed.Image = &discordgo.MessageEmbedImage{URL: a.ImageURL}
	}
	return embed
}

// Overview renders the list of a guild's assignments grouped by due day.
// sorted must come from Planner.GetSorted.
func (p *Presenter) Overview(sorted []assignment.Assignment) *discordgo.MessageEmbed {
	now := p.calendar.Now().UTC().Format(time.RFC3339)

	if len(sorted) == 0 {
		return &discordgo.MessageEmbed{
			Title:       "Congratuation! :heart:",
			Description: "Looks like You don't have any assignment!",
			Color:       ColourBlue,
			Timestamp:   now,
			Footer:      &discordgo.MessageEmbedFooter{Text: "Use add command to add one!"},
		}
	}

	title := "Upcoming Assignments"
	if len(sorted) == 1 {
		title = "Upcoming Assignment"
	}

	embed := &discordgo.MessageEmbed{
		Title:       ":calendar_spiral: " + title + " :calendar_spiral:",
		Description: p.facts[p.pick(len(p.facts))],
		Timestamp:   now,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Take a look at #active-works channel for more info!"},
	}

	today := p.Today()
	var closest Gap

	type group struct {
		name  string
		lines []string
	}
	var groups []*group
	index := make(map[string]*group)

	for _, a := range sorted {
		due := a.Due(today)

		id, name := "unknown", "Unknown Date"
		if due.Known {
			gap := Gap{Days: timeutil.DaysBetween(today, due.Day), Known: true}
			id = due.Day.Format(timeutil.StampLayout)
			name = Title(due.Readable(), gap, false, 1)
			if !closest.Known || gap.Days < closest.Days {
				closest = gap
			}
		}

		g, ok := index[id]
		if !ok {
			g = &group{name: name}
			index[id] = g
			groups = append(groups, g)
		}
		g.lines = append(g.lines, fmt.Sprintf("↳`%s` • %s", a.Key, a.Title))
	}

	for _, g := range groups {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  g.name,
			Value: truncate(strings.Join(g.lines, "\n"), 1024),
		})
	}
	embed.Color = Colour(closest, false, 1)
	return embed
}

// Removed confirms a deletion.
func (p *Presenter) Removed(key string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Description: fmt.Sprintf("**Removed** `%s`", key),
		Color:       ColourBlue,
		Timestamp:   p.calendar.Now().UTC().Format(time.RFC3339),
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 4
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// DefaultFacts returns the tips shown on the overview embed.
func DefaultFacts(prefix string) []string {
	return []string{
		fmt.Sprintf("You can use `%ssetup` to setup the bot!", prefix),
		fmt.Sprintf("To view all the assignments, simply type `%sallworks`.", prefix),
		"Colour of most embeds is based on the assignment date.",
		fmt.Sprintf("Have a problem with bot channels not working properly? Use `%sfix`!", prefix),
		"Type `++3` as the date to set it three days from today.",
		"Add a number after the date to make an assignment last several days.",
		"Don't forget to drink some water!",
		"Have you taken a break yet?",
		"Don't forget to sleep!",
		"Did you sort your backpack yet?",
	}
}
