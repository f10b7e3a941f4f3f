package presenter

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tplearn/tplearn-bot/internal/application/menu"
	"github.com/tplearn/tplearn-bot/internal/domain/assignment"
	"github.com/tplearn/tplearn-bot/pkg/timeutil"
)

var today = timeutil.Date(2024, 3, 1)

func newTestPresenter() *Presenter {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, timeutil.ThailandTZ)
	p := New(timeutil.Thailand().WithClock(func() time.Time { return now }), ",", []string{"fact"})
	p.pick = func(int) int { return 0 }
	return p
}

func known(d int) Gap { return Gap{Days: d, Known: true} }

func TestColour(t *testing.T) {
	tests := []struct {
		name   string
		gap    Gap
		passed bool
		lasted int
		want   int
	}{
		{"passed wins", known(20), true, 1, ColourDefault},
		{"unknown", Gap{}, false, 1, ColourPurple},
		{"two weeks", known(14), false, 1, ColourTeal},
		{"thirteen days", known(13), false, 1, ColourDarkTeal},
		{"one week", known(7), false, 1, ColourDarkTeal},
		{"four days", known(4), false, 1, ColourGold},
		{"three days", known(3), false, 1, ColourDarkGold},
		{"two days", known(2), false, 1, ColourDarkGold},
		{"tomorrow", known(1), false, 1, ColourDarkOrange},
		{"today", known(0), false, 1, ColourDarkRed},
		{"yesterday single day", known(-1), false, 1, ColourDefault},
		{"yesterday running span", known(-1), false, 3, ColourDarkRed},
		{"span ends today", known(-2), false, 3, ColourDarkRed},
		{"span finished", known(-3), false, 3, ColourDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Colour(tt.gap, tt.passed, tt.lasted))
		})
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name   string
		gap    Gap
		passed bool
		lasted int
		want   string
	}{
		{"passed", known(5), true, 1, "HW [ PASSED ]"},
		{"unknown", Gap{}, false, 1, "HW"},
		{"in days", known(5), false, 1, "HW [In 5 days]"},
		{"starts in days", known(5), false, 2, "HW [Starts in 5 days]"},
		{"tomorrow", known(1), false, 1, "HW [❗ TOMORROW ❗]"},
		{"starting tomorrow", known(1), false, 4, "HW [❗ STARTING TOMORROW ❗]"},
		{"today", known(0), false, 1, "HW [❗ TODAY ❗]"},
		{"single day over", known(-1), false, 1, "HW [ PASSED ]"},
		{"span started today", known(0), false, 3, "HW [Ends in 2 days]"},
		{"span ends today", known(-2), false, 3, "HW [❗ ENDS TODAY ❗]"},
		{"span over", known(-3), false, 3, "HW [ PASSED ]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title("HW", tt.gap, tt.passed, tt.lasted))
		})
	}
}

func TestAssignmentEmbed(t *testing.T) {
	p := newTestPresenter()

	a := assignment.New("abcd1234", assignment.Fields{
		Title:       "Essay",
		Description: "Five pages",
		Date:        "5/3/2024",
		Lasted:      1,
		ImageURL:    "https://example.com/x.png",
	}, today)

	e := p.AssignmentEmbed(a)
	assert.Equal(t, "abcd1234", e.Description)
	assert.Equal(t, "Essay [In 4 days]", e.Author.Name)
	assert.Equal(t, ColourGold, e.Color)
	assert.Equal(t, "Key: abcd1234", e.Footer.Text)
	require.Len(t, e.Fields, 2)
	assert.Equal(t, FieldDate, e.Fields[0].Name)
	assert.Equal(t, "Tuesday 05 March 2024", e.Fields[0].Value)
	assert.Equal(t, "Five pages", e.Fields[1].Value)
	assert.Equal(t, "https://example.com/x.png", e.Image.URL)
	assert.Empty(t, e.Timestamp)
}

func TestAssignmentEmbed_Minimal(t *testing.T) {
	p := newTestPresenter()

	f := assignment.DefaultFields()
	f.Title = "Quiz"
	f.Date = "next week"
	e := p.AssignmentEmbed(assignment.New("k", f, today))

	assert.Equal(t, "Quiz", e.Author.Name)
	assert.Equal(t, ColourPurple, e.Color)
	require.Len(t, e.Fields, 1)
	assert.Equal(t, "next week", e.Fields[0].Value)
	assert.Nil(t, e.Image)
}

func TestAssignmentEmbed_Span(t *testing.T) {
	p := newTestPresenter()

	f := assignment.DefaultFields()
	f.Title = "Camp"
	f.Date = "29/2/2024"
	f.Lasted = 3
	e := p.AssignmentEmbed(assignment.New("k", f, today))

	assert.Equal(t, "Camp [Ends in 1 days]", e.Author.Name)
	assert.Equal(t, ColourDarkRed, e.Color)
	assert.Equal(t, "Starts at **Thursday 29 February 2024** and lasts for **3** days.", e.Fields[0].Value)
}

func TestOverview(t *testing.T) {
	p := newTestPresenter()

	mk := func(key, title, date string) assignment.Assignment {
		f := assignment.DefaultFields()
		f.Title, f.Date = title, date
		return assignment.New(key, f, today)
	}

	e := p.Overview([]assignment.Assignment{
		mk("a", "Essay", "3/3/2024"),
		mk("b", "Lab", "3/3/2024"),
		mk("c", "Quiz", "10/3/2024"),
		mk("d", "Project", "someday"),
	})

	assert.Equal(t, ":calendar_spiral: Upcoming Assignments :calendar_spiral:", e.Title)
	assert.Equal(t, "fact", e.Description)
	assert.Equal(t, ColourDarkGold, e.Color)
	require.Len(t, e.Fields, 3)
	assert.Equal(t, "Sunday 03 March 2024 [In 2 days]", e.Fields[0].Name)
	assert.Equal(t, "↳`a` • Essay\n↳`b` • Lab", e.Fields[0].Value)
	assert.Equal(t, "Unknown Date", e.Fields[2].Name)
}

func TestOverview_Empty(t *testing.T) {
	e := newTestPresenter().Overview(nil)
	assert.Equal(t, ColourBlue, e.Color)
	assert.Empty(t, e.Fields)
}

func TestOverview_TruncatesLongGroups(t *testing.T) {
	p := newTestPresenter()

	var list []assignment.Assignment
	for i := 0; i < 60; i++ {
		f := assignment.DefaultFields()
		f.Title = strings.Repeat("ข", 20)
		f.Date = "3/3/2024"
		list = append(list, assignment.New("k", f, today))
	}
	e := p.Overview(list)
	require.Len(t, e.Fields, 1)
	assert.LessOrEqual(t, len(e.Fields[0].Value), 1024)
	assert.True(t, strings.HasSuffix(e.Fields[0].Value, "..."))
}

func TestSameEmbed(t *testing.T) {
	p := newTestPresenter()
	f := assignment.DefaultFields()
	f.Title = "Essay"
	f.Date = "5/3/2024"
	a := assignment.New("k1", f, today)

	desired := p.AssignmentEmbed(a)
	posted := p.AssignmentEmbed(a)
	posted.Timestamp = "2024-03-01T00:00:00Z"
	posted.Type = discordgo.EmbedTypeRich
	posted.Fields[0].Name += " "
	assert.True(t, SameEmbed(posted, desired))

	changed := p.AssignmentEmbed(a)
	changed.Color = ColourTeal
	assert.False(t, SameEmbed(changed, desired))

	f.Description = "now with text"
	assert.False(t, SameEmbed(p.AssignmentEmbed(assignment.New("k1", f, today)), desired))

	assert.False(t, SameEmbed(nil, desired))
	assert.True(t, SameEmbed(nil, nil))
	assert.Equal(t, "k1", desired.Description)
}

func TestMenuEmbed(t *testing.T) {
	p := newTestPresenter()

	f := assignment.DefaultFields()
	f.Title = "Essay"
	f.Date = "5/3/2024"
	f.Lasted = 2
	e := p.MenuEmbed(menu.State{Kind: menu.KindAdd, Step: menu.StepDate, Fields: f})

	assert.Equal(t, "Homework Menu", e.Author.Name)
	require.Len(t, e.Fields, 4)
	assert.Equal(t, "1️⃣ Title", e.Fields[0].Name)
	assert.Equal(t, "Essay", e.Fields[0].Value)
	assert.Equal(t, "⭕ Date ⬅️⬅️⬅️", e.Fields[2].Name)
	assert.Equal(t, "Tuesday 05 March 2024 (2 days)", e.Fields[2].Value)
	assert.Equal(t, assignment.NoImage, e.Fields[3].Value)
	assert.Nil(t, e.Image)

	f.ImageURL = "https://example.com/a.png"
	e = p.MenuEmbed(menu.State{Step: menu.StepTitle, Fields: f})
	assert.Equal(t, "Attached", e.Fields[3].Value)
	assert.Equal(t, "https://example.com/a.png", e.Image.URL)
}

func TestClosedMenuEmbed(t *testing.T) {
	p := newTestPresenter()

	e := p.ClosedMenuEmbed(menu.Result{Outcome: menu.OutcomeCancelled})
	assert.Equal(t, "[Closed Menu]", e.Description)
	assert.Equal(t, ColourDarkRed, e.Color)

	e = p.ClosedMenuEmbed(menu.Result{Outcome: menu.OutcomeCommitted, Reason: "ok"})
	assert.Equal(t, ColourTeal, e.Color)
	assert.Equal(t, "ok", e.Description)

	e = p.ClosedMenuEmbed(menu.Result{Outcome: menu.OutcomeFailed, Reason: "bad"})
	assert.Equal(t, ColourDefault, e.Color)
}
