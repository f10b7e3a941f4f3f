// Package assignment contains the homework assignment model: the persisted
// record, its due-date grammar and the rules for when it counts as passed.
// No external dependencies beyond the calendar helpers.
package assignment

import (
	"time"

	"github.com/tplearn/tplearn-bot/pkg/timeutil"
)

// Field defaults. A submission where every field is still at its default
// is rejected.
const (
	DefaultTitle       = "Untitled"
	DefaultDescription = "No Description Provided"
	DefaultDate        = "Unknown"
	NoImage            = "Not Attached"
)

// KeyLength is the number of hex characters in a generated key.
const KeyLength = 8

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Assignment is one homework record of a guild.
// JSON names match the persisted "WORKS" document.
type Assignment struct {
	Key           string `json:"key"`
	Title         string `json:"title"`
	Description   string `json:"desc"`
	Date          string `json:"date"`
	Lasted        int    `json:"lasted"`
	ReadableDate  string `json:"readable-date"`
	ImageURL      string `json:"image-url"`
	AlreadyPassed bool   `json:"already-passed"`
	DateTracker   string `json:"date-tracker"`

	// Seq is a per-guild insertion counter used to keep sort order stable.
	Seq int64 `json:"seq"`
}

// Fields are the user-editable parts of an assignment.
type Fields struct {
	Title       string
	Description string
	Date        string
	Lasted      int
	ImageURL    string
}

// DefaultFields returns a blank submission.
func DefaultFields() Fields {
	return Fields{
		Title:       DefaultTitle,
		Description: DefaultDescription,
		Date:        DefaultDate,
		Lasted:      1,
		ImageURL:    NoImage,
	}
}

// IsDefault reports whether nothing was filled in.
func (f Fields) IsDefault() bool {
	return f.Title == DefaultTitle &&
		f.Description == DefaultDescription &&
		f.Date == DefaultDate &&
		f.ImageURL == NoImage
}

// Normalize fills empty fields with their defaults.
func (f Fields) Normalize() Fields {
	if f.Title == "" {
		f.Title = DefaultTitle
	}
	if f.Description == "" {
		f.Description = DefaultDescription
	}
	if f.Date == "" {
		f.Date = DefaultDate
	}
	if f.ImageURL == "" {
		f.ImageURL = NoImage
	}
	if f.Lasted < 1 {
		f.Lasted = 1
	}
	return f
}

// New builds a record from fields. today is the calendar date used to derive
// the readable date, the passed flag and the tracker of undatable records.
func New(key string, f Fields, today time.Time) Assignment {
	f = f.Normalize()
	a := Assignment{
		Key:         key,
		Title:       f.Title,
		Description: f.Description,
		Date:        f.Date,
		Lasted:      f.Lasted,
		ImageURL:    f.ImageURL,
	}

	due := a.Due(today)
	a.ReadableDate = due.Readable()
	if due.Known {
		a.DateTracker = due.LastDay(a.Lasted).Format(timeutil.StampLayout)
	} else {
		a.DateTracker = today.Format(timeutil.StampLayout)
	}
	a.AlreadyPassed = a.IsPassed(today)
	return a
}

// Fields returns the editable fields of the record.
func (a Assignment) Fields() Fields {
	return Fields{
		Title:       a.Title,
		Description: a.Description,
		Date:        a.Date,
		Lasted:      a.Span(),
		ImageURL:    a.ImageURL,
	}
}

// Due parses the stored date.
func (a Assignment) Due(today time.Time) Due {
	return ParseDue(a.Date, today)
}

// Span returns the number of days the assignment lasts, at least one.
func (a Assignment) Span() int {
	if a.Lasted < 1 {
		return 1
	}
	return a.Lasted
}

// IsPassed reports whether the last day of the span is strictly before today.
// Undatable records never pass by date.
func (a Assignment) IsPassed(today time.Time) bool {
	due := a.Due(today)
	if !due.Known {
		return false
	}
	return due.LastDay(a.Span()).Before(today)
}

// HasImage reports whether an image is attached.
func (a Assignment) HasImage() bool {
	return a.ImageURL != "" && a.ImageURL != NoImage
}

// HasDescription reports whether a description was provided.
func (a Assignment) HasDescription() bool {
	return a.Description != "" && a.Description != DefaultDescription
}

// TrackerAge returns how many days ago the date tracker lies, and false when
// the tracker cannot be parsed.
func (a Assignment) TrackerAge(today time.Time) (int, bool) {
	tracker := ParseDue(a.DateTracker, today)
	if !tracker.Known {
		return 0, false
	}
	return timeutil.DaysBetween(tracker.Day, today), true
}
