package timeline

import (
	"time"

	"github.com/tOgg1/chatsync/internal/models"
)

// Bucket classifies an instant relative to now by calendar day.
type Bucket int

const (
	BucketInvalid Bucket = iota
	BucketToday
	BucketYesterday
	BucketThisWeek
	BucketOlder
)

const (
	LabelToday     = "Today"
	LabelYesterday = "Yesterday"

	dateLayout = "02/01/2006"
	timeLayout = "15:04"
	dayLayout  = "2006-01-02"
)

// Classify buckets t by the number of calendar days before now in loc.
// Future days fall into BucketOlder and render as absolute dates.
func Classify(t, now time.Time, loc *time.Location) Bucket {
	if t.IsZero() {
		return BucketInvalid
	}
	days := calendarDays(t, now, loc)
	switch {
	case days == 0:
		return BucketToday
	case days == 1:
		return BucketYesterday
	case days >= 2 && days <= 7:
		return BucketThisWeek
	default:
		return BucketOlder
	}
}

// SeparatorLabel renders the date separator text for t.
func SeparatorLabel(t, now time.Time, loc *time.Location) string {
	switch Classify(t, now, loc) {
	case BucketToday:
		return LabelToday
	case BucketYesterday:
		return LabelYesterday
	case BucketThisWeek:
		return t.In(location(loc)).Weekday().String()
	case BucketOlder:
		return t.In(location(loc)).Format(dateLayout)
	default:
		return ""
	}
}

// TimeLabel renders the in-message label: time of day for today, the
// separator wording otherwise, and empty for invalid instants.
func TimeLabel(t, now time.Time, loc *time.Location) string {
	if Classify(t, now, loc) == BucketToday {
		return t.In(location(loc)).Format(timeLayout)
	}
	return SeparatorLabel(t, now, loc)
}

// DayKey identifies the local calendar day of t.
func DayKey(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(location(loc)).Format(dayLayout)
}

// EntryKind tags timeline rows.
type EntryKind int

const (
	EntryMessage EntryKind = iota
	EntrySeparator
)

// Entry is one row of a rendered timeline.
type Entry struct {
	Kind  EntryKind
	Label string

	// Day is the local calendar day a separator introduces.
	Day string

	Message     models.Message
	Highlighted bool
}

// MessageEntries wraps messages as unlabelled timeline rows.
func MessageEntries(msgs []models.Message) []Entry {
	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Entry{Kind: EntryMessage, Message: m})
	}
	return out
}

// InsertSeparators strips existing separators and inserts one before the
// first message and wherever the local calendar day changes between dated
// messages. An undated first message gets an unlabelled separator, and the
// first dated message after it still opens its day. Undated messages never
// start a new day. Message rows get their time labels recomputed.
func InsertSeparators(items []Entry, now time.Time, loc *time.Location) []Entry {
	out := make([]Entry, 0, len(items)+4)
	prevDay := ""
	for _, item := range items {
		if item.Kind == EntrySeparator {
			continue
		}
		at := item.Message.At()
		item.Label = TimeLabel(at, now, loc)
		day := DayKey(at, loc)
		switch {
		case day != "" && day != prevDay:
			out = append(out, Entry{
				Kind:  EntrySeparator,
				Label: SeparatorLabel(at, now, loc),
				Day:   day,
			})
			prevDay = day
		case len(out) == 0:
			out = append(out, Entry{Kind: EntrySeparator})
		}
		out = append(out, item)
	}
	return out
}

func calendarDays(t, now time.Time, loc *time.Location) int {
	loc = location(loc)
	ty, tm, td := t.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	a := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	b := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
