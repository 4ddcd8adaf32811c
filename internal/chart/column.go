package chart

import (
	"fmt"
	"time"
)

// Date is a calendar date without time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return DateOf(d.midnight().AddDate(0, 0, n), time.UTC)
}

// DaysSince returns the number of calendar days from o to d.
func (d Date) DaysSince(o Date) int {
	return int(d.midnight().Sub(o.midnight()).Hours() / 24)
}

func (d Date) Before(o Date) bool { return d.DaysSince(o) < 0 }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Half is the half of a day a column covers.
type Half int

const (
	AM Half = iota
	PM
)

func (h Half) String() string {
	if h == PM {
		return "PM"
	}
	return "AM"
}

// HalfOf returns AM for hours before noon in loc, PM otherwise.
func HalfOf(t time.Time, loc *time.Location) Half {
	if t.In(loc).Hour() < 12 {
		return AM
	}
	return PM
}

// ColumnKey identifies one half-day column.
type ColumnKey struct {
	Date Date
	Half Half
}

// KeyOf returns the column t falls in.
func KeyOf(t time.Time, loc *time.Location) ColumnKey {
	return ColumnKey{Date: DateOf(t, loc), Half: HalfOf(t, loc)}
}

// ID is a sortable text form such as "2026-10-16 PM".
func (k ColumnKey) ID() string {
	return k.Date.String() + " " + k.Half.String()
}

// Label names the column relative to today: "Today", "-2 Day PM", "+1 Day".
func (k ColumnKey) Label(today Date) string {
	offset := k.Date.DaysSince(today)
	label := "Today"
	if offset != 0 {
		label = fmt.Sprintf("%+d Day", offset)
	}
	if k.Half == PM {
		label += " PM"
	}
	return label
}

// Column is one entry of the grid's column axis.
type Column struct {
	Key    ColumnKey
	Label  string
	Offset int
}

func columnsBetween(first, last, today Date) []Column {
	var out []Column
	for d := first; !last.Before(d); d = d.AddDays(1) {
		for _, h := range []Half{AM, PM} {
			k := ColumnKey{Date: d, Half: h}
			out = append(out, Column{Key: k, Label: k.Label(today), Offset: d.DaysSince(today)})
		}
	}
	return out
}
