package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// Date is a calendar day. It marshals as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to midnight UTC of its calendar day.
func NewDate(t time.Time) Date {
	return Date{Time: Midnight(t)}
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, ErrInvalidInput)
	}
	return Date{Time: t}, nil
}

// Midnight returns 00:00 UTC of t's calendar day in t's own location.
func Midnight(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Dates converts a slice of times to wire dates
func Dates(ts []time.Time) []Date {
	out := make([]Date, 0, len(ts))
	for _, t := range ts {
		out = append(out, NewDate(t))
	}
	return out
}

// Times is the inverse of Dates
func Times(ds []Date) []time.Time {
	out := make([]time.Time, 0, len(ds))
	for _, d := range ds {
		out = append(out, Midnight(d.Time))
	}
	return out
}

func datePtr(t *time.Time) *Date {
	if t == nil || t.IsZero() {
		return nil
	}
	d := NewDate(*t)
	return &d
}

func timePtr(d *Date) *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := Midnight(d.Time)
	return &t
}
