// Package session resolves academic-session labels such as "2025-26" into
// date ranges.
//
// A session runs from April 1 of its start year to March 31 of the
// following year. The same April rollover decides which session is current.
package session

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/swagatgroup/swagatodisha-sub003/app/apperr"
)

const (
	MinStartYear = 2000
	MaxStartYear = 2100

	DefaultYearsBack    = 5
	DefaultYearsForward = 2
)

var labelPattern = regexp.MustCompile(`^\d{2,4}-\d{2,4}$`)

type Session struct {
	Label     string    `json:"session"`
	StartYear int       `json:"startYear"`
	StartDate time.Time `json:"sessionStartDate"`
	EndDate   time.Time `json:"sessionEndDate"`
}

// Contains reports whether t falls inside the session, both ends inclusive.
func (s Session) Contains(t time.Time) bool {
	return !t.Before(s.StartDate) && !t.After(s.EndDate)
}

// Label formats the canonical "YYYY-YY" label of the session starting in startYear.
func Label(startYear int) string {
	return fmt.Sprintf("%d-%02d", startYear, (startYear+1)%100)
}

type Resolver struct {
	loc *time.Location
	now func() time.Time
}

// NewResolver builds a resolver whose ranges are expressed in loc. A nil loc means UTC.
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc, now: time.Now}
}

// WithClock returns a copy of the resolver reading the wall clock from now.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	cp := *r
	cp.now = now
	return &cp
}

var defaultResolver = NewResolver(time.UTC)

// Resolve resolves label with the UTC resolver.
func Resolve(label string) (Session, error) {
	return defaultResolver.Resolve(label)
}

// Resolve converts label into a session. An empty label resolves to the
// current session.
func (r *Resolver) Resolve(label string) (Session, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return r.Current(), nil
	}
	start, err := ParseStartYear(label)
	if err != nil {
		return Session{}, err
	}
	return r.forYear(start), nil
}

// ParseStartYear validates label and returns the year its session starts in.
func ParseStartYear(label string) (int, error) {
	if !labelPattern.MatchString(label) {
		return 0, apperr.InvalidSessionFormat(label, "label must be two numeric parts separated by '-'")
	}
	parts := strings.Split(label, "-")
	startTok, endTok := parts[0], parts[1]
	if len(startTok) == 3 || len(endTok) == 3 {
		return 0, apperr.InvalidSessionFormat(label, "year parts must have 2 or 4 digits")
	}

	start, err := strconv.Atoi(startTok)
	if err != nil {
		return 0, apperr.InvalidSessionFormat(label, "start year is not numeric")
	}
	if len(startTok) == 2 {
		start += 2000
	}
	if start < MinStartYear || start > MaxStartYear {
		return 0, apperr.InvalidSessionFormat(label, fmt.Sprintf("start year must be between %d and %d", MinStartYear, MaxStartYear))
	}

	end, err := strconv.Atoi(endTok)
	if err != nil {
		return 0, apperr.InvalidSessionFormat(label, "end year is not numeric")
	}
	if len(endTok) == 2 {
		if end != (start+1)%100 {
			return 0, apperr.InvalidSessionFormat(label, "end year must follow the start year")
		}
	} else if end != start+1 {
		return 0, apperr.InvalidSessionFormat(label, "end year must follow the start year")
	}
	return start, nil
}

// Current returns the session containing the resolver's wall-clock date.
func (r *Resolver) Current() Session {
	return r.forYear(r.CurrentStartYear())
}

func (r *Resolver) CurrentStartYear() int {
	now := r.now().In(r.loc)
	if now.Month() < time.April {
		return now.Year() - 1
	}
	return now.Year()
}

// Available lists session labels from yearsForward sessions ahead of the
// current one down to yearsBack-1 sessions behind it.
func (r *Resolver) Available(yearsBack, yearsForward int) []string {
	if yearsBack < 0 {
		yearsBack = 0
	}
	if yearsForward < 0 {
		yearsForward = 0
	}
	current := r.CurrentStartYear()
	labels := make([]string, 0, yearsBack+yearsForward)
	for y := current + yearsForward; y > current-yearsBack; y-- {
		labels = append(labels, Label(y))
	}
	return labels
}

func (r *Resolver) forYear(start int) Session {
	startDate := time.Date(start, time.April, 1, 0, 0, 0, 0, r.loc)
	return Session{
		Label:     Label(start),
		StartYear: start,
		StartDate: startDate,
		EndDate:   startDate.AddDate(1, 0, 0).Add(-time.Millisecond),
	}
}
