package session

import (
	"math"
	"time"
	"unicode/utf8"

	"github.com/aretw0/notecap/pkg/core"
)

// streakLookback bounds how many days Stats walks back.
const streakLookback = 30

// Stats summarizes a set of notes the way the main window header does.
type Stats struct {
	Total     int `json:"total" yaml:"total"`
	Today     int `json:"today" yaml:"today"`
	Favorites int `json:"favorites" yaml:"favorites"`
	Pinned    int `json:"pinned" yaml:"pinned"`
	Week      int `json:"week" yaml:"week"`
	AvgLength int `json:"avg_length" yaml:"avg_length"`
	Streak    int `json:"streak" yaml:"streak"`
}

// ComputeStats derives Stats from notes as of now. Days are calendar days
// in now's location; Streak counts consecutive days with at least one
// created note, starting at the most recent such day within the lookback.
func ComputeStats(notes []core.Note, now time.Time) Stats {
	var s Stats
	s.Total = len(notes)
	if s.Total == 0 {
		return s
	}

	loc := now.Location()
	today := dayOf(now, loc)
	weekAgo := now.Add(-7 * 24 * time.Hour)
	days := make(map[time.Time]bool)
	chars := 0

	for _, n := range notes {
		created := dayOf(n.CreatedAt, loc)
		days[created] = true
		if created.Equal(today) {
			s.Today++
		}
		if !n.CreatedAt.Before(weekAgo) {
			s.Week++
		}
		if n.Favorite {
			s.Favorites++
		}
		if n.Pinned {
			s.Pinned++
		}
		chars += utf8.RuneCountInString(n.Content)
	}
	s.AvgLength = int(math.Round(float64(chars) / float64(s.Total)))

	day := today
	for i := 0; i < streakLookback; i++ {
		if days[day] {
			s.Streak++
		} else if s.Streak > 0 {
			break
		}
		day = day.AddDate(0, 0, -1)
	}
	return s
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
