// Package expiry generates Deribit-style expiration calendars.
//
// The exchange lists dailies for the next few days, weeklies on Fridays,
// monthlies on the last Friday of the month and quarterlies on the last
// Friday of March/June/September/December. All contracts settle at
// 08:00 UTC. Generation is pure: the same reference date always yields
// the same calendar, which keeps historical replays reproducible.
package expiry

import (
	"math"
	"sort"
	"time"

	"github.com/contactkeval/strike-engine/internal/config"
)

// Kind labels the cadence that produced an expiration date.
// When several cadences coincide on one date the longest horizon wins
// for display purposes, so the ordering of these constants matters.
type Kind int

const (
	Daily Kind = iota
	Weekly
	Monthly
	Quarterly
)

func (k Kind) String() string {
	switch k {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	case Quarterly:
		return "quarterly"
	}
	return "unknown"
}

// Entry is one valid expiration visible from the reference date.
type Entry struct {
	Date time.Time `json:"date"`
	Kind Kind      `json:"-"`
	// Coincidence counts how many cadences list this date
	// (e.g. a quarterly that is also a weekly Friday and a daily).
	Coincidence int `json:"coincidence"`
}

// settlementHour is the Deribit settlement time in UTC.
const settlementHour = 8

// atSettlement normalizes a date to the 08:00 UTC settlement instant.
func atSettlement(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), settlementHour, 0, 0, 0, time.UTC)
}

// LastFriday returns the last Friday of the given month at settlement time.
func LastFriday(year int, month time.Month) time.Time {
	// Day 0 of the next month is the last day of this month.
	last := time.Date(year, month+1, 0, settlementHour, 0, 0, 0, time.UTC)
	offset := (int(last.Weekday()) - int(time.Friday) + 7) % 7
	return last.AddDate(0, 0, -offset)
}

// Generate returns the ordered set of valid expirations visible from ref,
// deduplicated across cadences. Dates strictly before ref are never
// returned; the calendar is capped at cfg.CalendarMaxExpirations entries.
func Generate(cfg config.Config, ref time.Time) []Entry {
	curr := atSettlement(ref)
	kinds := make(map[time.Time]map[Kind]bool)
	mark := func(d time.Time, k Kind) {
		if kinds[d] == nil {
			kinds[d] = make(map[Kind]bool)
		}
		kinds[d][k] = true
	}

	// Dailies: today plus the next few days.
	for i := 0; i < cfg.CalendarDailyCount; i++ {
		mark(curr.AddDate(0, 0, i), Daily)
	}

	// Weeklies: the next few Fridays. If ref is already a Friday past
	// settlement, this week's expiry has settled and the next one counts.
	daysToFri := (int(time.Friday) - int(ref.UTC().Weekday()) + 7) % 7
	if daysToFri == 0 && ref.UTC().Hour() >= settlementHour {
		daysToFri = 7
	}
	firstFriday := curr.AddDate(0, 0, daysToFri)
	for i := 0; i < cfg.CalendarWeeklyCount; i++ {
		mark(firstFriday.AddDate(0, 0, 7*i), Weekly)
	}

	// Monthlies: last Fridays of the nearest months.
	for i := 0; i < cfg.CalendarMonthlyCount; i++ {
		d := LastFriday(curr.Year(), curr.Month()+time.Month(i))
		if !d.Before(curr) {
			mark(d, Monthly)
		}
	}

	// Quarterlies: last Fridays of Mar/Jun/Sep/Dec within the horizon.
	horizon := curr.AddDate(0, 0, cfg.CalendarQuarterlyHorizon)
	for i := 0; i < 24; i++ {
		m := curr.Month() + time.Month(i)
		d := LastFriday(curr.Year(), m)
		switch d.Month() {
		case time.March, time.June, time.September, time.December:
			if !d.Before(curr) && !d.After(horizon) {
				mark(d, Quarterly)
			}
		}
	}

	dates := make([]time.Time, 0, len(kinds))
	for d := range kinds {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	if len(dates) > cfg.CalendarMaxExpirations {
		dates = dates[:cfg.CalendarMaxExpirations]
	}

	out := make([]Entry, 0, len(dates))
	for _, d := range dates {
		ks := kinds[d]
		best := Daily
		for k := range ks {
			if k > best {
				best = k
			}
		}
		out = append(out, Entry{Date: d, Kind: best, Coincidence: len(ks)})
	}
	return out
}

// BirthInfo returns the theoretical listing date of a contract and its
// lead time in days. Lead time depends on the cadence of the expiry:
// dailies list 3 days out, weeklies 4 weeks, monthlies 3 months and
// quarterlies a full year.
func BirthInfo(expDate time.Time) (birth time.Time, leadDays int) {
	expDate = atSettlement(expDate)
	if expDate.Weekday() != time.Friday {
		leadDays = 3
	} else if !expDate.Equal(LastFriday(expDate.Year(), expDate.Month())) {
		leadDays = 28
	} else {
		switch expDate.Month() {
		case time.March, time.June, time.September, time.December:
			leadDays = 365
		default:
			leadDays = 90
		}
	}
	return expDate.AddDate(0, 0, -leadDays), leadDays
}

// DaysToExpiry returns whole days between now and the expiration,
// negative once the expiry has passed.
func DaysToExpiry(exp, now time.Time) int {
	return int(math.Floor(atSettlement(exp).Sub(now.UTC()).Hours() / 24))
}

// NiceTick rounds a value to the exchange "nice number" ladder
// (1, 2, 2.5, 5, 10 times the decade magnitude). Deribit uses these
// levels for display ticks in option chains.
func NiceTick(value float64) float64 {
	if value <= 1e-9 {
		return 0
	}
	magnitude := math.Pow(10, math.Floor(math.Log10(value)))
	normalized := value / magnitude

	var nice float64
	switch {
	case normalized < 1.485:
		nice = 1.0
	case normalized < 2.2275:
		nice = 2.0
	case normalized < 3.7125:
		nice = 2.5
	case normalized < 7.425:
		nice = 5.0
	default:
		nice = 10.0
	}

	result := nice * magnitude
	if result >= 1 {
		return math.Round(result)
	}
	// Sub-unit ticks keep two significant digits.
	digits := -int(math.Floor(math.Log10(result))) + 2
	scale := math.Pow(10, float64(digits))
	return math.Round(result*scale) / scale
}
