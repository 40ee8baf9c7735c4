package sismos

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ParseDateTime combines a DD-MM-YYYY date and an HH:MM time.
//
// Anything that does not fit that shape, or names an impossible instant,
// yields the zero time. Malformed events therefore sort as the oldest rather
// than being dropped from listings.
func ParseDateTime(date, clockTime string) time.Time {
	d := strings.Split(date, "-")
	t := strings.Split(clockTime, ":")
	if len(d) != 3 || len(t) != 2 {
		return time.Time{}
	}

	var n [5]int
	for i, s := range []string{d[0], d[1], d[2], t[0], t[1]} {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return time.Time{}
		}
		n[i] = v
	}
	day, month, year, hour, minute := n[0], n[1], n[2], n[3], n[4]

	if year < 1 || month < 1 || month > 12 || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}
	}
	ts := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	// time.Date normalizes overflow (31-02 becomes 03-03); reject it.
	if ts.Day() != day || int(ts.Month()) != month {
		return time.Time{}
	}
	return ts
}

// parseFloat accepts surrounding whitespace and rejects NaN and infinities.
func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ComputeStats derives totals and magnitude aggregates for c.
//
// Min, max, and average consider only parseable magnitudes; when none parse
// they are computed over {0}. Latest is the event with the greatest
// date-time, the first one winning ties.
func ComputeStats(c *Collection) Stats {
	stats := Stats{GeneratedAt: clock.Now()}
	if c == nil || len(c.Features) == 0 {
		return stats
	}

	var (
		sum    float64
		count  int
		lo, hi = math.Inf(1), math.Inf(-1)
	)
	for _, e := range c.Features {
		mag, ok := e.Magnitude()
		if !ok {
			continue
		}
		sum += mag
		count++
		lo = math.Min(lo, mag)
		hi = math.Max(hi, mag)
	}

	stats.Total = len(c.Features)
	if count > 0 {
		stats.MinMagnitude = lo
		stats.MaxMagnitude = hi
		stats.AvgMagnitude = sum / float64(count)
	}
	stats.Latest = latest(c.Features)
	return stats
}

func latest(events []Event) *Event {
	if len(events) == 0 {
		return nil
	}
	best := 0
	bestAt := events[0].OccurredAt()
	for i := 1; i < len(events); i++ {
		if at := events[i].OccurredAt(); at.After(bestAt) {
			best, bestAt = i, at
		}
	}
	e := events[best]
	return &e
}

// FilterByMagnitude returns events whose magnitude parses and is at least
// minMagnitude, in collection order.
func FilterByMagnitude(c *Collection, minMagnitude float64) []Event {
	filtered := make([]Event, 0)
	if c == nil {
		return filtered
	}
	for _, e := range c.Features {
		if mag, ok := e.Magnitude(); ok && mag >= minMagnitude {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// Recent returns up to limit events, newest first. Events with equal
// date-times keep their collection order.
func Recent(c *Collection, limit int) []Event {
	if c == nil || limit <= 0 {
		return []Event{}
	}

	type keyed struct {
		at    time.Time
		event Event
	}
	sorted := make([]keyed, len(c.Features))
	for i, e := range c.Features {
		sorted[i] = keyed{at: e.OccurredAt(), event: e}
	}
	slices.SortStableFunc(sorted, func(a, b keyed) int {
		return b.at.Compare(a.at)
	})

	if limit > len(sorted) {
		limit = len(sorted)
	}
	out := make([]Event, limit)
	for i := range out {
		out[i] = sorted[i].event
	}
	return out
}

// Coordinates projects events for map rendering, skipping any whose
// latitude, longitude, or magnitude does not parse.
func Coordinates(c *Collection) []Coordinate {
	coords := make([]Coordinate, 0)
	if c == nil {
		return coords
	}
	for _, e := range c.Features {
		lat, ok := parseFloat(e.Properties.Lat)
		if !ok {
			continue
		}
		lng, ok := parseFloat(e.Properties.Long)
		if !ok {
			continue
		}
		mag, ok := e.Magnitude()
		if !ok {
			continue
		}
		coords = append(coords, Coordinate{
			Lat:       lat,
			Lng:       lng,
			Magnitude: mag,
			Location:  e.Properties.AddressFormatted,
			Date:      e.Properties.Date,
			Time:      e.Properties.Time,
			Depth:     e.Properties.Depth,
		})
	}
	return coords
}
