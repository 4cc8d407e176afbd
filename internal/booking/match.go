package booking

import "slices"

// Match reports whether the course satisfies the request: its weekday
// is one of the request's days and its start timestamp falls inside
// the request's time range, both evaluated on the course's own date.
// The range is inclusive on both ends.
func Match(c Course, r BookRequest) bool {
	start, err := c.StartsAt()
	if err != nil {
		return false
	}
	if !slices.Contains(r.Days, ISOWeekday(start.Weekday())) {
		return false
	}
	from := r.TimeRange[0].On(start)
	to := r.TimeRange[1].On(start)
	return !start.Before(from) && !start.After(to)
}
