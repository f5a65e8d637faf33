package calendar

import "time"

// Week is seven consecutive dates starting on a Sunday.
type Week [7]Date

// WeekOf returns the Sunday-start week containing d.
func WeekOf(d Date) Week {
	start := d.AddDays(-int(d.Weekday()))
	var w Week
	for i := range w {
		w[i] = start.AddDays(i)
	}
	return w
}

func (w Week) Start() Date { return w[0] }
func (w Week) End() Date   { return w[6] }

// Bounds returns the inclusive millisecond window from Sunday's midnight
// to the last millisecond of Saturday in loc.
func (w Week) Bounds(loc *time.Location) (startMs, endMs int64) {
	startMs, _ = w[0].Bounds(loc)
	_, endMs = w[6].Bounds(loc)
	return startMs, endMs
}

// Index returns d's position in w, or -1.
func (w Week) Index(d Date) int {
	for i, wd := range w {
		if wd == d {
			return i
		}
	}
	return -1
}
