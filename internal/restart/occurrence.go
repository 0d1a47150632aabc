package restart

import "time"

// usableSlack is the minimum headroom a candidate occurrence must have over
// now. Anything closer would elapse while the schedule is being armed, so
// such candidates are rolled forward to the next period.
const usableSlack = 10 * time.Second

// NextOccurrence computes the next restart time after now for the given
// recurrence rule, in now's location.
//
// weekdayMask is a bit set over weekdays (bit 0 = Sunday ... bit 6 =
// Saturday). A non-zero mask selects weekday mode; a zero mask selects
// interval mode with intervalDays as the period.
//
// Weekday mode scans day offsets 0..6 from today in order and returns the
// first candidate whose weekday bit is set and which lies more than
// usableSlack in the future. Offset 0 can have a set bit yet fail the slack
// check (today's slot already passed); a later offset with a set bit then
// wins, which is why the scan never stops at the first set bit. If the whole
// scan fails, the rule repeats next week: offset-0 candidate plus 7 days.
//
// Interval mode takes today's slot and advances it by intervalDays when the
// interval is longer than a day or the slot is already past/too imminent.
func NextOccurrence(now time.Time, weekdayMask uint8, intervalDays int, hour, minute, second int) time.Time {
	base := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, second, 0, now.Location())

	if weekdayMask != 0 {
		wd := int(now.Weekday())
		for off := 0; off < 7; off++ {
			if weekdayMask&(1<<((wd+off)%7)) == 0 {
				continue
			}
			// time.Date renormalizes month/year rollovers
			cand := base.AddDate(0, 0, off)
			if cand.Sub(now) > usableSlack {
				return cand
			}
		}
		return base.AddDate(0, 0, 7)
	}

	cand := base
	if intervalDays > 1 || cand.Sub(now) <= usableSlack {
		cand = cand.AddDate(0, 0, intervalDays)
	}
	return cand
}
