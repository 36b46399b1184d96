package sk

import "time"

// DefaultMinSnapshots is the floor used when neither the config nor the target
// sets one.
const DefaultMinSnapshots = 2

// Decision partitions a snapshot list into the snapshots that survive
// expiration and the ones that do not. Both halves keep ascending order.
type Decision struct {
	Retain []Snapshot
	Expire []Snapshot
}

// bucketUnit describes one generational category: how "now" is aligned to the
// start of its calendar unit and how to step one unit back.
type bucketUnit struct {
	category string
	truncate func(time.Time) time.Time
	step     func(time.Time) time.Time
}

var bucketUnits = []bucketUnit{
	{CategoryDaily, startOfDay, func(t time.Time) time.Time { return t.AddDate(0, 0, -1) }},
	{CategoryWeekly, startOfWeek, func(t time.Time) time.Time { return t.AddDate(0, 0, -7) }},
	{CategoryMonthly, startOfMonth, func(t time.Time) time.Time { return t.AddDate(0, -1, 0) }},
}

// Decide computes which snapshots to keep. snaps must be sorted ascending by
// timestamp. A snapshot is retained when any of these selects it:
//
//   - the floor rule: the minSnapshots most recent snapshots
//   - "all": every snapshot newer than now minus the category's age
//   - "daily", "weekly", "monthly": the latest snapshot inside each calendar
//     bucket between the aligned now and the category's age (or the earliest
//     snapshot when the category is kept forever)
//
// "all" set to forever selects nothing beyond the other rules.
func Decide(snaps []Snapshot, policy Policy, minSnapshots int, now time.Time) Decision {
	if minSnapshots < 0 {
		minSnapshots = 0
	}
	if len(snaps) <= minSnapshots {
		return Decision{Retain: append([]Snapshot(nil), snaps...)}
	}

	keep := make([]bool, len(snaps))
	for i := len(snaps) - minSnapshots; i < len(snaps); i++ {
		keep[i] = true
	}

	if k, ok := policy[CategoryAll]; ok && !k.Forever() {
		cutoff := k.Age().Before(now)
		for i, s := range snaps {
			if s.Timestamp.After(cutoff) {
				keep[i] = true
			}
		}
	}

	for _, unit := range bucketUnits {
		k, ok := policy[unit.category]
		if !ok {
			continue
		}
		markBuckets(snaps, keep, unit, k, now)
	}

	var d Decision
	for i, s := range snaps {
		if keep[i] {
			d.Retain = append(d.Retain, s)
		} else {
			d.Expire = append(d.Expire, s)
		}
	}
	return d
}

// markBuckets walks back one unit at a time from the aligned now and marks the
// latest snapshot in each (from, to] window.
func markBuckets(snaps []Snapshot, keep []bool, unit bucketUnit, k Keep, now time.Time) {
	toDate := unit.truncate(now)

	var endDate time.Time
	if k.Forever() {
		endDate = snaps[0].Timestamp
	} else {
		endDate = k.Age().Before(toDate)
	}

	for !endDate.After(toDate) {
		fromDate := unit.step(toDate)
		latest := -1
		for i, s := range snaps {
			if s.Timestamp.After(toDate) {
				break
			}
			if s.Timestamp.After(fromDate) {
				latest = i
			}
		}
		if latest >= 0 {
			keep[latest] = true
		}
		toDate = fromDate
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// startOfWeek aligns to Monday 00:00.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}
