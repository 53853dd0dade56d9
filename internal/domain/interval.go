package domain

import "sort"

// MinutesPerDay bounds every minute-of-day interval.
const MinutesPerDay = 24 * 60

// Interval is a half-open [Start, End) range of minutes from midnight.
// Adjacent intervals sharing an endpoint do not overlap.
type Interval struct {
	Start int
	End   int
}

func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return iv.Start <= other.Start && other.End <= iv.End
}

func (iv Interval) Empty() bool {
	return iv.End <= iv.Start
}

// MergeIntervals unions a set of intervals into sorted, disjoint form.
// Touching intervals are coalesced. Empty intervals are dropped.
func MergeIntervals(ivs []Interval) []Interval {
	in := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if !iv.Empty() {
			in = append(in, iv)
		}
	}
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool { return in[i].Start < in[j].Start })

	out := []Interval{in[0]}
	for _, iv := range in[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// SubtractIntervals removes every interval in subtrahends from each window,
// returning the remaining free sub-windows in start order. Windows are assumed
// sorted and disjoint; subtrahends may overlap each other.
func SubtractIntervals(windows, subtrahends []Interval) []Interval {
	cuts := MergeIntervals(subtrahends)

	var out []Interval
	for _, w := range windows {
		if w.Empty() {
			continue
		}
		cur := w
		for _, c := range cuts {
			if c.End <= cur.Start {
				continue
			}
			if c.Start >= cur.End {
				break
			}
			if c.Start > cur.Start {
				out = append(out, Interval{Start: cur.Start, End: c.Start})
			}
			if c.End >= cur.End {
				cur = Interval{}
				break
			}
			cur.Start = c.End
		}
		if !cur.Empty() {
			out = append(out, cur)
		}
	}
	return out
}

// DiscretizeIntervals cuts free windows into consecutive slots of exactly
// granularity minutes, on the absolute minute-of-day grid. A leading portion
// before the first grid boundary and a trailing remainder shorter than one
// slot are dropped, never rounded.
func DiscretizeIntervals(free []Interval, granularity int) []Interval {
	if granularity <= 0 {
		return nil
	}
	var out []Interval
	for _, w := range free {
		first := ((w.Start + granularity - 1) / granularity) * granularity
		for start := first; start+granularity <= w.End; start += granularity {
			out = append(out, Interval{Start: start, End: start + granularity})
		}
	}
	return out
}
