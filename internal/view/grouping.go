package view

import (
	"sort"

	"call-inbox/internal/calls"
)

// Index maps a day key (YYYY-MM-DD, UTC) to the calls created that day,
// in the order they appear in the source sequence.
type Index map[string][]calls.Call

// GroupByDay partitions records by calls.DayKey. Every record lands in
// exactly one bucket and relative order within a bucket is preserved.
func GroupByDay(records []calls.Call) Index {
	idx := make(Index)
	for _, c := range records {
		day := c.Day()
		idx[day] = append(idx[day], c)
	}
	return idx
}

// Days returns the bucket keys in ascending order.
func (idx Index) Days() []string {
	out := make([]string, 0, len(idx))
	for d := range idx {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// DayCount is a day key with the number of calls in its bucket.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

func (idx Index) Counts() []DayCount {
	days := idx.Days()
	out := make([]DayCount, 0, len(days))
	for _, d := range days {
		out = append(out, DayCount{Day: d, Count: len(idx[d])})
	}
	return out
}

// Clone deep copies every bucket.
func (idx Index) Clone() Index {
	if idx == nil {
		return nil
	}
	out := make(Index, len(idx))
	for d, bucket := range idx {
		out[d] = calls.CloneAll(bucket)
	}
	return out
}
