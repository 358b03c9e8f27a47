package view

import "call-inbox/internal/calls"

// Mode selects whether a day selection narrows the candidate set.
type Mode string

const (
	ModeUngrouped    Mode = "ungrouped"
	ModeGroupedByDay Mode = "grouped"
)

// Filters are independent, conjunctive predicates. A zero field is inactive.
type Filters struct {
	CallType  calls.CallType  `json:"call_type,omitempty"`
	Direction calls.Direction `json:"direction,omitempty"`
}

func (f Filters) Active() bool {
	return f.CallType != "" || f.Direction != ""
}

func (f Filters) Match(c calls.Call) bool {
	if f.CallType != "" && c.CallType != f.CallType {
		return false
	}
	if f.Direction != "" && c.Direction != f.Direction {
		return false
	}
	return true
}

// Project returns the calls to display, in candidate order.
//
// When grouped by day with a selected day, candidates are that day's bucket
// (empty if the day has no calls); otherwise all records are candidates.
// Inputs are read only.
func Project(records []calls.Call, idx Index, mode Mode, selectedDay string, f Filters) []calls.Call {
	candidates := records
	if mode == ModeGroupedByDay && selectedDay != "" {
		candidates = idx[selectedDay]
	}

	out := make([]calls.Call, 0, len(candidates))
	for _, c := range candidates {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

// ToggleDay applies a day pick to the current selection. Picking the
// selected day again clears the selection.
func ToggleDay(selected, picked string) string {
	if picked == selected {
		return ""
	}
	return picked
}
