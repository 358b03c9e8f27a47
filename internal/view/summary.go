package view

import "call-inbox/internal/calls"

// Summary aggregates a call sequence for the inbox header.
type Summary struct {
	TotalCalls     int `json:"total_calls"`
	AnsweredCalls  int `json:"answered_calls"`
	MissedCalls    int `json:"missed_calls"`
	VoicemailCalls int `json:"voicemail_calls"`
	UnknownCalls   int `json:"unknown_calls"`

	InboundCalls  int `json:"inbound_calls"`
	OutboundCalls int `json:"outbound_calls"`
	ArchivedCalls int `json:"archived_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}

func Summarize(records []calls.Call) Summary {
	var out Summary
	for _, c := range records {
		out.TotalCalls++
		out.TotalDurationSeconds += c.Duration
		if c.IsArchived {
			out.ArchivedCalls++
		}
		switch c.CallType {
		case calls.CallTypeAnswered:
			out.AnsweredCalls++
		case calls.CallTypeMissed:
			out.MissedCalls++
		case calls.CallTypeVoicemail:
			out.VoicemailCalls++
		default:
			out.UnknownCalls++
		}
		switch c.Direction {
		case calls.DirectionInbound:
			out.InboundCalls++
		case calls.DirectionOutbound:
			out.OutboundCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out
}
