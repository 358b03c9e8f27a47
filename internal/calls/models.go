package calls

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformed is returned for records that cannot be indexed safely:
// a missing required field, an invalid enum, or an unparseable payload.
var ErrMalformed = errors.New("calls: malformed record")

// dayLayout is the grouping key format. Days are cut on UTC midnight.
const dayLayout = "2006-01-02"

// Note is an immutable annotation owned by exactly one Call.
type Note struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Call is one phone call as delivered by the upstream API.
//
// Identity invariant: ID is the sole merge key.
// CreatedAt never changes after creation; the day bucket is derived from it alone.
//
// Records are replaced whole; there is no partial field update.
type Call struct {
	ID        string    `json:"id"`
	CallType  CallType  `json:"call_type"`
	Direction Direction `json:"direction"`
	CreatedAt time.Time `json:"created_at"`

	// Duration is the call duration in seconds.
	Duration int `json:"duration"`

	From string `json:"from"`
	To   string `json:"to"`
	Via  string `json:"via,omitempty"`

	IsArchived bool   `json:"is_archived"`
	Notes      []Note `json:"notes"`
}

type CallType string

const (
	CallTypeAnswered  CallType = "answered"
	CallTypeMissed    CallType = "missed"
	CallTypeVoicemail CallType = "voicemail"
	CallTypeUnknown   CallType = "unknown"
)

// ParseCallType folds unrecognized values into CallTypeUnknown.
// The empty string stays empty so Validate can report it as missing.
func ParseCallType(v string) CallType {
	switch CallType(v) {
	case CallTypeAnswered, CallTypeMissed, CallTypeVoicemail, CallTypeUnknown:
		return CallType(v)
	case "":
		return ""
	default:
		return CallTypeUnknown
	}
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

func (d Direction) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// DayKey returns the YYYY-MM-DD bucket for t in UTC.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// ParseDay validates a YYYY-MM-DD key.
func ParseDay(v string) (time.Time, error) {
	t, err := time.Parse(dayLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("calls: invalid day %q", v)
	}
	return t, nil
}

// Day is the grouping key of the call.
func (c Call) Day() string { return DayKey(c.CreatedAt) }

// Validate reports the first missing or invalid field.
func (c Call) Validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("%w: id is required", ErrMalformed)
	case c.CallType == "":
		return fmt.Errorf("%w: call %s: call_type is required", ErrMalformed, c.ID)
	case !c.Direction.Valid():
		return fmt.Errorf("%w: call %s: direction must be inbound or outbound, got %q", ErrMalformed, c.ID, c.Direction)
	case c.CreatedAt.IsZero():
		return fmt.Errorf("%w: call %s: created_at is required", ErrMalformed, c.ID)
	case c.Duration < 0:
		return fmt.Errorf("%w: call %s: duration must be >= 0, got %d", ErrMalformed, c.ID, c.Duration)
	case c.From == "":
		return fmt.Errorf("%w: call %s: from is required", ErrMalformed, c.ID)
	case c.To == "":
		return fmt.Errorf("%w: call %s: to is required", ErrMalformed, c.ID)
	}
	for i, n := range c.Notes {
		if n.ID == "" {
			return fmt.Errorf("%w: call %s: note %d has no id", ErrMalformed, c.ID, i)
		}
	}
	return nil
}

// Normalize returns a detached copy with call_type folded into the known set.
func (c Call) Normalize() Call {
	out := c.Clone()
	out.CallType = ParseCallType(string(c.CallType))
	return out
}

// Clone copies the notes slice so the result shares no memory with c.
func (c Call) Clone() Call {
	out := c
	if c.Notes != nil {
		out.Notes = make([]Note, len(c.Notes))
		copy(out.Notes, c.Notes)
	}
	return out
}

// Counterparty is the number listed first for the call:
// the callee for outbound calls, the caller otherwise.
func (c Call) Counterparty() string {
	if c.Direction == DirectionOutbound {
		return c.To
	}
	return c.From
}

func (c Call) DurationString() string {
	return (time.Duration(c.Duration) * time.Second).String()
}

// Decode parses one JSON call. Any decode failure, including a bad
// created_at timestamp, is reported as ErrMalformed.
func Decode(raw []byte) (Call, error) {
	var c Call
	if err := json.Unmarshal(raw, &c); err != nil {
		return Call{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return c.Normalize(), nil
}

// DecodeList parses a JSON array of calls.
func DecodeList(raw []byte) ([]Call, error) {
	var list []Call
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i := range list {
		list[i] = list[i].Normalize()
	}
	return list, nil
}

// CloneAll deep copies a sequence.
func CloneAll(in []Call) []Call {
	if in == nil {
		return nil
	}
	out := make([]Call, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
