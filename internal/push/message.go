package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"call-inbox/internal/calls"
)

// TypeCallChanged is the only message type the engine consumes.
const TypeCallChanged = "call.changed"

var ErrUnknownType = errors.New("push: unknown message type")

// Message is the envelope delivered on the push channel.
type Message struct {
	Type string          `json:"type"`
	Call json.RawMessage `json:"call"`
}

// Sink receives decoded records. The inbox service implements it.
type Sink interface {
	Push(ctx context.Context, c calls.Call) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, c calls.Call) error

func (f SinkFunc) Push(ctx context.Context, c calls.Call) error { return f(ctx, c) }

// Decode parses an envelope and its call payload.
func Decode(raw []byte) (calls.Call, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return calls.Call{}, fmt.Errorf("%w: envelope: %v", calls.ErrMalformed, err)
	}
	if m.Type != TypeCallChanged {
		return calls.Call{}, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	if len(m.Call) == 0 {
		return calls.Call{}, fmt.Errorf("%w: message has no call", calls.ErrMalformed)
	}
	c, err := calls.Decode(m.Call)
	if err != nil {
		return calls.Call{}, err
	}
	if err := c.Validate(); err != nil {
		return calls.Call{}, err
	}
	return c, nil
}

// Encode wraps a call in a call.changed envelope.
func Encode(c calls.Call) ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: TypeCallChanged, Call: body})
}
