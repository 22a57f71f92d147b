package tasks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPayload is returned by DecodePayload for bodies that are not a
// queued payload.
var ErrInvalidPayload = errors.New("tasks: invalid queued payload")

// MaxPayloadSize is the largest serialized payload the durable queue accepts.
// The worker ingress reads at least this much.
const MaxPayloadSize = 1 << 20

// Payload is the wire form of a deferred invocation.
//
//	{"action":"user_update","args":[42],"kwargs":{}}
type Payload struct {
	Action string                     `json:"action"`
	Args   []json.RawMessage          `json:"args"`
	Kwargs map[string]json.RawMessage `json:"kwargs"`
}

// NewPayload builds the payload for action from already encoded arguments.
func NewPayload(action string, args Args) *Payload {
	p := &Payload{
		Action: action,
		Args:   args.Positional,
		Kwargs: args.Named,
	}
	p.normalize()
	return p
}

// Arguments returns the payload arguments in the form Task.Run expects.
func (p *Payload) Arguments() Args {
	return Args{Positional: p.Args, Named: p.Kwargs}
}

// Marshal renders the compact JSON form. Empty arguments are encoded as
// [] and {} rather than null.
func (p *Payload) Marshal() ([]byte, error) {
	p.normalize()
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("tasks: marshal payload for %q: %w", p.Action, err)
	}
	return body, nil
}

func (p *Payload) normalize() {
	if p.Args == nil {
		p.Args = []json.RawMessage{}
	}
	if p.Kwargs == nil {
		p.Kwargs = map[string]json.RawMessage{}
	}
}

// pushEnvelope is the body a Pub/Sub push subscription POSTs.
type pushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// DecodePayload parses a request or message body into a Payload. A body
// wrapped in a Pub/Sub push envelope is unwrapped first.
func DecodePayload(body []byte) (*Payload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if p.Action == "" {
		var env pushEnvelope
		if err := json.Unmarshal(body, &env); err == nil && len(env.Message.Data) > 0 {
			return DecodePayload(env.Message.Data)
		}
		return nil, fmt.Errorf("%w: missing action", ErrInvalidPayload)
	}

	p.normalize()
	return &p, nil
}
