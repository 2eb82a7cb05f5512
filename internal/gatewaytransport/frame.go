// Package gatewaytransport implements the Gateway RPC Transport: a duplex,
// framed request/response-plus-events protocol carried over a WebSocket.
// Server side dispatches Request frames to registered handlers and pushes
// Event frames; client side is a reconnecting singleton that correlates
// Response frames to pending requests by id.
package gatewaytransport

import "encoding/json"

// FrameType distinguishes the three Gateway Frame shapes.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameEvent    FrameType = "event"
)

// Frame is the tagged union wire shape for every message exchanged over the
// Gateway transport. Only the fields relevant to Type are populated.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *FrameError     `json:"error,omitempty"`
	Name    string          `json:"name,omitempty"`
}

// FrameError is the error shape of a Response frame with ok=false.
type FrameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newRequestFrame(id, method string, params any) (Frame, error) {
	raw, err := marshalAny(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameRequest, ID: id, Method: method, Params: raw}, nil
}

func newResponseFrame(id string, payload any, ferr *FrameError) (Frame, error) {
	ok := ferr == nil
	f := Frame{Type: FrameResponse, ID: id, OK: &ok, Error: ferr}
	if ok {
		raw, err := marshalAny(payload)
		if err != nil {
			return Frame{}, err
		}
		f.Payload = raw
	}
	return f, nil
}

func newEventFrame(name string, payload any) (Frame, error) {
	raw, err := marshalAny(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameEvent, Name: name, Payload: raw}, nil
}

func marshalAny(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
