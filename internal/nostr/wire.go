// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

package nostr

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Filter is a Nostr subscription filter (NIP-01). Zero-valued fields
// are omitted from the wire form.
type Filter struct {
	Kinds []int64 `json:"kinds,omitempty"`
	Since int64   `json:"since,omitempty"`
	Until int64   `json:"until,omitempty"`
	Limit int     `json:"limit,omitempty"`
}

// Frame is one decoded relay-to-client websocket message.
type Frame struct {
	// Type is "EVENT", "EOSE" or "NOTICE". Other message types decode
	// with their type preserved and all other fields empty.
	Type string

	// SubID is set for EVENT and EOSE frames.
	SubID string

	// Event is set for EVENT frames.
	Event *Event

	// Notice is the human-readable message of a NOTICE frame.
	Notice string
}

// EncodeReq builds a ["REQ", subID, filter] client message.
func EncodeReq(subID string, filter Filter) ([]byte, error) {
	return json.Marshal([]interface{}{"REQ", subID, filter})
}

// EncodeClose builds a ["CLOSE", subID] client message.
func EncodeClose(subID string) ([]byte, error) {
	return json.Marshal([]interface{}{"CLOSE", subID})
}

// DecodeFrame parses a relay-to-client message. Relay messages are JSON
// arrays whose first element names the message type.
func DecodeFrame(data []byte) (*Frame, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("relay message is not a JSON array: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("relay message is an empty array")
	}

	var msgType string
	if err := json.Unmarshal(parts[0], &msgType); err != nil {
		return nil, fmt.Errorf("relay message type is not a string: %w", err)
	}

	frame := &Frame{Type: msgType}
	switch msgType {
	case "EVENT":
		if len(parts) < 3 {
			return nil, fmt.Errorf("EVENT frame has %d elements, want 3", len(parts))
		}
		if err := json.Unmarshal(parts[1], &frame.SubID); err != nil {
			return nil, fmt.Errorf("EVENT subscription id: %w", err)
		}
		frame.Event = &Event{}
		if err := json.Unmarshal(parts[2], frame.Event); err != nil {
			return nil, fmt.Errorf("EVENT payload: %w", err)
		}
	case "EOSE":
		if len(parts) < 2 {
			return nil, fmt.Errorf("EOSE frame has %d elements, want 2", len(parts))
		}
		if err := json.Unmarshal(parts[1], &frame.SubID); err != nil {
			return nil, fmt.Errorf("EOSE subscription id: %w", err)
		}
	case "NOTICE":
		if len(parts) >= 2 {
			if err := json.Unmarshal(parts[1], &frame.Notice); err != nil {
				return nil, fmt.Errorf("NOTICE payload: %w", err)
			}
		}
	}
	return frame, nil
}
