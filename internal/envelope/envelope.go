// Package envelope parses Sentry's newline-framed multipart envelope format
// (spec.md §4.2).
package envelope

import (
	"bytes"
	"encoding/json"
)

// Header is the first line of an envelope: metadata about the whole batch.
type Header struct {
	EventID string          `json:"event_id,omitempty"`
	DSN     string          `json:"dsn,omitempty"`
	SentAt  string          `json:"sent_at,omitempty"`
	Extra   json.RawMessage `json:"-"`
}

// ItemHeader precedes each item payload.
type ItemHeader struct {
	Type        string `json:"type"`
	Length      *int   `json:"length,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Item is one (header, payload) pair inside an envelope.
type Item struct {
	Header  ItemHeader
	Payload []byte
}

// Envelope is a parsed envelope: one header plus zero or more items.
type Envelope struct {
	Header Header
	Items  []Item
}

// Parse splits a newline-framed envelope body into a structured Envelope.
// It returns (nil, false) on any malformed input rather than an error, per
// spec.md §4.2 ("Parser returns absent on malformed input rather than failing").
func Parse(data []byte) (*Envelope, bool) {
	lines := bytes.Split(data, []byte{'\n'})
	if len(lines) == 0 {
		return nil, false
	}

	var header Header
	if err := json.Unmarshal(lines[0], &header); err != nil {
		return nil, false
	}
	header.Extra = json.RawMessage(lines[0])

	env := &Envelope{Header: header}
	idx := 1

	for idx < len(lines) {
		headerLine := lines[idx]
		idx++
		if len(bytes.TrimSpace(headerLine)) == 0 {
			continue
		}

		var itemHeader ItemHeader
		if err := json.Unmarshal(headerLine, &itemHeader); err != nil {
			return nil, false
		}

		var payload []byte
		if itemHeader.Length != nil {
			length := *itemHeader.Length
			remaining := joinWithNewlines(lines[idx:])
			if length > len(remaining) {
				return nil, false
			}
			payload = remaining[:length]

			consumed := 0
			for idx < len(lines) && consumed < length {
				consumed += len(lines[idx]) + 1
				idx++
			}
		} else {
			if idx < len(lines) {
				payload = lines[idx]
				idx++
			} else {
				payload = []byte{}
			}
		}

		env.Items = append(env.Items, Item{Header: itemHeader, Payload: payload})
	}

	return env, true
}

func joinWithNewlines(lines [][]byte) []byte {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.Write(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// FindEventPayload returns the payload of the first "event" item, if any.
func (e *Envelope) FindEventPayload() ([]byte, bool) {
	for _, item := range e.Items {
		if item.Header.Type == "event" {
			return item.Payload, true
		}
	}
	return nil, false
}

// FindSessionPayloads returns the payloads of every "session" item, in order.
func (e *Envelope) FindSessionPayloads() [][]byte {
	var out [][]byte
	for _, item := range e.Items {
		if item.Header.Type == "session" {
			out = append(out, item.Payload)
		}
	}
	return out
}
