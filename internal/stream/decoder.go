// Package stream decodes OpenAI-compatible chat completion streams delivered
// as Server-Sent Events.
package stream

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DoneSentinel is the data payload that terminates a stream.
const DoneSentinel = "[DONE]"

// Result is what one call to Feed produced.
type Result struct {
	// Delta is the concatenated text content decoded from this fragment.
	Delta string
	// Done is set once the termination sentinel has been seen.
	Done bool
}

// chunk is the subset of a streamed completion we read.
type chunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Decoder turns raw byte fragments into text deltas.
//
// Fragments may end anywhere, including inside a line or a multi-byte rune,
// so the unterminated tail is carried over to the next Feed call. A complete
// data line whose payload is not valid JSON is kept as pending and retried
// once, joined with the next data payload, which covers a record split
// across SSE data lines. If the join fails too, the pending payload is
// dropped and the new payload is tried on its own. Decode failures never
// surface as errors.
type Decoder struct {
	partial []byte
	pending string
	done    bool
}

// NewDecoder creates a decoder ready for the first fragment.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes one fragment.
func (d *Decoder) Feed(fragment []byte) Result {
	if d.done {
		return Result{Done: true}
	}
	d.partial = append(d.partial, fragment...)

	var delta strings.Builder
	for !d.done {
		i := bytes.IndexByte(d.partial, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimSuffix(d.partial[:i], []byte{'\r'}))
		d.partial = d.partial[i+1:]
		d.line(line, &delta)
	}
	if len(d.partial) == 0 {
		d.partial = nil
	}
	return Result{Delta: delta.String(), Done: d.done}
}

// Flush ends the stream. An unterminated final line is processed as if it
// had a line ending; a still-pending payload is dropped.
func (d *Decoder) Flush() Result {
	if d.done {
		return Result{Done: true}
	}
	var delta strings.Builder
	if len(d.partial) > 0 {
		line := strings.TrimSuffix(string(d.partial), "\r")
		d.partial = nil
		d.line(line, &delta)
	}
	d.pending = ""
	return Result{Delta: delta.String(), Done: d.done}
}

// Pending reports whether a payload is waiting for more data.
func (d *Decoder) Pending() bool {
	return d.pending != ""
}

func (d *Decoder) line(line string, delta *strings.Builder) {
	if line == "" || strings.HasPrefix(line, ":") {
		return
	}
	payload, ok := dataPayload(line)
	if !ok {
		return
	}
	if payload == DoneSentinel {
		d.pending = ""
		d.done = true
		return
	}

	if d.pending != "" {
		joined := d.pending + "\n" + payload
		d.pending = ""
		if text, ok := decode(joined); ok {
			delta.WriteString(text)
			return
		}
	}

	text, ok := decode(payload)
	if !ok {
		d.pending = payload
		return
	}
	delta.WriteString(text)
}

// dataPayload extracts the value of an SSE "data" field. Other fields
// (event, id, retry) are ignored.
func dataPayload(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func decode(payload string) (string, bool) {
	var c chunk
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return "", false
	}
	if len(c.Choices) == 0 || c.Choices[0].Delta.Content == nil {
		return "", true
	}
	return *c.Choices[0].Delta.Content, true
}
