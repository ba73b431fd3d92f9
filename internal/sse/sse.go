// Package sse splits a text/event-stream body into events.
//
// Only the fields the chat endpoints use are kept: "data", "event" and "id".
// "retry" and unknown fields are ignored, as are comment lines.
package sse

import (
	"bufio"
	"bytes"
	"io"
)

// MaxLineSize bounds a single line of the stream. Chunks carrying long tool-call
// arguments can exceed bufio's 64KiB default.
const MaxLineSize = 1 << 20

// Event is one dispatched server-sent event.
type Event struct {
	Type string
	ID   string
	Data []byte
}

// Decoder reads events from an underlying stream. It is not safe for concurrent use.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event that carries data.
//
// Multiple "data:" lines are joined with "\n". Events without data are skipped.
// io.EOF is returned once the stream is exhausted; a trailing event that was not
// terminated by a blank line is still dispatched.
func (d *Decoder) Next() (Event, error) {
	var (
		ev      Event
		data    [][]byte
		hasData bool
	)
	for {
		line, err := d.readLine()
		if err != nil && len(line) == 0 {
			if hasData {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			return Event{}, err
		}

		if len(line) == 0 {
			if !hasData {
				ev = Event{}
				continue
			}
			ev.Data = bytes.Join(data, []byte("\n"))
			return ev, nil
		}
		if line[0] == ':' {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			ev.Type = string(value)
		case "id":
			ev.ID = string(value)
		}

		if err != nil {
			// Last line without trailing newline.
			if hasData {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			return Event{}, err
		}
	}
}

func (d *Decoder) readLine() ([]byte, error) {
	var buf []byte
	for {
		frag, err := d.r.ReadSlice('\n')
		buf = append(buf, frag...)
		if err == bufio.ErrBufferFull {
			if len(buf) > MaxLineSize {
				return nil, bufio.ErrTooLong
			}
			continue
		}
		buf = bytes.TrimRight(buf, "\r\n")
		return buf, err
	}
}

func splitField(line []byte) (string, []byte) {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return string(line), nil
	}
	value := line[i+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return string(line[:i]), append([]byte(nil), value...)
}

// Frames adapts a Decoder to a reader of raw data payloads.
type Frames struct {
	dec *Decoder
}

func NewFrames(r io.Reader) *Frames {
	return &Frames{dec: NewDecoder(r)}
}

// Next returns the data payload of the next event.
func (f *Frames) Next() ([]byte, error) {
	ev, err := f.dec.Next()
	if err != nil {
		return nil, err
	}
	return ev.Data, nil
}
