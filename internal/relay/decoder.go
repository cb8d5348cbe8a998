package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
)

// ErrStreamInterrupted reports an upstream body that ended or failed before
// the completion sentinel.
var ErrStreamInterrupted = errors.New("stream_interrupted")

const (
	framePrefix  = "data: "
	doneSentinel = "[DONE]"

	// MaxFrameSize bounds one upstream line. Longer lines are dropped like
	// any other malformed frame.
	MaxFrameSize = 64 << 10
)

type chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Decoder reads text fragments from an OpenAI-style event stream. It is
// forward-only and cannot be restarted.
type Decoder struct {
	reader    *bufio.Reader
	done      bool
	oversized bool
}

func NewDecoder(body io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReaderSize(body, MaxFrameSize)}
}

// Next returns the next non-empty fragment. It returns io.EOF once the
// sentinel frame has been read, ErrStreamInterrupted when the body ends
// first, and ctx.Err() when ctx is done.
func (d *Decoder) Next(ctx context.Context) (string, error) {
	if d.done {
		return "", io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		line, readErr := d.reader.ReadSlice('\n')
		if errors.Is(readErr, bufio.ErrBufferFull) {
			d.oversized = true
			continue
		}
		if d.oversized {
			// tail of a dropped frame
			d.oversized = false
			line = nil
		}
		if len(line) > 0 {
			fragment, done := parseLine(line)
			if done {
				d.done = true
				return "", io.EOF
			}
			if fragment != "" {
				return fragment, nil
			}
		}

		if readErr != nil {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			return "", ErrStreamInterrupted
		}
	}
}

func parseLine(line []byte) (string, bool) {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, []byte(framePrefix)) {
		return "", false
	}
	payload := bytes.TrimSpace(line[len(framePrefix):])
	if string(payload) == doneSentinel {
		return "", true
	}

	var c chunk
	if err := json.Unmarshal(payload, &c); err != nil {
		return "", false
	}
	if len(c.Choices) == 0 {
		return "", false
	}
	return c.Choices[0].Delta.Content, false
}
