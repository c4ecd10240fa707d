// Package assistant forwards dashboard questions to the insights gateway and
// decodes its server-sent-event completion stream.
package assistant

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamDecoder incrementally decodes an OpenAI style SSE completion stream.
// Feed may be called with arbitrary chunk boundaries; a JSON frame split across
// chunks decodes exactly as if it had arrived whole.
type StreamDecoder struct {
	buf  []byte
	done bool
}

// Feed appends chunk to the buffer and returns the content increments decoded
// from every complete line, plus whether the stream has signalled [DONE].
func (d *StreamDecoder) Feed(chunk []byte) ([]string, bool) {
	if d.done {
		return nil, true
	}
	d.buf = append(d.buf, chunk...)

	var deltas []string
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(d.buf[:idx])
		d.buf = d.buf[idx+1:]

		content, status := decodeLine(line)
		switch status {
		case lineDone:
			d.done = true
			d.buf = nil
			return deltas, true
		case lineIncomplete:
			// Put the line back and wait for more data.
			d.buf = append([]byte(strings.TrimSuffix(line, "\r")+"\n"), d.buf...)
			return deltas, false
		case lineContent:
			deltas = append(deltas, content)
		}
	}
	return deltas, false
}

// Flush decodes whatever is left in the buffer once the body has ended. A final
// frame without a trailing newline is still delivered; anything undecodable is
// dropped.
func (d *StreamDecoder) Flush() []string {
	if d.done || len(d.buf) == 0 {
		d.buf = nil
		return nil
	}
	rest := d.buf
	d.buf = nil

	var deltas []string
	for _, line := range strings.Split(string(rest), "\n") {
		content, status := decodeLine(line)
		if status == lineDone {
			d.done = true
			break
		}
		if status == lineContent {
			deltas = append(deltas, content)
		}
	}
	return deltas
}

// Done reports whether the [DONE] marker has been seen.
func (d *StreamDecoder) Done() bool {
	return d.done
}

type lineStatus int

const (
	lineSkip lineStatus = iota
	lineContent
	lineDone
	lineIncomplete
)

func decodeLine(line string) (string, lineStatus) {
	line = strings.TrimSuffix(line, "\r")
	if strings.HasPrefix(line, ":") || strings.TrimSpace(line) == "" {
		return "", lineSkip
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return "", lineSkip
	}
	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == doneMarker {
		return "", lineDone
	}
	var chunk completionChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", lineIncomplete
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return "", lineSkip
	}
	return chunk.Choices[0].Delta.Content, lineContent
}
