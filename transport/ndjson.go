package transport

import "bytes"

// lineDecoder incrementally splits a byte stream into newline-delimited
// records. Network reads do not align with message framing, so partial lines
// are buffered across Feed calls until their terminating newline arrives.
type lineDecoder struct {
	buf []byte
}

// Feed appends p to the buffer and returns every complete line accumulated so
// far, without trailing newlines. Empty lines are skipped.
func (d *lineDecoder) Feed(p []byte) [][]byte {
	d.buf = append(d.buf, p...)

	var lines [][]byte
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			return lines
		}

		line := bytes.TrimRight(d.buf[:idx], "\r")
		d.buf = d.buf[idx+1:]

		if len(line) == 0 {
			continue
		}
		out := make([]byte, len(line))
		copy(out, line)
		lines = append(lines, out)
	}
}

// Rest returns any buffered partial line. Used when a stream ends without a
// final newline: the remainder is still a complete record.
func (d *lineDecoder) Rest() []byte {
	if len(d.buf) == 0 {
		return nil
	}
	rest := make([]byte, len(d.buf))
	copy(rest, d.buf)
	d.buf = d.buf[:0]
	return rest
}
